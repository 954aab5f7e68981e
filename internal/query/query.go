// Package query turns raw URL parameters into a canonical, immutable query
// descriptor: a typed filter predicate tree plus projection, sort chain and
// pagination window. The descriptor knows nothing about tables; stores render
// it into SQL through a column allow-list, so request-supplied names can never
// reach the database unchecked.
package query

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultPage  = 1
	DefaultLimit = 25
)

// ErrInvalid marks errors caused by the request itself (unknown operators or
// fields, bad literals, repeated filter terms) as opposed to execution
// failures. Callers branch on it to pick the response status.
var ErrInvalid = errors.New("invalid query")

func invalidf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrInvalid)...)
}

// Reserved parameter names that are never treated as filter terms.
var reservedKeys = map[string]bool{
	"fields": true,
	"sort":   true,
	"page":   true,
	"limit":  true,
}

// Op is a comparison operator in a filter predicate.
type Op int

const (
	OpEq Op = iota
	OpGt
	OpGte
	OpLt
	OpLte
	OpIn
)

var opTokens = map[string]Op{
	"gt":  OpGt,
	"gte": OpGte,
	"lt":  OpLt,
	"lte": OpLte,
	"in":  OpIn,
}

var opSQL = map[Op]string{
	OpEq:  "=",
	OpGt:  ">",
	OpGte: ">=",
	OpLt:  "<",
	OpLte: "<=",
}

// Predicate is one filter term: field <op> value. Values stay as the raw
// request literals until Where coerces them against the column's kind; the
// descriptor itself has no idea what type a field is.
type Predicate struct {
	Field  string
	Op     Op
	Values []string // single element except for OpIn
}

// SortKey orders results by one field.
type SortKey struct {
	Field string
	Desc  bool
}

// Projection holds the requested field selection. Include wins when both are
// present for the same field.
type Projection struct {
	Include []string
	Exclude []string
}

// Descriptor is the canonical representation of one read request. It is built
// once by Parse and never mutated afterwards.
type Descriptor struct {
	Filter     []Predicate
	Projection Projection
	Sort       []SortKey
	Page       int
	Limit      int
}

// Offset is the number of rows to skip for the requested page.
func (d *Descriptor) Offset() int {
	return (d.Page - 1) * d.Limit
}

// Parse builds a Descriptor from URL parameters.
//
// Every non-reserved key is a filter term, either `field=v` (equality) or
// `field[op]=v` with op in gt, gte, lt, lte, in. Unknown operator tokens and
// repeated filter terms are rejected here rather than passed through to the
// database. Reserved keys (fields, sort, page, limit) are read first-wins
// when repeated.
//
// Missing or non-numeric page/limit silently fall back to page=1, limit=25;
// that fallback is deliberate and callers rely on it not being an error.
func Parse(values url.Values) (*Descriptor, error) {
	d := &Descriptor{
		Page:  DefaultPage,
		Limit: DefaultLimit,
	}

	for key, vals := range values {
		if reservedKeys[key] {
			continue
		}
		if len(vals) > 1 {
			return nil, invalidf("repeated filter parameter %q", key)
		}
		pred, err := parsePredicate(key, vals[0])
		if err != nil {
			return nil, err
		}
		d.Filter = append(d.Filter, pred)
	}

	if fields := values.Get("fields"); fields != "" {
		for _, f := range strings.Split(fields, ",") {
			f = strings.TrimSpace(f)
			if f == "" {
				continue
			}
			if strings.HasPrefix(f, "-") {
				d.Projection.Exclude = append(d.Projection.Exclude, f[1:])
			} else {
				d.Projection.Include = append(d.Projection.Include, f)
			}
		}
	}

	if sort := values.Get("sort"); sort != "" {
		for _, s := range strings.Split(sort, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			key := SortKey{Field: s}
			if strings.HasPrefix(s, "-") {
				key = SortKey{Field: s[1:], Desc: true}
			}
			d.Sort = append(d.Sort, key)
		}
	}
	if len(d.Sort) == 0 {
		// Newest first when the request does not say otherwise.
		d.Sort = []SortKey{{Field: "created_at", Desc: true}}
	}

	if page, err := strconv.Atoi(values.Get("page")); err == nil && page > 0 {
		d.Page = page
	}
	if limit, err := strconv.Atoi(values.Get("limit")); err == nil && limit > 0 {
		d.Limit = limit
	}

	return d, nil
}

func parsePredicate(key, raw string) (Predicate, error) {
	field := key
	op := OpEq

	if i := strings.IndexByte(key, '['); i >= 0 {
		if !strings.HasSuffix(key, "]") {
			return Predicate{}, invalidf("malformed filter parameter %q", key)
		}
		token := key[i+1 : len(key)-1]
		parsed, ok := opTokens[token]
		if !ok {
			return Predicate{}, invalidf("unknown filter operator %q in %q", token, key)
		}
		field = key[:i]
		op = parsed
	}
	if field == "" {
		return Predicate{}, invalidf("malformed filter parameter %q", key)
	}

	if op == OpIn {
		parts := strings.Split(raw, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return Predicate{Field: field, Op: op, Values: parts}, nil
	}
	return Predicate{Field: field, Op: op, Values: []string{raw}}, nil
}

// Kind is the value type of a column; Where coerces request literals against
// it, the way a schema-aware store would, instead of guessing from the shape
// of the literal.
type Kind int

const (
	String Kind = iota
	Int
	Float
	Bool
	Time
)

// Column pairs a SQL column name with its value kind.
type Column struct {
	Name string
	Kind Kind
}

// Columns maps external parameter names onto columns. Only names present in
// the map may appear in rendered SQL.
type Columns map[string]Column

func (c Column) coerce(field, raw string) (any, error) {
	switch c.Kind {
	case Int:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, invalidf("invalid value %q for field %q", raw, field)
		}
		return n, nil
	case Float:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, invalidf("invalid value %q for field %q", raw, field)
		}
		return f, nil
	case Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, invalidf("invalid value %q for field %q", raw, field)
		}
		return b, nil
	case Time:
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t, nil
		}
		if t, err := time.Parse("2006-01-02", raw); err == nil {
			return t, nil
		}
		return nil, invalidf("invalid value %q for field %q", raw, field)
	default:
		return raw, nil
	}
}

// coerceList builds the homogeneous slice an `= ANY($n)` parameter needs.
func (c Column) coerceList(field string, raws []string) (any, error) {
	switch c.Kind {
	case Int:
		out := make([]int64, len(raws))
		for i, raw := range raws {
			v, err := c.coerce(field, raw)
			if err != nil {
				return nil, err
			}
			out[i] = v.(int64)
		}
		return out, nil
	case Float:
		out := make([]float64, len(raws))
		for i, raw := range raws {
			v, err := c.coerce(field, raw)
			if err != nil {
				return nil, err
			}
			out[i] = v.(float64)
		}
		return out, nil
	case Bool:
		out := make([]bool, len(raws))
		for i, raw := range raws {
			v, err := c.coerce(field, raw)
			if err != nil {
				return nil, err
			}
			out[i] = v.(bool)
		}
		return out, nil
	case Time:
		out := make([]time.Time, len(raws))
		for i, raw := range raws {
			v, err := c.coerce(field, raw)
			if err != nil {
				return nil, err
			}
			out[i] = v.(time.Time)
		}
		return out, nil
	default:
		return raws, nil
	}
}

// SelectColumns resolves the projection against the allow-list. The id column
// is always selected so results stay addressable. Include takes precedence;
// with no include list the full allow-list minus excludes is used.
func (d *Descriptor) SelectColumns(cols Columns, ordered []string) ([]string, error) {
	excluded := make(map[string]bool, len(d.Projection.Exclude))
	for _, f := range d.Projection.Exclude {
		if _, ok := cols[f]; !ok {
			return nil, invalidf("unknown field %q", f)
		}
		excluded[f] = true
	}

	selected := []string{"id"}
	if len(d.Projection.Include) > 0 {
		for _, f := range d.Projection.Include {
			col, ok := cols[f]
			if !ok {
				return nil, invalidf("unknown field %q", f)
			}
			if f == "id" || excluded[f] {
				continue
			}
			selected = append(selected, col.Name)
		}
		return selected, nil
	}

	for _, f := range ordered {
		if f == "id" || excluded[f] {
			continue
		}
		selected = append(selected, cols[f].Name)
	}
	return selected, nil
}

// Where renders the filter as an AND chain of conditions with numbered
// placeholders continuing after args, so callers can put scope predicates
// (visibility, parent id) in front. Literals are coerced against each
// column's kind here; a literal that does not fit the column is an ErrInvalid
// error, not a database round-trip. It returns the conditions and the
// extended argument list.
func (d *Descriptor) Where(cols Columns, conds []string, args []any) ([]string, []any, error) {
	for _, p := range d.Filter {
		col, ok := cols[p.Field]
		if !ok {
			return nil, nil, invalidf("unknown field %q", p.Field)
		}
		if p.Op == OpIn {
			value, err := col.coerceList(p.Field, p.Values)
			if err != nil {
				return nil, nil, err
			}
			args = append(args, value)
			conds = append(conds, fmt.Sprintf("%s = ANY($%d)", col.Name, len(args)))
			continue
		}
		value, err := col.coerce(p.Field, p.Values[0])
		if err != nil {
			return nil, nil, err
		}
		args = append(args, value)
		conds = append(conds, fmt.Sprintf("%s %s $%d", col.Name, opSQL[p.Op], len(args)))
	}
	return conds, args, nil
}

// OrderBy renders the sort chain. A descending id tiebreak is appended so the
// resulting order is total and stable across pages.
func (d *Descriptor) OrderBy(cols Columns) (string, error) {
	var keys []string
	for _, s := range d.Sort {
		col, ok := cols[s.Field]
		if !ok {
			return "", invalidf("unknown sort field %q", s.Field)
		}
		dir := "ASC"
		if s.Desc {
			dir = "DESC"
		}
		keys = append(keys, col.Name+" "+dir)
	}
	keys = append(keys, "id DESC")
	return strings.Join(keys, ", "), nil
}
