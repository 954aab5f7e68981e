package query

import (
	"fmt"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseQuery(t *testing.T, raw string) *Descriptor {
	t.Helper()
	values, err := url.ParseQuery(raw)
	require.NoError(t, err)
	d, err := Parse(values)
	require.NoError(t, err)
	return d
}

func TestParseFilterOperators(t *testing.T) {
	d := parseQuery(t, "rating[gte]=3&ratings_count[lt]=100&vegan_friendly=true&affordability[in]=affordable,regular")

	require.Len(t, d.Filter, 4)

	byField := map[string]Predicate{}
	for _, p := range d.Filter {
		byField[p.Field] = p
	}

	assert.Equal(t, Predicate{Field: "rating", Op: OpGte, Values: []string{"3"}}, byField["rating"])
	assert.Equal(t, Predicate{Field: "ratings_count", Op: OpLt, Values: []string{"100"}}, byField["ratings_count"])
	assert.Equal(t, Predicate{Field: "vegan_friendly", Op: OpEq, Values: []string{"true"}}, byField["vegan_friendly"])
	assert.Equal(t, Predicate{Field: "affordability", Op: OpIn, Values: []string{"affordable", "regular"}}, byField["affordability"])
}

func TestParseRejectsUnknownOperator(t *testing.T) {
	values, err := url.ParseQuery("rating[regex]=.*")
	require.NoError(t, err)

	_, err = Parse(values)
	assert.ErrorContains(t, err, `unknown filter operator "regex"`)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestParseRejectsMalformedOperator(t *testing.T) {
	values := url.Values{"rating[gte": []string{"3"}}
	_, err := Parse(values)
	assert.ErrorContains(t, err, "malformed filter parameter")
}

func TestParseRejectsRepeatedFilterParameter(t *testing.T) {
	values, err := url.ParseQuery("rating[gte]=3&rating[gte]=1")
	require.NoError(t, err)

	_, err = Parse(values)
	assert.ErrorContains(t, err, `repeated filter parameter "rating[gte]"`)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestParseRepeatedReservedKeysFirstWins(t *testing.T) {
	d := parseQuery(t, "page=3&page=9&limit=5&limit=50&sort=name&sort=-name")

	assert.Equal(t, 3, d.Page)
	assert.Equal(t, 5, d.Limit)
	assert.Equal(t, []SortKey{{Field: "name"}}, d.Sort)
}

func TestParseProjection(t *testing.T) {
	d := parseQuery(t, "fields=name,rating,-comment")

	assert.Equal(t, []string{"name", "rating"}, d.Projection.Include)
	assert.Equal(t, []string{"comment"}, d.Projection.Exclude)
}

func TestParseSortChain(t *testing.T) {
	d := parseQuery(t, "sort=rating,-created_at")

	assert.Equal(t, []SortKey{
		{Field: "rating"},
		{Field: "created_at", Desc: true},
	}, d.Sort)
}

func TestParseDefaultSortIsNewestFirst(t *testing.T) {
	d := parseQuery(t, "")
	assert.Equal(t, []SortKey{{Field: "created_at", Desc: true}}, d.Sort)
}

func TestParsePaginationDefaultsAndFallback(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		page   int
		limit  int
		offset int
	}{
		{"absent", "", 1, 25, 0},
		{"explicit", "page=2&limit=10", 2, 10, 10},
		{"non-numeric falls back silently", "page=abc&limit=xyz", 1, 25, 0},
		{"zero falls back silently", "page=0&limit=0", 1, 25, 0},
		{"negative falls back silently", "page=-3&limit=-1", 1, 25, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := parseQuery(t, tc.raw)
			assert.Equal(t, tc.page, d.Page)
			assert.Equal(t, tc.limit, d.Limit)
			assert.Equal(t, tc.offset, d.Offset())
		})
	}
}

func TestParseReservedKeysAreNotFilters(t *testing.T) {
	d := parseQuery(t, "fields=name&sort=name&page=2&limit=5&rating[gte]=4")
	require.Len(t, d.Filter, 1)
	assert.Equal(t, "rating", d.Filter[0].Field)
}

var testColumns = Columns{
	"id":         {Name: "id", Kind: Int},
	"name":       {Name: "name", Kind: String},
	"phone":      {Name: "phone", Kind: String},
	"rating":     {Name: "rating", Kind: Int},
	"price":      {Name: "price", Kind: Float},
	"open":       {Name: "open", Kind: Bool},
	"created_at": {Name: "created_at", Kind: Time},
}

var testOrdered = []string{"id", "name", "phone", "rating", "price", "open", "created_at"}

func TestSelectColumnsAlwaysIncludesID(t *testing.T) {
	d := parseQuery(t, "fields=name,rating")
	cols, err := d.SelectColumns(testColumns, testOrdered)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "rating"}, cols)
}

func TestSelectColumnsExclusion(t *testing.T) {
	d := parseQuery(t, "fields=-rating")
	cols, err := d.SelectColumns(testColumns, testOrdered)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "phone", "price", "open", "created_at"}, cols)
}

func TestSelectColumnsRejectsUnknownField(t *testing.T) {
	d := parseQuery(t, "fields=password")
	_, err := d.SelectColumns(testColumns, testOrdered)
	assert.ErrorContains(t, err, `unknown field "password"`)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestWhereCoercesByColumnKind(t *testing.T) {
	d := parseQuery(t, "rating[gte]=3")
	conds, args, err := d.Where(testColumns, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"rating >= $1"}, conds)
	assert.Equal(t, []any{int64(3)}, args)

	d = parseQuery(t, "price[lt]=4.5")
	_, args, err = d.Where(testColumns, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{4.5}, args)

	d = parseQuery(t, "open=true")
	_, args, err = d.Where(testColumns, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{true}, args)

	d = parseQuery(t, "created_at[gte]=2026-01-02")
	_, args, err = d.Where(testColumns, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)}, args)
}

// A numeric-looking literal against a text column must stay a string; the
// column's kind decides the parameter type, not the shape of the literal.
func TestWhereKeepsNumericLiteralAsStringForTextColumn(t *testing.T) {
	d := parseQuery(t, "phone=5551234")

	conds, args, err := d.Where(testColumns, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"phone = $1"}, conds)
	assert.Equal(t, []any{"5551234"}, args)
}

func TestWhereRejectsLiteralThatDoesNotFitColumn(t *testing.T) {
	d := parseQuery(t, "rating[gte]=high")

	_, _, err := d.Where(testColumns, nil, nil)
	assert.ErrorContains(t, err, `invalid value "high" for field "rating"`)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestWhereCoercesInListsByColumnKind(t *testing.T) {
	d := parseQuery(t, "rating[in]=1,2,3")
	conds, args, err := d.Where(testColumns, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"rating = ANY($1)"}, conds)
	assert.Equal(t, []any{[]int64{1, 2, 3}}, args)

	d = parseQuery(t, "name[in]=one,2")
	_, args, err = d.Where(testColumns, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{[]string{"one", "2"}}, args)

	d = parseQuery(t, "rating[in]=1,two")
	_, _, err = d.Where(testColumns, nil, nil)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestWherePlaceholdersContinueAfterScope(t *testing.T) {
	d := parseQuery(t, "rating[gte]=3")

	conds, args, err := d.Where(testColumns, []string{"banned = FALSE"}, []any{int64(7)})
	require.NoError(t, err)

	assert.Equal(t, []string{"banned = FALSE", "rating >= $2"}, conds)
	assert.Equal(t, []any{int64(7), int64(3)}, args)
}

func TestWhereKeepsArgsAlignedWithPlaceholders(t *testing.T) {
	d := parseQuery(t, "rating[gte]=3&name=cafe")

	conds, args, err := d.Where(testColumns, nil, nil)
	require.NoError(t, err)

	// Parameter order follows map iteration, but each condition's
	// placeholder must point at its own argument.
	require.Len(t, conds, 2)
	require.Len(t, args, 2)
	for i, cond := range conds {
		placeholder := fmt.Sprintf("$%d", i+1)
		assert.Contains(t, cond, placeholder)
		if strings.HasPrefix(cond, "rating") {
			assert.Equal(t, int64(3), args[i])
		} else {
			assert.Equal(t, "cafe", args[i])
		}
	}
}

func TestWhereRejectsUnknownField(t *testing.T) {
	d := parseQuery(t, "secret=1")
	_, _, err := d.Where(testColumns, nil, nil)
	assert.ErrorContains(t, err, `unknown field "secret"`)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestOrderByAppendsIDTiebreak(t *testing.T) {
	d := parseQuery(t, "sort=rating,-created_at")
	order, err := d.OrderBy(testColumns)
	require.NoError(t, err)
	assert.Equal(t, "rating ASC, created_at DESC, id DESC", order)
}

func TestOrderByDefault(t *testing.T) {
	d := parseQuery(t, "")
	order, err := d.OrderBy(testColumns)
	require.NoError(t, err)
	assert.Equal(t, "created_at DESC, id DESC", order)
}

func TestOrderByRejectsUnknownField(t *testing.T) {
	d := parseQuery(t, "sort=password")
	_, err := d.OrderBy(testColumns)
	assert.ErrorContains(t, err, `unknown sort field "password"`)
	assert.ErrorIs(t, err, ErrInvalid)
}
