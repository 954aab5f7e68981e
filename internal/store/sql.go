package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"savor/internal/query"
)

const pgUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// listRows executes a translator-driven listing. Scope conditions (visibility,
// parent id) are rendered ahead of the request filter; scopeArgs must line up
// with any placeholders the scope conditions use.
func listRows(
	ctx context.Context,
	db *pgxpool.Pool,
	table string,
	cols query.Columns,
	ordered []string,
	q *query.Descriptor,
	scope []string,
	scopeArgs []any,
) ([]map[string]any, error) {
	selected, err := q.SelectColumns(cols, ordered)
	if err != nil {
		return nil, err
	}
	conds, args, err := q.Where(cols, scope, scopeArgs)
	if err != nil {
		return nil, err
	}
	order, err := q.OrderBy(cols)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(selected, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(table)
	if len(conds) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(conds, " AND "))
	}
	sb.WriteString(" ORDER BY ")
	sb.WriteString(order)
	fmt.Fprintf(&sb, " LIMIT %d OFFSET %d", q.Limit, q.Offset())

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	rows, err := db.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToMap)
}
