package corpus

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
)

const (
	pgUndefinedTable  = "42P01"
	pgUndefinedColumn = "42703"
)

// PostgresSource reads one text column of a table, ordered by a key column.
type PostgresSource struct {
	db    *sql.DB
	table string
	query string
}

// NewPostgresSource opens a pgx-backed connection pool. The table may be
// schema-qualified ("public.sentences").
func NewPostgresSource(dsn, table, column, orderBy string) (*PostgresSource, error) {
	if table == "" || column == "" {
		return nil, fmt.Errorf("postgres source: table and column are required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &PostgresSource{
		db:    db,
		table: table,
		query: selectQuery(table, column, orderBy),
	}, nil
}

func (s *PostgresSource) Name() string { return "postgres:" + s.table }

func (s *PostgresSource) Load(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.query)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && (pgErr.Code == pgUndefinedTable || pgErr.Code == pgUndefinedColumn) {
			return nil, &DataFormatError{Source: s.Name(), Reason: pgErr.Message, Err: err}
		}
		return nil, fmt.Errorf("query corpus table: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var text sql.NullString
		if err := rows.Scan(&text); err != nil {
			return nil, &DataFormatError{Source: s.Name(), Reason: "text column is not a string", Err: err}
		}
		out = append(out, strings.TrimSpace(text.String))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read corpus rows: %w", err)
	}
	return out, nil
}

// Close releases the connection pool.
func (s *PostgresSource) Close() error {
	return s.db.Close()
}

func selectQuery(table, column, orderBy string) string {
	parts := strings.Split(table, ".")
	for i, p := range parts {
		parts[i] = pq.QuoteIdentifier(p)
	}
	q := fmt.Sprintf("SELECT %s FROM %s", pq.QuoteIdentifier(column), strings.Join(parts, "."))
	if orderBy != "" {
		q += " ORDER BY " + pq.QuoteIdentifier(orderBy)
	}
	return q
}
