package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

// PostgresSource читает каталог из таблицы целиком, все колонки как текст.
type PostgresSource struct {
	db    *sql.DB
	table string
}

func NewPostgresSource(db *sql.DB, table string) *PostgresSource {
	return &PostgresSource{db: db, table: table}
}

func (s *PostgresSource) Rows(ctx context.Context) ([]map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT * FROM `+pq.QuoteIdentifier(s.table))
	if err != nil {
		return nil, fmt.Errorf("query catalog table %s: %w", s.table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []map[string]string
	for rows.Next() {
		vals := make([]sql.NullString, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(map[string]string, len(cols))
		for i, col := range cols {
			if vals[i].Valid {
				row[col] = vals[i].String
			}
		}
		out = append(out, row)
	}

	return out, rows.Err()
}
