package favorites

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/Vovarama1992/rose-catalog-bot/internal/catalog"
)

type repo struct {
	db *sql.DB
}

func NewRepo(db *sql.DB) Repo {
	return &repo{db: db}
}

// Migrate создаёт таблицу избранного, если её нет. Пара (user_id, item_name)
// уникальна; дубли, оставшиеся от старой схемы, схлопываются в самую раннюю строку.
func Migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS favorites (
			id           BIGSERIAL PRIMARY KEY,
			user_id      TEXT,
			display_name TEXT NOT NULL DEFAULT '',
			added_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
			item_name    TEXT NOT NULL,
			description  TEXT NOT NULL DEFAULT '',
			category     TEXT NOT NULL DEFAULT '',
			price        TEXT NOT NULL DEFAULT '',
			media        TEXT NOT NULL DEFAULT '',
			care         TEXT NOT NULL DEFAULT '',
			history      TEXT NOT NULL DEFAULT ''
		);
		DELETE FROM favorites a
			USING favorites b
			WHERE a.user_id = b.user_id AND a.item_name = b.item_name AND a.id > b.id;
		DROP INDEX IF EXISTS idx_favorites_user_item;
		CREATE UNIQUE INDEX IF NOT EXISTS uq_favorites_user_item ON favorites (user_id, item_name);
	`)
	return err
}

func (r *repo) Append(ctx context.Context, row Row) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO favorites (user_id, display_name, added_at, item_name, description, category, price, media, care, history)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id, item_name) DO NOTHING
	`,
		row.UserID,
		row.DisplayName,
		row.AddedAt,
		row.Item.Name,
		row.Item.Description,
		row.Item.Category,
		row.Item.Price,
		strings.Join(row.Item.Media, "\n"),
		row.Item.Care,
		row.Item.History,
	)
	return err
}

func (r *repo) Delete(ctx context.Context, userID int64, itemName string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM favorites WHERE user_id = $1 AND item_name = $2
	`, strconv.FormatInt(userID, 10), itemName)
	return err
}

func (r *repo) ReadAll(ctx context.Context) ([]Row, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT COALESCE(user_id, ''), display_name, added_at, item_name, description, category, price, media, care, history
		FROM favorites
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var (
			row     Row
			media   string
			addedAt time.Time
		)
		if err := rows.Scan(
			&row.UserID,
			&row.DisplayName,
			&addedAt,
			&row.Item.Name,
			&row.Item.Description,
			&row.Item.Category,
			&row.Item.Price,
			&media,
			&row.Item.Care,
			&row.Item.History,
		); err != nil {
			return nil, err
		}
		row.AddedAt = addedAt
		row.Item = withDefaults(row.Item)
		if media != "" {
			row.Item.Media = strings.Split(media, "\n")
		}
		out = append(out, row)
	}

	return out, rows.Err()
}

// withDefaults — те же заглушки, что и у каталога, для старых строк с пустыми полями.
func withDefaults(it catalog.Item) catalog.Item {
	if it.Description == "" {
		it.Description = catalog.DefaultDescription
	}
	if it.Care == "" {
		it.Care = catalog.DefaultCare
	}
	if it.History == "" {
		it.History = catalog.DefaultHistory
	}
	return it
}
