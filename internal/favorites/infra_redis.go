package favorites

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Vovarama1992/rose-catalog-bot/internal/catalog"
)

// DefaultRedisKey — хеш, где поле "<user>\x1f<item>" хранит строку в JSON.
const DefaultRedisKey = "favorites:rows"

const fieldSep = "\x1f"

type redisRepo struct {
	rdb *redis.Client
	key string
}

func NewRedisRepo(rdb *redis.Client, key string) Repo {
	if key == "" {
		key = DefaultRedisKey
	}
	return &redisRepo{rdb: rdb, key: key}
}

type redisRow struct {
	DisplayName string    `json:"display_name"`
	AddedAt     int64     `json:"added_at"`
	Item        redisItem `json:"item"`
}

type redisItem struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    string   `json:"category,omitempty"`
	Price       string   `json:"price,omitempty"`
	Media       []string `json:"media,omitempty"`
	Care        string   `json:"care"`
	History     string   `json:"history"`
}

func field(userID, itemName string) string {
	return userID + fieldSep + itemName
}

func (r *redisRepo) Append(ctx context.Context, row Row) error {
	body, err := json.Marshal(redisRow{
		DisplayName: row.DisplayName,
		AddedAt:     row.AddedAt.UnixNano(),
		Item:        redisItem(row.Item),
	})
	if err != nil {
		return err
	}
	// первая запись побеждает, как ON CONFLICT DO NOTHING в Postgres
	return r.rdb.HSetNX(ctx, r.key, field(row.UserID, row.Item.Name), body).Err()
}

func (r *redisRepo) Delete(ctx context.Context, userID int64, itemName string) error {
	return r.rdb.HDel(ctx, r.key, field(strconv.FormatInt(userID, 10), itemName)).Err()
}

func (r *redisRepo) ReadAll(ctx context.Context) ([]Row, error) {
	all, err := r.rdb.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, err
	}

	out := make([]Row, 0, len(all))
	for f, body := range all {
		userID, _, ok := strings.Cut(f, fieldSep)
		if !ok {
			userID = ""
		}

		var stored redisRow
		if err := json.Unmarshal([]byte(body), &stored); err != nil {
			// битое тело — строка без пользователя, Store её пропустит
			out = append(out, Row{})
			continue
		}

		out = append(out, Row{
			UserID:      userID,
			DisplayName: stored.DisplayName,
			AddedAt:     time.Unix(0, stored.AddedAt).UTC(),
			Item:        withDefaults(catalog.Item(stored.Item)),
		})
	}

	// в хеше нет порядка — восстанавливаем порядок добавления
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AddedAt.Before(out[j].AddedAt)
	})
	return out, nil
}
