package bot

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Vovarama1992/rose-catalog-bot/internal/apperr"
	"github.com/Vovarama1992/rose-catalog-bot/internal/catalog"
	"github.com/Vovarama1992/rose-catalog-bot/internal/favorites"
	"github.com/Vovarama1992/rose-catalog-bot/internal/logger"
	"github.com/Vovarama1992/rose-catalog-bot/internal/telegram"
)

const (
	listLimit          = 50
	listDescriptionLen = 200

	maxWebhookBody = 1 << 20
	maxAPIBody     = 64 << 10
)

type Publisher interface {
	Publish(upd telegram.Update) error
}

// HandlerOptions: StaticDir — каталог фронтенда мини-приложения (index.html и ассеты).
type HandlerOptions struct {
	AdminToken string
	StaticDir  string
}

type Handler struct {
	queue     Publisher
	catalog   Catalog
	favorites *favorites.Store
	log       logger.ILogger
	opts      HandlerOptions
}

func NewHandler(queue Publisher, cat Catalog, favs *favorites.Store, log logger.ILogger, opts HandlerOptions) *Handler {
	return &Handler{queue: queue, catalog: cat, favorites: favs, log: log, opts: opts}
}

// HandleWebhook — вход от Telegram. Всегда 200: повтор доставки от
// Telegram нам не нужен, ошибка остаётся в логе.
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBody)

	var upd telegram.Update
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		h.log.Warn("http", "invalid webhook body", map[string]interface{}{"error": err.Error()})
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := h.queue.Publish(upd); err != nil {
		h.log.Error("http", "publish update failed", map[string]interface{}{"update_id": upd.UpdateID, "error": err})
	}

	w.WriteHeader(http.StatusOK)
}

type itemView struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Price       string   `json:"price"`
	Photo       string   `json:"photo"`
	Media       []string `json:"media"`
	Care        string   `json:"care"`
	History     string   `json:"history"`
}

// toView — позиция для мини-приложения. В списках описание обрезается.
func toView(it catalog.Item, full bool) itemView {
	v := itemView{
		ID:          it.ID(),
		Name:        it.Name,
		Description: it.Description,
		Category:    it.Category,
		Price:       it.Price,
		Photo:       it.Photo(),
		Media:       it.Media,
		Care:        it.Care,
		History:     it.History,
	}
	if v.Media == nil {
		v.Media = []string{}
	}
	if r := []rune(v.Description); !full && len(r) > listDescriptionLen {
		v.Description = string(r[:listDescriptionLen]) + "..."
	}
	return v
}

type itemsResponse struct {
	Roses []itemView `json:"roses"`
	Count int        `json:"count"`
}

type favoriteView struct {
	itemView
	AddedAt time.Time `json:"added_at"`
}

type favoritesResponse struct {
	Favorites []favoriteView `json:"favorites"`
	Count     int            `json:"count"`
}

// ListItems — GET /api/items?search= (он же /api/roses).
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	items := h.catalog.All()

	if q := catalog.Normalize(r.URL.Query().Get("search")); q != "" {
		filtered := make([]catalog.Item, 0)
		for _, it := range items {
			if strings.Contains(catalog.Normalize(it.Name), q) ||
				strings.Contains(strings.ToLower(it.Description), q) {
				filtered = append(filtered, it)
			}
		}
		items = filtered
	} else {
		items = catalog.Limit(items, listLimit)
	}

	out := make([]itemView, 0, len(items))
	for _, it := range items {
		out = append(out, toView(it, false))
	}
	writeJSON(w, http.StatusOK, itemsResponse{Roses: out, Count: len(out)})
}

// GetItem — GET /api/items/{id}
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	it, ok := h.catalog.FindByID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "Роза не найдена")
		return
	}
	writeJSON(w, http.StatusOK, toView(it, true))
}

// ListFavorites — GET /api/favorites/{user_id}
func (h *Handler) ListFavorites(w http.ResponseWriter, r *http.Request) {
	h.writeFavorites(w, chi.URLParam(r, "user_id"))
}

// AppFavorites — GET /app/favorites?chat_id=, тот же список для фронтенда.
func (h *Handler) AppFavorites(w http.ResponseWriter, r *http.Request) {
	h.writeFavorites(w, r.URL.Query().Get("chat_id"))
}

func (h *Handler) writeFavorites(w http.ResponseWriter, rawUser string) {
	user, err := strconv.ParseInt(strings.TrimSpace(rawUser), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	entries := h.favorites.List(user)
	out := make([]favoriteView, 0, len(entries))
	for _, e := range entries {
		out = append(out, favoriteView{itemView: toView(e.Item, false), AddedAt: e.AddedAt})
	}
	writeJSON(w, http.StatusOK, favoritesResponse{Favorites: out, Count: len(out)})
}

type addFavoriteRequest struct {
	ChatID    json.Number `json:"chat_id"`
	FirstName string      `json:"first_name"`
	Username  string      `json:"username"`
	Rose      struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"rose"`
}

// AddFavorite — POST /app/favorites/add из мини-приложения. Позиция берётся
// из каталога по id или имени: тело запроса не источник данных о розе.
func (h *Handler) AddFavorite(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAPIBody)

	var req addFavoriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid json")
		return
	}

	user, err := req.ChatID.Int64()
	if err != nil || user == 0 {
		writeFailure(w, http.StatusBadRequest, "invalid chat_id")
		return
	}

	it, ok := h.catalog.FindByID(req.Rose.ID)
	if !ok {
		it, ok = h.catalog.FindByName(strings.TrimSpace(req.Rose.Name))
	}
	if !ok {
		writeFailure(w, http.StatusNotFound, "Роза не найдена")
		return
	}

	name := telegram.User{FirstName: req.FirstName, Username: req.Username}.DisplayName()
	res, err := h.favorites.Add(r.Context(), user, name, it)
	if err != nil {
		h.log.Warn("http", "mini-app favorite add failed", map[string]interface{}{"user_id": user, "item": it.Name, "error": err.Error()})
		status := http.StatusInternalServerError
		if apperr.Is(err, apperr.KindDataSource) {
			status = http.StatusServiceUnavailable
		}
		writeFailure(w, status, FavoritesUnavailableText)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":         true,
		"already_present": res == favorites.AlreadyPresent,
	})
}

// App — GET /app, страница мини-приложения.
func (h *Handler) App(w http.ResponseWriter, r *http.Request) {
	index := filepath.Join(h.opts.StaticDir, "index.html")
	if _, err := os.Stat(index); err != nil {
		http.Error(w, AppUnavailableText, http.StatusNotFound)
		return
	}
	http.ServeFile(w, r, index)
}

// Refresh — POST /admin/refresh, перечитывает каталог.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	if h.opts.AdminToken == "" {
		http.NotFound(w, r)
		return
	}
	got := r.Header.Get("X-Admin-Token")
	if subtle.ConstantTimeCompare([]byte(got), []byte(h.opts.AdminToken)) != 1 {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	if err := h.catalog.Refresh(r.Context()); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	h.log.Info("http", "catalog refreshed by admin", map[string]interface{}{"items": h.catalog.Len()})
	writeJSON(w, http.StatusOK, map[string]int{"items": h.catalog.Len()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeFailure(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{"success": false, "error": msg})
}
