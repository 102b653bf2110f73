package bot

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Post("/telegram", h.HandleWebhook)

	r.Route("/api", func(r chi.Router) {
		r.Get("/items", h.ListItems)
		r.Get("/items/{id}", h.GetItem)
		r.Get("/roses", h.ListItems)
		r.Get("/roses/{id}", h.GetItem)
		r.Get("/favorites/{user_id}", h.ListFavorites)
	})

	r.Route("/app", func(r chi.Router) {
		r.Get("/", h.App)
		r.Get("/favorites", h.AppFavorites)
		r.Post("/favorites/add", h.AddFavorite)
	})

	if h.opts.StaticDir != "" {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(h.opts.StaticDir))))
	}

	r.Post("/admin/refresh", h.Refresh)
}
