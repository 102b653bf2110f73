package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/Vovarama1992/rose-catalog-bot/internal/bot"
	"github.com/Vovarama1992/rose-catalog-bot/internal/callback"
	"github.com/Vovarama1992/rose-catalog-bot/internal/catalog"
	"github.com/Vovarama1992/rose-catalog-bot/internal/config"
	"github.com/Vovarama1992/rose-catalog-bot/internal/favorites"
	"github.com/Vovarama1992/rose-catalog-bot/internal/logger"
	"github.com/Vovarama1992/rose-catalog-bot/internal/session"
	"github.com/Vovarama1992/rose-catalog-bot/internal/telegram"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config error: %v", err)
	}

	appLog := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
	defer appLog.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- DB ---
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		log.Fatalf("db ping error: %v", err)
	}

	// --- Catalog ---
	cache := catalog.NewCache(catalog.NewPostgresSource(db, cfg.Catalog.Table), appLog)
	if err := cache.Refresh(ctx); err != nil {
		// стартуем с пустым каталогом, следующий тик попробует снова
		appLog.Error("main", "initial catalog load failed", map[string]interface{}{"error": err})
	}

	// --- Favorites ---
	var repo favorites.Repo
	switch cfg.Favorites.Backend {
	case config.BackendRedis:
		opt, err := redis.ParseURL(cfg.Favorites.RedisURL)
		if err != nil {
			log.Fatalf("redis url error: %v", err)
		}
		rdb := redis.NewClient(opt)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("redis ping error: %v", err)
		}
		repo = favorites.NewRedisRepo(rdb, "")
	default:
		if err := favorites.Migrate(ctx, db); err != nil {
			log.Fatalf("favorites migrate error: %v", err)
		}
		repo = favorites.NewRepo(db)
	}

	favStore := favorites.NewStore(repo, appLog)
	if err := favStore.EnsureLoaded(ctx); err != nil {
		// изменения избранного отклоняются, пока гидрация не пройдёт на тике
		appLog.Error("main", "favorites load failed", map[string]interface{}{"error": err})
	}

	refresher := catalog.NewRefresher(cache, cfg.Catalog.RefreshInterval, appLog, favStore.EnsureLoaded)
	refresher.Start(ctx)

	// --- Bot wiring ---
	out := telegram.NewTelegramOutbound(cfg.Telegram.APIURL, cfg.Telegram.Token)

	svc := bot.NewService(
		cache,
		catalog.NewMatcher(catalog.ParseMode(cfg.Search.Mode), cfg.Search.FuzzyThreshold),
		session.NewStore(cfg.Search.SessionLimit, cfg.Session.TTL, cfg.Session.Sweep),
		favStore,
		callback.NewCodec(0),
		out,
		appLog,
		bot.Options{
			DisplayLimit: cfg.Search.DisplayLimit,
			ContactText:  cfg.App.ContactText,
			WebAppURL:    cfg.App.WebAppURL,
		},
	)

	queue := bot.NewQueue(svc, appLog, 10*time.Minute)
	if err := queue.Run(ctx); err != nil {
		log.Fatalf("queue error: %v", err)
	}

	// --- Router ---
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Admin-Token"},
	}))

	bot.RegisterRoutes(r, bot.NewHandler(queue, cache, favStore, appLog, bot.HandlerOptions{
		AdminToken: cfg.App.AdminToken,
		StaticDir:  cfg.App.StaticDir,
	}))

	// --- health ---
	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})

	if cfg.App.PublicURL != "" {
		hookCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := out.SetWebhook(hookCtx, cfg.App.PublicURL+"/telegram"); err != nil {
			appLog.Error("main", "set webhook failed", map[string]interface{}{"error": err})
		} else {
			appLog.Info("main", "webhook registered", map[string]interface{}{"url": cfg.App.PublicURL + "/telegram"})
		}
		cancel()
	}

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLog.Info("main", "listening", map[string]interface{}{"port": cfg.App.Port, "items": cache.Len()})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	appLog.Info("main", "shutting down", nil)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Error("main", "http shutdown failed", map[string]interface{}{"error": err})
	}

	refresher.Stop()
	if err := queue.Close(); err != nil {
		appLog.Error("main", "queue close failed", map[string]interface{}{"error": err})
	}
}
