package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/Vovarama1992/rose-catalog-bot/internal/apperr"
)

const (
	SearchSubstring = "substring"
	SearchFuzzy     = "fuzzy"

	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

type Config struct {
	App       AppConfig
	Telegram  TelegramConfig
	Database  DatabaseConfig
	Catalog   CatalogConfig
	Favorites FavoritesConfig
	Search    SearchConfig
	Session   SessionConfig
}

type AppConfig struct {
	Port        string
	Environment string
	LogFilePath string
	PublicURL   string
	WebAppURL   string
	AdminToken  string
	ContactText string
	StaticDir   string
}

type TelegramConfig struct {
	Token  string
	APIURL string
}

type DatabaseConfig struct {
	URL string
}

type CatalogConfig struct {
	Table           string
	RefreshInterval time.Duration
}

type FavoritesConfig struct {
	Backend  string
	RedisURL string
}

type SearchConfig struct {
	Mode           string
	FuzzyThreshold int
	DisplayLimit   int
	SessionLimit   int
}

type SessionConfig struct {
	TTL   time.Duration
	Sweep time.Duration
}

const defaultContactText = "📞 Связаться с нами можно в личных сообщениях магазина. Мы отвечаем ежедневно с 10:00 до 20:00."

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] .env not found, using system environment")
	}

	publicURL := strings.TrimRight(getEnv("PUBLIC_URL", ""), "/")
	if publicURL == "" {
		if domain := getEnv("RAILWAY_PUBLIC_DOMAIN", ""); domain != "" {
			publicURL = "https://" + domain
		}
	}

	webAppURL := getEnv("WEB_APP_URL", "")
	if webAppURL == "" && publicURL != "" {
		webAppURL = publicURL + "/app"
	}

	return &Config{
		App: AppConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("GO_ENV", "development"),
			LogFilePath: getEnv("LOG_FILE_PATH", "logs/bot.log"),
			PublicURL:   publicURL,
			WebAppURL:   webAppURL,
			AdminToken:  getEnv("ADMIN_TOKEN", ""),
			ContactText: getEnv("CONTACT_TEXT", defaultContactText),
			StaticDir:   getEnv("STATIC_DIR", "static"),
		},
		Telegram: TelegramConfig{
			Token:  strings.TrimSpace(getEnv("BOT_TOKEN", "")),
			APIURL: strings.TrimRight(getEnv("TELEGRAM_API_URL", "https://api.telegram.org"), "/"),
		},
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		Catalog: CatalogConfig{
			Table:           getEnv("CATALOG_TABLE", "catalog_items"),
			RefreshInterval: getEnvAsDuration("CATALOG_REFRESH_INTERVAL", 10*time.Minute),
		},
		Favorites: FavoritesConfig{
			Backend:  strings.ToLower(getEnv("FAVORITES_BACKEND", BackendPostgres)),
			RedisURL: getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Search: SearchConfig{
			Mode:           strings.ToLower(getEnv("SEARCH_MODE", SearchSubstring)),
			FuzzyThreshold: getEnvAsInt("FUZZY_THRESHOLD", 80),
			DisplayLimit:   getEnvAsInt("DISPLAY_LIMIT", 5),
			SessionLimit:   getEnvAsInt("SESSION_LIMIT", 10),
		},
		Session: SessionConfig{
			TTL:   getEnvAsDuration("SESSION_TTL", time.Hour),
			Sweep: getEnvAsDuration("SESSION_SWEEP", 10*time.Minute),
		},
	}
}

// Validate — без токена бота и базы сервис не стартует, деградированного режима нет.
func (c *Config) Validate() error {
	var errs []error

	if c.Telegram.Token == "" {
		errs = append(errs, errors.New("BOT_TOKEN is not set"))
	}
	if c.Database.URL == "" {
		errs = append(errs, errors.New("DATABASE_URL is not set"))
	}
	switch c.Search.Mode {
	case SearchSubstring, SearchFuzzy:
	default:
		errs = append(errs, errors.New("SEARCH_MODE must be substring or fuzzy, got "+strconv.Quote(c.Search.Mode)))
	}
	switch c.Favorites.Backend {
	case BackendPostgres, BackendRedis:
	default:
		errs = append(errs, errors.New("FAVORITES_BACKEND must be postgres or redis, got "+strconv.Quote(c.Favorites.Backend)))
	}
	if c.Search.DisplayLimit <= 0 || c.Search.SessionLimit < c.Search.DisplayLimit {
		errs = append(errs, errors.New("DISPLAY_LIMIT must be positive and not exceed SESSION_LIMIT"))
	}

	return apperr.E(apperr.KindConfiguration, "config.validate", errors.Join(errs...))
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if strValue == "" {
		return fallback
	}
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
