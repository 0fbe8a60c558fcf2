package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Logger     LoggerConfig
	Store      StoreConfig
	Admin      AdminConfig
	Metrics    MetricsConfig
	Catalog    CatalogConfig
	Storefront StorefrontConfig
}

type ServerConfig struct {
	Port string

	// TrustProxy makes client IP detection honour X-Forwarded-For.
	TrustProxy bool
}

type LoggerConfig struct {
	Level string
}

type StoreConfig struct {
	// Driver is one of file, bolt, postgres, memory.
	Driver       string
	ProductsFile string
	BoltPath     string
	DatabaseURL  string
	// CreateIfMissing seeds an empty document for the file driver.
	CreateIfMissing bool
}

type AdminConfig struct {
	Token     string
	JWTSecret string
	TokenTTL  time.Duration
	Email     string
	Password  string
}

type MetricsConfig struct {
	Enabled bool
	Token   string
}

type CatalogConfig struct {
	Locale        string
	MaxImageBytes int
}

type StorefrontConfig struct {
	CatalogURL string
	StaleTime  time.Duration
	Retention  time.Duration
}

// Load reads an optional .env file and then the process environment.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port:       getEnv("PORT", "8001"),
			TrustProxy: getEnvBool("TRUST_PROXY", false),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Store: StoreConfig{
			Driver:          getEnv("STORE_DRIVER", "file"),
			ProductsFile:    getEnv("PRODUCTS_FILE", "data/products.json"),
			BoltPath:        getEnv("BOLT_PATH", "data/catalog.db"),
			DatabaseURL:     getEnv("DATABASE_URL", ""),
			CreateIfMissing: getEnvBool("PRODUCTS_FILE_CREATE", true),
		},
		Admin: AdminConfig{
			Token:     getEnv("ADMIN_TOKEN", "admin"),
			JWTSecret: getEnv("JWT_SECRET", ""),
			TokenTTL:  getEnvDuration("ADMIN_TOKEN_TTL", 15*time.Minute),
			Email:     getEnv("ADMIN_EMAIL", ""),
			Password:  getEnv("ADMIN_PASSWORD", ""),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Token:   getEnv("METRICS_TOKEN", ""),
		},
		Catalog: CatalogConfig{
			Locale:        getEnv("CATALOG_LOCALE", "en"),
			MaxImageBytes: getEnvInt("MAX_IMAGE_BYTES", 10<<20),
		},
		Storefront: StorefrontConfig{
			CatalogURL: getEnv("CATALOG_URL", "http://localhost:8001"),
			StaleTime:  getEnvDuration("CACHE_STALE_TIME", 5*time.Minute),
			Retention:  getEnvDuration("CACHE_RETENTION", 10*time.Minute),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
