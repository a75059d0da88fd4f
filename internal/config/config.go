package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// AppConfig holds everything the pipeline needs, read from the environment.
type AppConfig struct {
	// ArchiveBaseURL is the root of the archive's query endpoints.
	ArchiveBaseURL string `validate:"required,url"`

	// CatalogPath is the persisted station catalog file. Deleting it
	// forces a full re-enumeration on the next start.
	CatalogPath string `validate:"required"`

	// CacheDBPath is the SQLite file holding fetched monthly records.
	CacheDBPath string `validate:"required"`

	// EpochYear is the first year the digital archive covers.
	EpochYear int `validate:"min=1900"`

	// EndYear is the last year catalog enumeration walks to.
	EndYear int `validate:"gtefield=EpochYear"`

	// FetchConcurrency bounds parallel archive requests. The archive is
	// not built for bulk access; keep this small.
	FetchConcurrency int `validate:"min=1,max=16"`

	// HTTPTimeout applies to each outbound archive request.
	HTTPTimeout time.Duration

	// RefreshInterval controls the periodic catalog refresh in serve mode.
	RefreshInterval time.Duration

	Port     string
	AppEnv   string
	LogLevel string `validate:"oneof=debug info warn error"`
}

var validate = validator.New()

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	cfg := &AppConfig{
		ArchiveBaseURL:   getenvDefault("ARCHIVE_BASE_URL", "https://meteo.arso.gov.si/webmet/archive"),
		CatalogPath:      getenvDefault("CATALOG_PATH", "data/catalog.json"),
		CacheDBPath:      getenvDefault("CACHE_DB_PATH", "data/records.db"),
		EpochYear:        getenvInt("ARCHIVE_EPOCH_YEAR", 1948),
		EndYear:          getenvInt("ARCHIVE_END_YEAR", time.Now().UTC().Year()-1),
		FetchConcurrency: getenvInt("FETCH_CONCURRENCY", 4),
		Port:             getenvDefault("PORT", "8080"),
		AppEnv:           getenvDefault("APP_ENV", "dev"),
		LogLevel:         getenvDefault("LOG_LEVEL", "info"),
	}

	timeoutStr := getenvDefault("HTTP_TIMEOUT", "30s")
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT: %w", err)
	}
	cfg.HTTPTimeout = timeout

	refreshStr := getenvDefault("REFRESH_INTERVAL", "720h")
	refresh, err := time.ParseDuration(refreshStr)
	if err != nil {
		return nil, fmt.Errorf("invalid REFRESH_INTERVAL: %w", err)
	}
	cfg.RefreshInterval = refresh

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}
