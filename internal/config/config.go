package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"pedigree-chart-go/pkg/logger"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	HTTPPort     string
	Env          string
	Store        string
	SiteURL      string
	TemplatesDir string
	Generations  int
	CORSOrigins  []string
	DB           DBConfig
	Auth         AuthConfig
}

type DBConfig struct {
	DSN             string
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	TimeZone        string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// AuthConfig points at a Supabase-compatible auth service. With SkipAuth the
// mock user is signed in on every request.
type AuthConfig struct {
	URL            string
	PublishableKey string
	JWTSecret      string
	Timeout        time.Duration
	CookieName     string
	LoginURL       string
	LogoutURL      string
	SkipAuth       bool
	MockUserID     string
	MockNickname   string
	MockEmail      string
}

func Load(log logger.Logger) (Config, error) {
	err := loadDotEnv(log)
	if err != nil {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		HTTPPort:     getEnv("HTTP_PORT", "8080"),
		Env:          getEnv("ENV", "development"),
		Store:        strings.ToLower(getEnv("STORE", StorePostgres)),
		SiteURL:      strings.TrimRight(getEnv("SITE_URL", "http://localhost:8080"), "/"),
		TemplatesDir: getEnv("TEMPLATES_DIR", ""),
		Generations:  getEnvInt("CHART_GENERATIONS", 3),
		CORSOrigins:  getEnvList("CORS_ALLOWED_ORIGINS"),
		DB: DBConfig{
			DSN:             getEnv("DB_DSN", ""),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			Name:            getEnv("DB_NAME", "pedigree"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			TimeZone:        getEnv("DB_TIMEZONE", "UTC"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Auth: AuthConfig{
			URL:            getEnv("AUTH_URL", ""),
			PublishableKey: getEnv("AUTH_PUBLISHABLE_KEY", ""),
			JWTSecret:      getEnv("AUTH_JWT_SECRET", ""),
			Timeout:        getEnvDuration("AUTH_TIMEOUT", 5*time.Second),
			CookieName:     getEnv("AUTH_COOKIE", "sb-access-token"),
			LoginURL:       getEnv("AUTH_LOGIN_URL", "/login"),
			LogoutURL:      getEnv("AUTH_LOGOUT_URL", "/logout"),
			SkipAuth:       getEnvBool("AUTH_SKIP", false),
			MockUserID:     getEnv("AUTH_MOCK_USER_ID", "00000000-0000-0000-0000-000000000001"),
			MockNickname:   getEnv("AUTH_MOCK_NICKNAME", "dev"),
			MockEmail:      getEnv("AUTH_MOCK_EMAIL", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Store {
	case StorePostgres, StoreMemory:
	default:
		return fmt.Errorf("config: unknown STORE %q", c.Store)
	}
	if c.Generations < 1 || c.Generations > 8 {
		return fmt.Errorf("config: CHART_GENERATIONS must be between 1 and 8, got %d", c.Generations)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// getEnvList splits a comma separated value, dropping empty items.
func getEnvList(key string) []string {
	var items []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func (c DBConfig) GetDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	return "host=" + c.Host +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.Name +
		" port=" + c.Port +
		" sslmode=" + c.SSLMode +
		" TimeZone=" + c.TimeZone
}
