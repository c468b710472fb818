package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Backend  BackendConfig
	Wizard   WizardConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
}

type DatabaseConfig struct {
	Connection string
}

// BackendConfig points at the wiki backend API the wizard drives.
type BackendConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

type WizardConfig struct {
	Steps               string // comma separated step keys
	ResetDelay          time.Duration
	SessionTTL          time.Duration
	AppType             string
	ReleaseMessage      string
	LandingDefaultsFile string
	KbEventsTopic       string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Backend: BackendConfig{
			BaseURL: getEnv("WIKI_API_BASE_URL", "http://localhost:8000"),
			Token:   getEnv("WIKI_API_TOKEN", ""),
			Timeout: getEnvAsDuration("WIKI_API_TIMEOUT", 15*time.Second),
		},
		Wizard: WizardConfig{
			Steps:               getEnv("WIZARD_STEPS", "model,kb_config,complete"),
			ResetDelay:          getEnvAsDuration("WIZARD_RESET_DELAY", 300*time.Millisecond),
			SessionTTL:          getEnvAsDuration("WIZARD_SESSION_TTL", time.Hour),
			AppType:             getEnv("WIZARD_APP_TYPE", "1"),
			ReleaseMessage:      getEnv("WIZARD_RELEASE_MESSAGE", "创建 Wiki 站点"),
			LandingDefaultsFile: getEnv("WIZARD_LANDING_DEFAULTS_FILE", ""),
			KbEventsTopic:       getEnv("WIZARD_KB_EVENTS_TOPIC", "KB_LIST_OBSERVED"),
		},
	}
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

// getEnvAsDuration accepts Go durations ("300ms") or plain milliseconds.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if strValue == "" {
		return fallback
	}
	if d, err := time.ParseDuration(strValue); err == nil {
		return d
	}
	if ms := getEnvAsInt(key, -1); ms >= 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}
