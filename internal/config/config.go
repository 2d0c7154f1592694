package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

const (
	minPollInterval = time.Second
	maxPollInterval = time.Minute
)

type HTTPConfig struct {
	Host string
	Port int
}

type APIConfig struct {
	BaseURL string
	Timeout time.Duration
}

type DBConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type SessionConfig struct {
	Secret     string
	TTL        time.Duration
	CookieName string
	IdleTTL    time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// PollConfig holds one refetch interval per dashboard list. Each list keeps its
// interval for the whole lifetime of a workspace.
type PollConfig struct {
	Active            time.Duration
	Archived          time.Duration
	Emergency         time.Duration
	ArchivedEmergency time.Duration
	Resolved          time.Duration
	Dismissed         time.Duration
	Tickets           time.Duration
	Personnel         time.Duration
	PendingAccounts   time.Duration
	Assigned          time.Duration
}

type OCRConfig struct {
	TesseractPath string
	Lang          string
	Strict        bool
}

type EvidenceConfig struct {
	Bucket      string
	Region      string
	EndpointURL string
}

type Config struct {
	Environment string
	LogLevel    string
	HTTP        HTTPConfig
	API         APIConfig
	DB          DBConfig
	Session     SessionConfig
	Redis       RedisConfig
	Poll        PollConfig
	OCR         OCRConfig
	Evidence    EvidenceConfig
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")
	v.AddConfigPath("./internal/config")

	v.AutomaticEnv()
	setDefaults(v)

	_ = v.ReadInConfig()

	cfg := &Config{
		Environment: v.GetString("APP_ENV"),
		LogLevel:    v.GetString("LOG_LEVEL"),
		HTTP: HTTPConfig{
			Host: v.GetString("HTTP_HOST"),
			Port: v.GetInt("HTTP_PORT"),
		},
		API: APIConfig{
			BaseURL: v.GetString("API_BASE_URL"),
			Timeout: v.GetDuration("API_TIMEOUT"),
		},
		DB: DBConfig{
			DSN:             v.GetString("DB_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
		},
		Session: SessionConfig{
			Secret:     v.GetString("SESSION_SECRET"),
			TTL:        v.GetDuration("SESSION_TTL"),
			CookieName: v.GetString("SESSION_COOKIE"),
			IdleTTL:    v.GetDuration("WORKSPACE_IDLE_TTL"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Poll: PollConfig{
			Active:            v.GetDuration("POLL_ACTIVE"),
			Archived:          v.GetDuration("POLL_ARCHIVED"),
			Emergency:         v.GetDuration("POLL_EMERGENCY"),
			ArchivedEmergency: v.GetDuration("POLL_ARCHIVED_EMERGENCY"),
			Resolved:          v.GetDuration("POLL_RESOLVED"),
			Dismissed:         v.GetDuration("POLL_DISMISSED"),
			Tickets:           v.GetDuration("POLL_TICKETS"),
			Personnel:         v.GetDuration("POLL_PERSONNEL"),
			PendingAccounts:   v.GetDuration("POLL_PENDING_ACCOUNTS"),
			Assigned:          v.GetDuration("POLL_ASSIGNED"),
		},
		OCR: OCRConfig{
			TesseractPath: v.GetString("OCR_TESSERACT_PATH"),
			Lang:          v.GetString("OCR_LANG"),
			Strict:        v.GetBool("OCR_STRICT"),
		},
		Evidence: EvidenceConfig{
			Bucket:      v.GetString("TICKET_BUCKET"),
			Region:      v.GetString("AWS_REGION"),
			EndpointURL: v.GetString("AWS_ENDPOINT_URL"),
		},
	}

	if cfg.HTTP.Host == "" {
		cfg.HTTP.Host = "0.0.0.0"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 7090
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("API_TIMEOUT", 15*time.Second)
	v.SetDefault("SESSION_TTL", 12*time.Hour)
	v.SetDefault("SESSION_COOKIE", "sk3_session")
	v.SetDefault("WORKSPACE_IDLE_TTL", 30*time.Minute)

	v.SetDefault("POLL_ACTIVE", 5*time.Second)
	v.SetDefault("POLL_ARCHIVED", 10*time.Second)
	v.SetDefault("POLL_EMERGENCY", 3*time.Second)
	v.SetDefault("POLL_ARCHIVED_EMERGENCY", 10*time.Second)
	v.SetDefault("POLL_RESOLVED", 10*time.Second)
	v.SetDefault("POLL_DISMISSED", 10*time.Second)
	v.SetDefault("POLL_TICKETS", 10*time.Second)
	v.SetDefault("POLL_PERSONNEL", 10*time.Second)
	v.SetDefault("POLL_PENDING_ACCOUNTS", 5*time.Second)
	v.SetDefault("POLL_ASSIGNED", 5*time.Second)

	v.SetDefault("OCR_TESSERACT_PATH", "tesseract")
	v.SetDefault("OCR_LANG", "eng")
	v.SetDefault("AWS_REGION", "ap-southeast-1")
}

func validate(cfg *Config) error {
	if cfg.API.BaseURL == "" {
		return fmt.Errorf("API_BASE_URL is required")
	}
	if cfg.DB.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	if cfg.Session.Secret == "" {
		return fmt.Errorf("SESSION_SECRET is required")
	}
	return cfg.Poll.validate()
}

func (p PollConfig) validate() error {
	intervals := map[string]time.Duration{
		"POLL_ACTIVE":             p.Active,
		"POLL_ARCHIVED":           p.Archived,
		"POLL_EMERGENCY":          p.Emergency,
		"POLL_ARCHIVED_EMERGENCY": p.ArchivedEmergency,
		"POLL_RESOLVED":           p.Resolved,
		"POLL_DISMISSED":          p.Dismissed,
		"POLL_TICKETS":            p.Tickets,
		"POLL_PERSONNEL":          p.Personnel,
		"POLL_PENDING_ACCOUNTS":   p.PendingAccounts,
		"POLL_ASSIGNED":           p.Assigned,
	}
	for key, interval := range intervals {
		if interval < minPollInterval || interval > maxPollInterval {
			return fmt.Errorf("%s must be between %s and %s, got %s", key, minPollInterval, maxPollInterval, interval)
		}
	}
	return nil
}
