package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/tazhate/calbridge/internal/permission"
)

const (
	BackendSQLite = "sqlite"
	BackendCalDAV = "caldav"
	BackendGoogle = "google"
)

type Config struct {
	Backend      string
	DatabasePath string

	CalDAVURL           string
	CalDAVUsername      string
	CalDAVPassword      string
	CalDAVCalendar      string
	CalDAVRemindersList string

	GoogleCredentialsFile string
	GoogleTokenFile       string

	TelegramToken   string
	OwnerTelegramID int64
	WebhookURL      string
	ServerPort      string

	APIUsername string
	APIPassword string

	Timezone         *time.Location
	LogLevel         string
	PermissionPolicy permission.Policy

	CalendarWebURL  string
	RemindersWebURL string
}

// source resolves a key from the environment first, then the optional YAML file.
type source map[string]string

func (s source) get(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	if v := s[key]; v != "" {
		return v
	}
	return def
}

// Load reads .env, then CALBRIDGE_CONFIG (a YAML file holding the same keys
// as the environment), then the environment itself.
func Load() (*Config, error) {
	_ = godotenv.Load()

	file, err := loadFile(os.Getenv("CALBRIDGE_CONFIG"))
	if err != nil {
		return nil, err
	}
	return build(file)
}

func loadFile(path string) (source, error) {
	if path == "" {
		return source{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	out := make(source, len(raw))
	for k, v := range raw {
		if v == nil {
			continue
		}
		out[strings.ToUpper(k)] = fmt.Sprint(v)
	}
	return out, nil
}

func build(src source) (*Config, error) {
	cfg := &Config{
		Backend:               strings.ToLower(src.get("BACKEND", BackendSQLite)),
		DatabasePath:          src.get("DATABASE_PATH", "./data/calbridge.db"),
		CalDAVURL:             src.get("CALDAV_URL", "https://caldav.icloud.com"),
		CalDAVUsername:        src.get("CALDAV_USERNAME", ""),
		CalDAVPassword:        src.get("CALDAV_PASSWORD", ""),
		CalDAVCalendar:        src.get("CALDAV_CALENDAR", ""),
		CalDAVRemindersList:   src.get("CALDAV_REMINDERS_LIST", ""),
		GoogleCredentialsFile: src.get("GOOGLE_CREDENTIALS_FILE", "credentials.json"),
		GoogleTokenFile:       src.get("GOOGLE_TOKEN_FILE", "token.json"),
		TelegramToken:         src.get("TELEGRAM_BOT_TOKEN", ""),
		WebhookURL:            src.get("WEBHOOK_URL", ""),
		ServerPort:            src.get("SERVER_PORT", "8080"),
		APIUsername:           src.get("API_USERNAME", ""),
		APIPassword:           src.get("API_PASSWORD", ""),
		LogLevel:              src.get("LOG_LEVEL", "info"),
		CalendarWebURL:        src.get("CALENDAR_WEB_URL", ""),
		RemindersWebURL:       src.get("REMINDERS_WEB_URL", ""),
	}

	switch cfg.Backend {
	case BackendSQLite, BackendCalDAV, BackendGoogle:
	default:
		return nil, fmt.Errorf("invalid BACKEND %q: must be sqlite, caldav or google", cfg.Backend)
	}

	if cfg.Backend == BackendCalDAV && (cfg.CalDAVUsername == "" || cfg.CalDAVPassword == "") {
		return nil, fmt.Errorf("CALDAV_USERNAME and CALDAV_PASSWORD are required for the caldav backend")
	}

	if id := src.get("OWNER_TELEGRAM_ID", ""); id != "" {
		ownerID, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("OWNER_TELEGRAM_ID must be a number")
		}
		cfg.OwnerTelegramID = ownerID
	}

	tz, err := time.LoadLocation(src.get("TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}
	cfg.Timezone = tz

	policy, err := permission.ParsePolicy(src.get("PERMISSION_POLICY", string(permission.PolicyPrompt)))
	if err != nil {
		return nil, fmt.Errorf("invalid PERMISSION_POLICY: %w", err)
	}
	cfg.PermissionPolicy = policy

	return cfg, nil
}

// TelegramEnabled reports whether the bot presenter should run.
func (c *Config) TelegramEnabled() bool {
	return c.TelegramToken != "" && c.OwnerTelegramID != 0
}

func (c *Config) IsAllowedUser(telegramID int64) bool {
	return telegramID == c.OwnerTelegramID
}

// APIAuthEnabled reports whether /api requires basic auth.
func (c *Config) APIAuthEnabled() bool {
	return c.APIUsername != "" && c.APIPassword != ""
}
