package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
	LogLevel    string `koanf:"log_level"`

	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	Telephony TelephonyConfig `koanf:"telephony"`
	Reminder  ReminderConfig  `koanf:"reminder"`
}

type ServerConfig struct {
	Port            int           `koanf:"port" validate:"gt=0,lte=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

type RedisConfig struct {
	URL      string `koanf:"url"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`

	// SessionTTL bounds how long an idle call session survives in Redis.
	SessionTTL time.Duration `koanf:"session_ttl"`
}

// TelephonyConfig holds the outbound calling credentials and call options.
// AuthToken doubles as the webhook signing secret unless WebhookSecret is
// set explicitly; neither is ever logged.
type TelephonyConfig struct {
	AccountSID    string `koanf:"account_sid"`
	AuthToken     string `koanf:"auth_token"`
	FromNumber    string `koanf:"from_number"`
	WebhookSecret string `koanf:"webhook_secret"`

	// CallbackBaseURL is the externally reachable base for answer/status
	// webhooks, e.g. "https://crm.example.com".
	CallbackBaseURL string `koanf:"callback_base_url"`

	RingTimeout      time.Duration `koanf:"ring_timeout"`
	MachineDetection bool          `koanf:"machine_detection"`
	RecordCalls      bool          `koanf:"record_calls"`
	TranscribeCalls  bool          `koanf:"transcribe_calls"`

	VoiceName     string `koanf:"voice_name"`
	VoiceLanguage string `koanf:"voice_language"`

	// Outbound dial rate limiting applied by the initiator.
	DialsPerSecond float64 `koanf:"dials_per_second" validate:"gte=0"`
	DialBurst      int     `koanf:"dial_burst" validate:"gte=0"`
}

// SigningSecret returns the secret used for webhook signature validation.
func (t TelephonyConfig) SigningSecret() string {
	if t.WebhookSecret != "" {
		return t.WebhookSecret
	}
	return t.AuthToken
}

// ReminderConfig is the process-wide default for the reminder scheduler;
// per-tenant settings from the tenant repository override it.
type ReminderConfig struct {
	Enabled         bool `koanf:"enabled"`
	IntervalMinutes int  `koanf:"interval_minutes" validate:"gte=0"`
}

var configSections = map[string]bool{
	"server":    true,
	"database":  true,
	"redis":     true,
	"telephony": true,
	"reminder":  true,
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Load defaults
	defaults := &Config{
		Version:     "dev",
		Environment: "development",
		LogLevel:    "info",
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			DB:         0,
			SessionTTL: 2 * time.Hour,
		},
		Telephony: TelephonyConfig{
			RingTimeout:      30 * time.Second,
			MachineDetection: true,
			VoiceLanguage:    "en-IN",
			DialsPerSecond:   1,
			DialBurst:        5,
		},
		Reminder: ReminderConfig{
			Enabled:         true,
			IntervalMinutes: 60,
		},
	}

	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	// Load from config file if it exists; the file is optional.
	if path == "" {
		path = "configs/config.yaml"
	}
	_ = k.Load(file.Provider(path), yaml.Parser())

	// Override with environment variables. Only the leading section name
	// becomes a path separator, so keys like auth_token survive intact:
	// BCRM_TELEPHONY_AUTH_TOKEN -> telephony.auth_token.
	if err := k.Load(env.Provider("BCRM_", ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, "BCRM_"))
		parts := strings.SplitN(key, "_", 2)
		if len(parts) == 2 && configSections[parts[0]] {
			return parts[0] + "." + parts[1]
		}
		return key
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}
