// Package config defines the configuration contract and handles loading and
// validating environment configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	// Canonical environment variable keys.
	KeyTelegramToken         = "TELEGRAM_TOKEN"
	KeyBotUsername           = "BOT_USERNAME"
	KeyBotOwner              = "BOT_OWNER"
	KeyAPIBaseURL            = "API_BASE_URL"
	KeyAPISecretKey          = "API_SECRET_KEY"
	KeyMiniAppURL            = "MINI_APP_URL"
	KeyMiniAppStartappEnable = "MINI_APP_STARTAPP_ENABLED"
	KeyLogChannelID          = "LOG_CHANNEL_ID"
	KeyLogChannelEnabled     = "LOG_CHANNEL_ENABLED"
	KeyPaymentLogEnabled     = "PAYMENT_LOG_ENABLED"
	KeyAppEnv                = "APP_ENV"
	KeyLogLevel              = "LOG_LEVEL"
	KeyHTTPPort              = "HTTP_PORT"

	// Allowed environment values.
	EnvDevelopment = "development"
	EnvProduction  = "production"

	// Defaults for optional settings.
	DefaultAppEnv     = EnvProduction
	DefaultLogLevel   = "info"
	DefaultHTTPPort   = 8080
	DefaultAPIBaseURL = "http://localhost:3000/api/v2"
)

// VarSpec describes a single configuration key.
type VarSpec struct {
	Key         string // environment variable name
	Example     string // human-friendly sample value
	Required    bool   // whether the bot must refuse to start without this value
	Default     string // default when unset (empty when required)
	Description string // what the variable controls
	Notes       string // extra guidance or policies
}

// Contract enumerates the authoritative configuration keys for the bot.
// .env loading is only permitted when APP_ENV=development; production must rely
// on environment variables supplied by the runtime.
var Contract = []VarSpec{
	{
		Key:         KeyTelegramToken,
		Example:     "123:ABC",
		Required:    true,
		Description: "Telegram Bot Token issued by BotFather.",
	},
	{
		Key:         KeyBotUsername,
		Example:     "my_attribution_bot",
		Required:    true,
		Description: "Public bot username used to build t.me deep links (without @).",
	},
	{
		Key:         KeyBotOwner,
		Example:     "123456789",
		Required:    true,
		Description: "Telegram user_id allowed to run administrative commands (refunds).",
	},
	{
		Key:         KeyAPIBaseURL,
		Example:     DefaultAPIBaseURL,
		Default:     DefaultAPIBaseURL,
		Description: "Base URL of the backend lead API.",
	},
	{
		Key:         KeyAPISecretKey,
		Example:     "s3cret",
		Description: "Shared secret for the HTTP API bearer auth.",
		Notes:       "When unset, HTTP authentication is skipped with a startup warning.",
	},
	{
		Key:         KeyMiniAppURL,
		Example:     "https://app.example.com",
		Required:    true,
		Description: "Mini App URL used for the fallback WebApp button.",
	},
	{
		Key:         KeyMiniAppStartappEnable,
		Example:     "true",
		Default:     "true",
		Description: "Whether attributed startapp deep links are preferred over the WebApp button.",
	},
	{
		Key:         KeyLogChannelID,
		Example:     "-1001234567890",
		Description: "Chat id of the admin log channel.",
		Notes:       "Channel logging is silently disabled when unset.",
	},
	{
		Key:         KeyLogChannelEnabled,
		Example:     "true",
		Default:     "true",
		Description: "Master switch for channel logging.",
	},
	{
		Key:         KeyPaymentLogEnabled,
		Example:     "true",
		Default:     "true",
		Description: "Master switch for the payment logging HTTP endpoints.",
	},
	{
		Key:         KeyAppEnv,
		Example:     EnvDevelopment + " / " + EnvProduction,
		Default:     DefaultAppEnv,
		Description: "Runtime environment; controls log format and dotenv usage.",
		Notes:       "Load .env files only when APP_ENV=" + EnvDevelopment + ".",
	},
	{
		Key:         KeyLogLevel,
		Example:     DefaultLogLevel,
		Default:     DefaultLogLevel,
		Description: "Overrides default log level.",
	},
	{
		Key:         KeyHTTPPort,
		Example:     strconv.Itoa(DefaultHTTPPort),
		Default:     strconv.Itoa(DefaultHTTPPort),
		Description: "Port for the HTTP API (health, payment logging, invoices).",
	},
}

// Config mirrors resolved configuration values after loading.
type Config struct {
	TelegramToken         string
	BotUsername           string
	BotOwnerID            int64
	APIBaseURL            string
	APISecretKey          string
	MiniAppURL            string
	MiniAppStartappEnable bool
	LogChannelID          int64
	LogChannelEnabled     bool
	PaymentLogEnabled     bool
	AppEnv                string
	LogLevel              string
	HTTPPort              int
}

// Load resolves configuration from the environment (with optional dotenv in development).
func Load() (Config, error) {
	appEnv, err := resolveAppEnv()
	if err != nil {
		return Config{}, err
	}

	if err := loadDotEnv(appEnv); err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppEnv:        firstNonEmpty(normalizeEnv(os.Getenv(KeyAppEnv)), appEnv),
		TelegramToken: strings.TrimSpace(os.Getenv(KeyTelegramToken)),
		BotUsername:   strings.TrimPrefix(strings.TrimSpace(os.Getenv(KeyBotUsername)), "@"),
		APIBaseURL:    firstNonEmpty(strings.TrimSpace(os.Getenv(KeyAPIBaseURL)), DefaultAPIBaseURL),
		APISecretKey:  strings.TrimSpace(os.Getenv(KeyAPISecretKey)),
		MiniAppURL:    strings.TrimSpace(os.Getenv(KeyMiniAppURL)),
		LogLevel:      firstNonEmpty(strings.TrimSpace(os.Getenv(KeyLogLevel)), DefaultLogLevel),
		HTTPPort:      DefaultHTTPPort,
	}

	if err := validateAppEnv(cfg.AppEnv); err != nil {
		return Config{}, err
	}

	missing := make([]string, 0)

	if cfg.TelegramToken == "" {
		missing = append(missing, KeyTelegramToken)
	}

	if cfg.BotUsername == "" {
		missing = append(missing, KeyBotUsername)
	}

	if cfg.MiniAppURL == "" {
		missing = append(missing, KeyMiniAppURL)
	}

	ownerRaw := strings.TrimSpace(os.Getenv(KeyBotOwner))
	if ownerRaw == "" {
		missing = append(missing, KeyBotOwner)
	} else {
		ownerID, parseErr := strconv.ParseInt(ownerRaw, 10, 64)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeyBotOwner, parseErr)
		}
		cfg.BotOwnerID = ownerID
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variable(s): %s", strings.Join(missing, ", "))
	}

	channelRaw := strings.TrimSpace(os.Getenv(KeyLogChannelID))
	if channelRaw != "" {
		channelID, parseErr := strconv.ParseInt(channelRaw, 10, 64)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeyLogChannelID, parseErr)
		}
		cfg.LogChannelID = channelID
	}

	startappEnabled, err := parseBool(KeyMiniAppStartappEnable, true)
	if err != nil {
		return Config{}, err
	}
	cfg.MiniAppStartappEnable = startappEnabled

	channelEnabled, err := parseBool(KeyLogChannelEnabled, true)
	if err != nil {
		return Config{}, err
	}
	cfg.LogChannelEnabled = channelEnabled

	paymentLogEnabled, err := parseBool(KeyPaymentLogEnabled, true)
	if err != nil {
		return Config{}, err
	}
	cfg.PaymentLogEnabled = paymentLogEnabled

	httpPortRaw := strings.TrimSpace(os.Getenv(KeyHTTPPort))
	if httpPortRaw != "" {
		port, parseErr := strconv.Atoi(httpPortRaw)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeyHTTPPort, parseErr)
		}
		if port <= 0 {
			return Config{}, fmt.Errorf("%s must be greater than 0", KeyHTTPPort)
		}
		cfg.HTTPPort = port
	}

	return cfg, nil
}

// IsDevelopment reports if APP_ENV is development.
func (c Config) IsDevelopment() bool {
	return c.AppEnv == EnvDevelopment
}

// ChannelLoggingEnabled reports whether the admin channel sink is usable: both
// the master switch and a channel id must be present.
func (c Config) ChannelLoggingEnabled() bool {
	return c.LogChannelEnabled && c.LogChannelID != 0
}

// FormatRedacted renders a human-readable configuration summary with secrets
// masked, for the config-only startup check.
func FormatRedacted(cfg Config) string {
	lines := []string{
		"telegram_token: " + maskSecret(cfg.TelegramToken),
		"bot_username: " + cfg.BotUsername,
		"bot_owner: " + strconv.FormatInt(cfg.BotOwnerID, 10),
		"api_base_url: " + cfg.APIBaseURL,
		"api_secret_key: " + maskSecret(cfg.APISecretKey),
		"mini_app_url: " + cfg.MiniAppURL,
		"mini_app_startapp_enabled: " + strconv.FormatBool(cfg.MiniAppStartappEnable),
		"log_channel_id: " + maskChannelID(cfg.LogChannelID),
		"log_channel_enabled: " + strconv.FormatBool(cfg.LogChannelEnabled),
		"payment_log_enabled: " + strconv.FormatBool(cfg.PaymentLogEnabled),
		"app_env: " + cfg.AppEnv,
		"log_level: " + cfg.LogLevel,
		"http_port: " + strconv.Itoa(cfg.HTTPPort),
	}

	return strings.Join(lines, "\n")
}

func maskSecret(value string) string {
	if value == "" {
		return "(unset)"
	}
	if len(value) <= 4 {
		return "redacted"
	}
	return value[:4] + "...redacted"
}

func maskChannelID(id int64) string {
	if id == 0 {
		return "(unset)"
	}

	raw := strconv.FormatInt(id, 10)
	if len(raw) <= 4 {
		return "***"
	}
	return "***" + raw[len(raw)-4:]
}

func parseBool(key string, defaultValue bool) (bool, error) {
	raw := normalizeEnv(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}

	return value, nil
}

func resolveAppEnv() (string, error) {
	if explicit := normalizeEnv(os.Getenv(KeyAppEnv)); explicit != "" {
		return explicit, nil
	}

	dotEnvValues, err := godotenv.Read()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultAppEnv, nil
		}
		return "", fmt.Errorf("read .env: %w", err)
	}

	if envFromFile := normalizeEnv(dotEnvValues[KeyAppEnv]); envFromFile != "" {
		return envFromFile, nil
	}

	return DefaultAppEnv, nil
}

func loadDotEnv(appEnv string) error {
	if appEnv != EnvDevelopment {
		return nil
	}

	if err := godotenv.Load(); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load .env: %w", err)
	}

	return nil
}

func validateAppEnv(appEnv string) error {
	if appEnv == EnvDevelopment || appEnv == EnvProduction {
		return nil
	}

	return fmt.Errorf("invalid %s: must be %q or %q", KeyAppEnv, EnvDevelopment, EnvProduction)
}

func normalizeEnv(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func firstNonEmpty(values ...string) string {
	for _, val := range values {
		if strings.TrimSpace(val) != "" {
			return strings.TrimSpace(val)
		}
	}
	return ""
}
