package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func setRequired(t *testing.T) {
	t.Helper()

	t.Setenv(KeyTelegramToken, "token")
	t.Setenv(KeyBotUsername, "test_bot")
	t.Setenv(KeyBotOwner, "12345")
	t.Setenv(KeyMiniAppURL, "https://app.example.com")
}

func TestLoadDefaultsAndRequired(t *testing.T) {
	unsetEnv(t, KeyAppEnv)
	unsetEnv(t, KeyHTTPPort)
	unsetEnv(t, KeyLogLevel)
	unsetEnv(t, KeyAPIBaseURL)
	unsetEnv(t, KeyLogChannelID)
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected config to load, got error: %v", err)
	}

	if cfg.AppEnv != DefaultAppEnv {
		t.Fatalf("expected app env %s, got %s", DefaultAppEnv, cfg.AppEnv)
	}

	if cfg.BotOwnerID != 12345 {
		t.Fatalf("expected bot owner id to be parsed, got %d", cfg.BotOwnerID)
	}

	if cfg.HTTPPort != DefaultHTTPPort {
		t.Fatalf("expected default http port %d, got %d", DefaultHTTPPort, cfg.HTTPPort)
	}

	if cfg.APIBaseURL != DefaultAPIBaseURL {
		t.Fatalf("expected default api base url, got %s", cfg.APIBaseURL)
	}

	if !cfg.MiniAppStartappEnable || !cfg.LogChannelEnabled || !cfg.PaymentLogEnabled {
		t.Fatalf("expected feature switches to default to true, got %+v", cfg)
	}

	if cfg.ChannelLoggingEnabled() {
		t.Fatalf("expected channel logging to be unusable without a channel id")
	}
}

func TestLoadFailsOnMissingRequired(t *testing.T) {
	unsetEnv(t, KeyAppEnv)

	unsetEnv(t, KeyTelegramToken)
	t.Setenv(KeyBotUsername, "test_bot")
	t.Setenv(KeyBotOwner, "999")
	t.Setenv(KeyMiniAppURL, "https://app.example.com")

	_, err := Load()
	if err == nil {
		t.Fatalf("expected missing required env to error")
	}

	if !strings.Contains(err.Error(), KeyTelegramToken) {
		t.Fatalf("expected error to mention missing %s, got %v", KeyTelegramToken, err)
	}
}

func TestLoadStripsUsernamePrefix(t *testing.T) {
	unsetEnv(t, KeyAppEnv)
	setRequired(t)
	t.Setenv(KeyBotUsername, "@test_bot")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected config to load, got error: %v", err)
	}

	if cfg.BotUsername != "test_bot" {
		t.Fatalf("expected @ prefix to be stripped, got %s", cfg.BotUsername)
	}
}

func TestLoadValidatesOwnerID(t *testing.T) {
	unsetEnv(t, KeyAppEnv)
	setRequired(t)
	t.Setenv(KeyBotOwner, "abc")

	_, err := Load()
	if err == nil {
		t.Fatalf("expected error for invalid %s", KeyBotOwner)
	}

	if !strings.Contains(err.Error(), KeyBotOwner) {
		t.Fatalf("expected error to mention %s, got %v", KeyBotOwner, err)
	}
}

func TestLoadValidatesChannelID(t *testing.T) {
	unsetEnv(t, KeyAppEnv)
	setRequired(t)
	t.Setenv(KeyLogChannelID, "not-a-chat")

	_, err := Load()
	if err == nil {
		t.Fatalf("expected error for invalid %s", KeyLogChannelID)
	}

	if !strings.Contains(err.Error(), KeyLogChannelID) {
		t.Fatalf("expected error to mention %s, got %v", KeyLogChannelID, err)
	}
}

func TestLoadValidatesHTTPPort(t *testing.T) {
	unsetEnv(t, KeyAppEnv)
	setRequired(t)
	t.Setenv(KeyHTTPPort, "-1")

	_, err := Load()
	if err == nil {
		t.Fatalf("expected error for invalid %s", KeyHTTPPort)
	}

	if !strings.Contains(err.Error(), KeyHTTPPort) {
		t.Fatalf("expected error to mention %s, got %v", KeyHTTPPort, err)
	}
}

func TestLoadValidatesBooleans(t *testing.T) {
	unsetEnv(t, KeyAppEnv)
	setRequired(t)
	t.Setenv(KeyPaymentLogEnabled, "maybe")

	_, err := Load()
	if err == nil {
		t.Fatalf("expected error for invalid %s", KeyPaymentLogEnabled)
	}

	if !strings.Contains(err.Error(), KeyPaymentLogEnabled) {
		t.Fatalf("expected error to mention %s, got %v", KeyPaymentLogEnabled, err)
	}
}

func TestLoadUsesDotEnvInDevelopment(t *testing.T) {
	tmpDir := t.TempDir()
	dotenvContent := []byte(`
APP_ENV=development
TELEGRAM_TOKEN=dotenv-token
BOT_USERNAME=dotenv_bot
BOT_OWNER=77
MINI_APP_URL=https://dotenv.example.com
LOG_CHANNEL_ID=-100900
HTTP_PORT=9091
LOG_LEVEL=debug
`)

	if err := os.WriteFile(filepath.Join(tmpDir, ".env"), dotenvContent, 0o644); err != nil {
		t.Fatalf("failed to write dotenv: %v", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd failed: %v", err)
	}

	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}

	t.Cleanup(func() {
		_ = os.Chdir(cwd)
	})

	unsetEnv(t, KeyAppEnv)
	unsetEnv(t, KeyTelegramToken)
	unsetEnv(t, KeyBotUsername)
	unsetEnv(t, KeyBotOwner)
	unsetEnv(t, KeyMiniAppURL)
	unsetEnv(t, KeyLogChannelID)
	unsetEnv(t, KeyHTTPPort)
	unsetEnv(t, KeyLogLevel)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected dotenv-backed config to load, got error: %v", err)
	}

	if cfg.AppEnv != EnvDevelopment {
		t.Fatalf("expected development env from dotenv, got %s", cfg.AppEnv)
	}

	if cfg.TelegramToken != "dotenv-token" {
		t.Fatalf("expected token from dotenv, got %s", cfg.TelegramToken)
	}

	if cfg.BotOwnerID != 77 {
		t.Fatalf("expected owner id 77 from dotenv, got %d", cfg.BotOwnerID)
	}

	if cfg.LogChannelID != -100900 {
		t.Fatalf("expected channel id from dotenv, got %d", cfg.LogChannelID)
	}

	if !cfg.ChannelLoggingEnabled() {
		t.Fatalf("expected channel logging to be enabled with channel id set")
	}

	if cfg.HTTPPort != 9091 {
		t.Fatalf("expected http port from dotenv, got %d", cfg.HTTPPort)
	}

	if cfg.LogLevel != "debug" {
		t.Fatalf("expected log level from dotenv, got %s", cfg.LogLevel)
	}
}

func TestFormatRedactedMasksSecrets(t *testing.T) {
	cfg := Config{
		TelegramToken:     "abcd1234secret",
		BotUsername:       "test_bot",
		BotOwnerID:        42,
		APIBaseURL:        "https://backend.example.com/api/v2",
		APISecretKey:      "supersecretkey",
		MiniAppURL:        "https://app.example.com",
		LogChannelID:      -1001234567890,
		LogChannelEnabled: true,
		AppEnv:            EnvDevelopment,
		LogLevel:          "debug",
		HTTPPort:          9000,
	}

	summary := FormatRedacted(cfg)

	if strings.Contains(summary, "1234secret") {
		t.Fatalf("expected telegram token to be redacted, got %s", summary)
	}

	if !strings.Contains(summary, "telegram_token: abcd...redacted") {
		t.Fatalf("expected telegram token to show masked prefix, got %s", summary)
	}

	if strings.Contains(summary, "supersecretkey") {
		t.Fatalf("expected api secret to be redacted, got %s", summary)
	}

	if strings.Contains(summary, "-1001234567890") {
		t.Fatalf("expected channel id to be masked, got %s", summary)
	}

	if !strings.Contains(summary, "log_channel_id: ***7890") {
		t.Fatalf("expected channel id suffix to remain, got %s", summary)
	}
}

func unsetEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	_ = os.Unsetenv(key)
}
