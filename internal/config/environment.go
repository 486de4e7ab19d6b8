package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// EnvironmentConfig holds secrets and environment switches loaded from
// process environment (optionally overlaid from a .env file), never from
// the YAML structural config.
type EnvironmentConfig struct {
	UpbitAccessKey     string
	UpbitSecretKey     string
	Environment        string
	TradingMode        string // "paper" | "live"
	LogLevel           string
	TelegramBotToken   string
	TelegramChatID     string
	DebugMode          bool
}

// LoadEnvironment reads .env (if present, ignored if missing) then
// process environment variables, matching the teacher's godotenv usage.
func LoadEnvironment(dotenvPath string) (EnvironmentConfig, error) {
	if dotenvPath != "" {
		_ = godotenv.Load(dotenvPath)
	} else {
		_ = godotenv.Load()
	}

	mode := getenvDefault("TRADING_MODE", "paper")
	if mode != "paper" && mode != "live" {
		return EnvironmentConfig{}, fmt.Errorf("config: TRADING_MODE must be paper or live, got %q", mode)
	}

	ec := EnvironmentConfig{
		UpbitAccessKey:   os.Getenv("UPBIT_ACCESS_KEY"),
		UpbitSecretKey:   os.Getenv("UPBIT_SECRET_KEY"),
		Environment:      getenvDefault("ENVIRONMENT", "development"),
		TradingMode:      mode,
		LogLevel:         getenvDefault("LOG_LEVEL", "info"),
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:   os.Getenv("TELEGRAM_CHAT_ID"),
		DebugMode:        os.Getenv("DEBUG_MODE") == "true",
	}

	if mode == "live" && (ec.UpbitAccessKey == "" || ec.UpbitSecretKey == "") {
		return EnvironmentConfig{}, fmt.Errorf("config: UPBIT_ACCESS_KEY and UPBIT_SECRET_KEY are required for live trading")
	}

	return ec, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
