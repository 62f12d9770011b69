package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
)

// Config holds every knob the process reads from the environment. Required
// credentials make LoadConfig fail; everything else has a default.
type Config struct {
	// Microsoft Graph client-credentials flow.
	ClientID     string
	ClientSecret string
	TenantID     string
	EmailAddress string

	// OpenAI completions.
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	CompletionsModel string

	// Telegram bot.
	TelegramBotToken string
	TelegramChatID   int64

	// HTTP front door.
	Port string

	// Fetch behaviour.
	FetchLimit         int
	FetchLookbackHours int
}

func getEnv(key, defaultValue string, printEnv bool) string {
	logger := log.Default()
	value := os.Getenv(key)
	if printEnv {
		logger.Info("Env", "key", key, "value", value)
	}
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvOrError(key string, printEnv bool) (string, error) {
	value := getEnv(key, "", printEnv)
	if value == "" {
		return "", fmt.Errorf("environment variable %s is not set", key)
	}
	return value, nil
}

func getEnvInt(key string, defaultValue int, printEnv bool) (int, error) {
	raw := getEnv(key, strconv.Itoa(defaultValue), printEnv)
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("environment variable %s must be an integer, got %q", key, raw)
	}
	return value, nil
}

func LoadConfig(printEnv bool) (*Config, error) {
	_ = godotenv.Load()

	conf := &Config{
		OpenAIBaseURL:    getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1", printEnv),
		CompletionsModel: getEnv("COMPLETIONS_MODEL", "gpt-4o-mini", printEnv),
		Port:             getEnv("PORT", "5000", printEnv),
	}

	var err error
	if conf.ClientID, err = getEnvOrError("CLIENT_ID", printEnv); err != nil {
		return nil, err
	}
	if conf.ClientSecret, err = getEnvOrError("CLIENT_SECRET", false); err != nil {
		return nil, err
	}
	if conf.TenantID, err = getEnvOrError("TENANT_ID", printEnv); err != nil {
		return nil, err
	}
	if conf.EmailAddress, err = getEnvOrError("EMAIL_ADDRESS", printEnv); err != nil {
		return nil, err
	}
	if conf.OpenAIAPIKey, err = getEnvOrError("OPENAI_API_KEY", false); err != nil {
		return nil, err
	}
	if conf.TelegramBotToken, err = getEnvOrError("TELEGRAM_BOT_TOKEN", false); err != nil {
		return nil, err
	}

	chatID, err := getEnvOrError("TELEGRAM_CHAT_ID", printEnv)
	if err != nil {
		return nil, err
	}
	conf.TelegramChatID, err = strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("environment variable TELEGRAM_CHAT_ID must be a numeric chat id, got %q", chatID)
	}

	if conf.FetchLimit, err = getEnvInt("FETCH_LIMIT", 5, printEnv); err != nil {
		return nil, err
	}
	if conf.FetchLimit <= 0 {
		return nil, fmt.Errorf("FETCH_LIMIT must be positive, got %d", conf.FetchLimit)
	}
	if conf.FetchLookbackHours, err = getEnvInt("FETCH_LOOKBACK_HOURS", 24, printEnv); err != nil {
		return nil, err
	}
	if conf.FetchLookbackHours < 0 {
		return nil, fmt.Errorf("FETCH_LOOKBACK_HOURS must not be negative, got %d", conf.FetchLookbackHours)
	}

	return conf, nil
}
