package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig — конфигурация ядра: напоминания, повторы доставки, лимиты.
type AppConfig struct {
	// HTTP
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`

	// Точка отправки сообщений (Bot API).
	BotAPIURL   string        `envconfig:"BOT_API_URL" default:"https://api.telegram.org"`
	BotToken    string        `envconfig:"BOT_TOKEN" required:"true"`
	SendTimeout time.Duration `envconfig:"SEND_TIMEOUT" default:"10s"`

	// Планировщик напоминаний.
	PollInterval    time.Duration   `envconfig:"POLL_INTERVAL" default:"5s"`
	ReminderOffsets []time.Duration `envconfig:"REMINDER_OFFSETS" default:"6h,3h,2h"`

	// Пул доставки.
	WorkerCount     int           `envconfig:"WORKER_COUNT" default:"2"`
	RateLimitPerSec float64       `envconfig:"RATE_LIMIT_PER_SEC" default:"10"`
	RetryBase       time.Duration `envconfig:"RETRY_BASE" default:"30s"`
	RetryCap        time.Duration `envconfig:"RETRY_CAP" default:"1h"`
	MaxAttempts     int           `envconfig:"MAX_ATTEMPTS" default:"8"`
	ClaimLease      time.Duration `envconfig:"CLAIM_LEASE" default:"5m"`
}

// LoadAppConfig читает конфигурацию из окружения.
func LoadAppConfig() (*AppConfig, error) {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
