package logger

import (
	"os"

	"go.uber.org/zap"
)

// InitLogger создаёт zap-логгер: production-конфиг по умолчанию,
// development при APP_ENV=dev.
func InitLogger() (*zap.Logger, error) {
	if os.Getenv("APP_ENV") == "dev" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
