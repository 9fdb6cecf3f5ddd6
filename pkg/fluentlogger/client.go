package fluentlogger

import (
	"fmt"
	"time"

	"github.com/fluent/fluent-logger-golang/fluent"
)

// Config хранит конфигурацию для подключения к Fluent Bit.
type Config struct {
	Host         string // Например, "127.0.0.1" или "fluent-bit" в Docker
	Port         int    // Например, 24224
	TagPrefix    string // Общий префикс для всех тегов логов сервиса
	WriteTimeout time.Duration
	Async        bool
}

// NewClient создает и возвращает новый клиент для Fluent Bit.
func NewClient(cfg Config) (*fluent.Fluent, error) {
	if cfg.TagPrefix == "" {
		return nil, fmt.Errorf("fluentd tag prefix is required")
	}

	logger, err := fluent.New(fluent.Config{
		FluentHost:   cfg.Host,
		FluentPort:   cfg.Port,
		TagPrefix:    cfg.TagPrefix,
		WriteTimeout: cfg.WriteTimeout,
		Async:        cfg.Async,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create fluentd logger: %w", err)
	}

	// Пинга нет: ошибки соединения проявятся при первой отправке лога.
	return logger, nil
}
