package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig — корневая структура конфигурации.
// Она зеркалит структуру config.yaml.
type AppConfig struct {
	Inference    InferenceConfig    `yaml:"inference"`
	Calc         CalcConfig         `yaml:"calc"`
	Archive      ArchiveConfig      `yaml:"archive"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	App          AppSpecific        `yaml:"app"`
}

// InferenceConfig — настройки инференс-коллаборатора (планировщика).
type InferenceConfig struct {
	Provider    string  `yaml:"provider"`    // "mock" или "openai"
	ModelName   string  `yaml:"model_name"`  // Реальное имя модели в API
	APIKey      string  `yaml:"api_key"`     // Поддерживает ${VAR}
	BaseURL     string  `yaml:"base_url"`    // Custom BaseURL для OpenAI-совместимых API
	Temperature float64 `yaml:"temperature"`
	RateLimit   int     `yaml:"rate_limit"`  // Запросов в минуту
	BurstLimit  int     `yaml:"burst_limit"` // Burst для rate limiter
	Timeout     string  `yaml:"timeout"`     // Timeout на один запрос (например, "30s")
}

// GetDefaults возвращает дефолтные значения для незаполненных полей.
func (c *InferenceConfig) GetDefaults() InferenceConfig {
	result := *c // Копируем текущие значения

	if result.Provider == "" {
		result.Provider = "mock"
	}
	if result.RateLimit == 0 {
		result.RateLimit = 60 // запросов в минуту
	}
	if result.BurstLimit == 0 {
		result.BurstLimit = 3
	}
	if result.Timeout == "" {
		result.Timeout = "30s"
	}

	return result
}

// CalcConfig — настройки калькулятор-сервиса.
type CalcConfig struct {
	HistoryDSN   string `yaml:"history_dsn"`   // DSN для sqlite истории операций
	HistoryLimit int    `yaml:"history_limit"` // Макс. записей возвращаемых History
}

// GetDefaults возвращает дефолтные значения для незаполненных полей.
func (c *CalcConfig) GetDefaults() CalcConfig {
	result := *c

	if result.HistoryDSN == "" {
		// Shared in-memory база: database/sql открывает несколько соединений,
		// поэтому нужен cache=shared вместо простого ":memory:"
		result.HistoryDSN = "file:calc_history?mode=memory&cache=shared"
	}
	if result.HistoryLimit == 0 {
		result.HistoryLimit = 50
	}

	return result
}

// ArchiveConfig — настройки архивации завершённых задач в объектное хранилище.
type ArchiveConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key"` // Поддерживает ${VAR}
	SecretKey string `yaml:"secret_key"` // Поддерживает ${VAR}
	UseSSL    bool   `yaml:"use_ssl"`
	Prefix    string `yaml:"prefix"` // Префикс ключей, default "tasks/"
}

// GetDefaults возвращает дефолтные значения для незаполненных полей.
func (c *ArchiveConfig) GetDefaults() ArchiveConfig {
	result := *c

	if result.Prefix == "" {
		result.Prefix = "tasks/"
	}

	return result
}

// OrchestratorConfig — настройки исполнителя цепочек и леджера задач.
//
// Интервалы задаются строками ("10m", "90s") и разбираются через
// time.ParseDuration — yaml.v3 не умеет time.Duration напрямую.
type OrchestratorConfig struct {
	Retention       string `yaml:"retention"`        // Сколько держать завершённые задачи ("10m")
	JanitorInterval string `yaml:"janitor_interval"` // Период уборки леджера
	EventBuffer     int    `yaml:"event_buffer"`     // Буфер канала событий
}

// GetDefaults возвращает дефолтные значения для незаполненных полей.
func (c *OrchestratorConfig) GetDefaults() OrchestratorConfig {
	result := *c

	if result.Retention == "" {
		result.Retention = "10m"
	}
	if result.JanitorInterval == "" {
		result.JanitorInterval = "1m"
	}
	if result.EventBuffer == 0 {
		result.EventBuffer = 64
	}

	return result
}

// Durations разбирает retention и janitor_interval.
func (c *OrchestratorConfig) Durations() (retention, interval time.Duration, err error) {
	def := c.GetDefaults()

	retention, err = time.ParseDuration(def.Retention)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid orchestrator.retention '%s': %w", def.Retention, err)
	}
	interval, err = time.ParseDuration(def.JanitorInterval)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid orchestrator.janitor_interval '%s': %w", def.JanitorInterval, err)
	}
	return retention, interval, nil
}

// AppSpecific — общие настройки приложения.
type AppSpecific struct {
	Debug bool `yaml:"debug"`
}

// Load читает YAML файл, подставляет ENV переменные и возвращает готовую структуру.
func Load(path string) (*AppConfig, error) {
	// 1. Проверяем существование файла
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found at: %s", path)
	}

	// 2. Читаем файл целиком
	rawBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// 3. Подставляем переменные окружения.
	// os.ExpandEnv заменяет ${VAR} или $VAR на значение из системы.
	contentWithEnv := os.ExpandEnv(string(rawBytes))

	// 4. Парсим YAML в структуру
	var cfg AppConfig
	if err := yaml.Unmarshal([]byte(contentWithEnv), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}

	// 5. Валидируем критические настройки
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// validate проверяет обязательные поля.
func (c *AppConfig) validate() error {
	inf := c.Inference.GetDefaults()
	if inf.Provider != "mock" && inf.Provider != "openai" {
		return fmt.Errorf("inference.provider must be 'mock' or 'openai', got '%s'", inf.Provider)
	}
	if inf.Provider == "openai" && inf.APIKey == "" {
		return fmt.Errorf("inference.api_key is required for provider 'openai'")
	}
	if _, _, err := c.Orchestrator.Durations(); err != nil {
		return err
	}
	if c.Archive.Enabled {
		if c.Archive.Bucket == "" {
			return fmt.Errorf("archive.bucket is required when archive is enabled")
		}
		if c.Archive.Endpoint == "" {
			return fmt.Errorf("archive.endpoint is required when archive is enabled")
		}
	}
	return nil
}
