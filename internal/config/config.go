package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config определяет структуру конфигурации всего приложения целиком
type Config struct {
	HTTPServer `yaml:"http_server"`
	Storage    `yaml:"storage"`
	Postgres   `yaml:"postgres"`
	Kafka      `yaml:"kafka"`
	Redis      `yaml:"redis"`
	Printing   `yaml:"printing"`
	Dispatch   `yaml:"dispatch"`
	Logger     `yaml:"logger"`
}

// HTTPServer содержит конфигурацию для HTTP-сервера
type HTTPServer struct {
	Port    string        `yaml:"port"`
	Timeout time.Duration `yaml:"timeout"`
}

// Storage выбирает хранилище: postgres для продакшена, memory для локального запуска
type Storage struct {
	Driver string `yaml:"driver"`
	Seed   Seed   `yaml:"seed"`
}

// Seed содержит пользователей и файлы, которыми заполняется хранилище memory при старте
// в postgres их ведёт внешняя система
type Seed struct {
	Users []SeedUser `yaml:"users"`
	Files []SeedFile `yaml:"files"`
}

type SeedUser struct {
	ID             string `yaml:"id"`
	Name           string `yaml:"name"`
	AvailablePages int    `yaml:"available_pages"`
}

type SeedFile struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	TotalPages int    `yaml:"total_pages"`
	MimeType   string `yaml:"mime_type"`
	Path       string `yaml:"path"`
}

// Postgres содержит конфигурацию для подключения к базе данных
type Postgres struct {
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	DBName   string `yaml:"db_name"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int32  `yaml:"max_conns"`
}

// Kafka содержит конфигурацию канала уведомлений
// пустой список брокеров означает доставку уведомлений в процессе, без кафки
type Kafka struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	GroupID string   `yaml:"group_id"`
}

func (k Kafka) Enabled() bool {
	return len(k.Brokers) > 0
}

// Redis содержит адрес для межпроцессной аренды принтеров, пустой адрес её отключает
type Redis struct {
	Addr     string        `yaml:"addr"`
	LeaseTTL time.Duration `yaml:"lease_ttl"`
}

func (r Redis) Enabled() bool {
	return r.Addr != ""
}

// Printing содержит параметры расчёта и имитации печати
type Printing struct {
	StandardPageSize [2]float64    `yaml:"standard_page_size"`
	TimePerPage      time.Duration `yaml:"time_per_page"`
}

// Dispatch содержит политику повторов цикла диспетчера
type Dispatch struct {
	MaxRetries int           `yaml:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
	MaxBackoff time.Duration `yaml:"max_backoff"`
	LeaseRetry time.Duration `yaml:"lease_retry"`
}

// Logger содержит конфигурацию для логгера
type Logger struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func defaults() Config {
	return Config{
		HTTPServer: HTTPServer{Port: ":8080", Timeout: 10 * time.Second},
		Storage:    Storage{Driver: "postgres"},
		Postgres:   Postgres{Host: "localhost", Port: "5432", SSLMode: "disable", MaxConns: 10},
		Kafka:      Kafka{Topic: "printjob.events", GroupID: "print-queue-notifier"},
		Redis:      Redis{LeaseTTL: 30 * time.Second},
		Printing:   Printing{StandardPageSize: [2]float64{297, 210}, TimePerPage: time.Second},
		Dispatch: Dispatch{
			MaxRetries: 3,
			RetryDelay: time.Second,
			MaxBackoff: time.Minute,
			LeaseRetry: 5 * time.Second,
		},
		Logger: Logger{Level: "info", Format: "text"},
	}
}

// Load загружает конфигурацию из файла поверх значений по умолчанию
// перед чтением подхватывается .env, если он есть, а CONFIG_PATH подменяет пустой путь
func Load(configPath string) (*Config, error) {
	const op = "config.Load"

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: failed to load .env: %w", op, err)
	}

	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}
	if configPath == "" {
		return nil, fmt.Errorf("%s: CONFIG_PATH is not set", op)
	}

	file, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read config file: %w", op, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(file, &cfg); err != nil {
		return nil, fmt.Errorf("%s: failed to unmarshal config: %w", op, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &cfg, nil
}

// MustLoad загружает конфигурацию из файла по указанному пути
// в случае ошибки программа завершается с фатальной ошибкой
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		log.Fatal(err)
	}
	return cfg
}

// Validate проверяет значения, без которых сервис не сможет работать
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("invalid storage driver: %q (valid: postgres, memory)", c.Storage.Driver)
	}

	if c.Storage.Driver == "postgres" && c.Postgres.DBName == "" {
		return fmt.Errorf("postgres db_name is required")
	}

	if err := c.Storage.Seed.validate(); err != nil {
		return err
	}

	if c.Kafka.Enabled() && c.Kafka.Topic == "" {
		return fmt.Errorf("kafka topic is required when brokers are set")
	}

	if c.Printing.StandardPageSize[0] <= 0 || c.Printing.StandardPageSize[1] <= 0 {
		return fmt.Errorf("standard page size must be positive, got %v", c.Printing.StandardPageSize)
	}

	if c.Printing.TimePerPage < 0 {
		return fmt.Errorf("time per page must be non-negative")
	}

	if c.Dispatch.MaxRetries < 0 {
		return fmt.Errorf("max retries must be non-negative")
	}

	if c.Dispatch.RetryDelay <= 0 || c.Dispatch.MaxBackoff < c.Dispatch.RetryDelay {
		return fmt.Errorf("retry delay must be positive and not exceed max backoff")
	}

	if c.Dispatch.LeaseRetry <= 0 {
		return fmt.Errorf("lease retry must be positive")
	}

	if c.Redis.Enabled() && c.Redis.LeaseTTL <= 0 {
		return fmt.Errorf("redis lease ttl must be positive")
	}

	switch c.Logger.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format: %q (valid: text, json)", c.Logger.Format)
	}

	return nil
}

func (s Seed) validate() error {
	for i, u := range s.Users {
		if u.ID == "" || u.AvailablePages < 0 {
			return fmt.Errorf("seed user #%d needs an id and non-negative available_pages", i)
		}
	}
	for i, f := range s.Files {
		if f.ID == "" || f.TotalPages <= 0 {
			return fmt.Errorf("seed file #%d needs an id and positive total_pages", i)
		}
	}
	return nil
}
