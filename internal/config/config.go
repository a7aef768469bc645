package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	DBDSN               string
	TelegramToken       string
	Environment         string
	ServiceName         string
	LogLevel            string // пусто - уровень по окружению
	MigrationsDir       string
	Location            *time.Location
	WorkdayStart        time.Duration
	WorkdayEnd          time.Duration
	BreakStart          time.Duration
	BreakEnd            time.Duration
	SlotDuration        time.Duration
	HorizonDays         int
	MinDuration         int // минуты
	MaxDuration         int // минуты
	Retention           time.Duration
	MaintenanceInterval time.Duration
}

func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файла нет)
	if err := godotenv.Load(".env"); err != nil {
		log.Println("⚠️  No .env file found, using environment variables")
	} else {
		log.Println("✅ Loaded configuration from .env file")
	}

	return FromEnv(os.Getenv)
}

// FromEnv собирает конфигурацию из функции чтения переменных окружения
func FromEnv(getenv func(string) string) (*Config, error) {
	r := reader{getenv: getenv}

	cfg := &Config{
		DBDSN:               getenv("DB_DSN"),
		TelegramToken:       getenv("TELEGRAM_TOKEN"),
		Environment:         r.str("ENV", "development"),
		ServiceName:         r.str("SERVICE_NAME", "consultd"),
		LogLevel:            r.level("LOG_LEVEL"),
		MigrationsDir:       r.str("MIGRATIONS_DIR", "migrations"),
		WorkdayStart:        r.clock("WORKDAY_START", "09:00"),
		WorkdayEnd:          r.clock("WORKDAY_END", "17:00"),
		BreakStart:          r.clock("BREAK_START", "12:00"),
		BreakEnd:            r.clock("BREAK_END", "13:00"),
		SlotDuration:        time.Duration(r.integer("SLOT_MINUTES", 15)) * time.Minute,
		HorizonDays:         r.integer("HORIZON_DAYS", 7),
		MinDuration:         r.integer("MIN_DURATION_MINUTES", 15),
		MaxDuration:         r.integer("MAX_DURATION_MINUTES", 120),
		Retention:           time.Duration(r.integer("RETENTION_DAYS", 7)) * 24 * time.Hour,
		MaintenanceInterval: r.duration("MAINTENANCE_INTERVAL", time.Hour),
	}

	tz := r.str("TIMEZONE", "Local")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("TIMEZONE: %w", err))
	}
	cfg.Location = loc

	if len(r.errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %w", errors.Join(r.errs...))
	}

	if cfg.MaintenanceInterval <= 0 {
		return nil, fmt.Errorf("MAINTENANCE_INTERVAL must be positive")
	}

	return cfg, nil
}

type reader struct {
	getenv func(string) string
	errs   []error
}

func (r *reader) str(key, def string) string {
	if v := r.getenv(key); v != "" {
		return v
	}
	return def
}

func (r *reader) integer(key string, def int) int {
	v := r.getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (r *reader) level(key string) string {
	v := r.getenv(key)
	if v == "" {
		return ""
	}
	if _, err := zapcore.ParseLevel(v); err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return ""
	}
	return v
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	v := r.getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

// clock разбирает время суток HH:MM в смещение от полуночи
func (r *reader) clock(key, def string) time.Duration {
	v := r.str(key, def)
	t, err := time.Parse("15:04", v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return 0
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute
}

func (c *Config) GetDBDSN() string {
	return c.DBDSN
}

func (c *Config) TelegramEnabled() bool {
	return c.TelegramToken != ""
}
