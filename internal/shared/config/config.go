package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config — полная конфигурация проекта. Заполняется из окружения,
// в dev перед этим подхватывается .env.
type Config struct {
	App      AppConfig
	Database DBConfig
	RabbitMQ MQConfig
	Redis    RedisConfig
	Services ServicesConfig
	JWT      JWTConfig
	Monitor  MonitorConfig
	Webhook  WebhookConfig
}

type AppConfig struct {
	Env      string `envconfig:"APP_ENV" default:"dev"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

type DBConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" default:"aureavia_user"`
	Password string `envconfig:"DB_PASSWORD" default:"aureavia_pass"`
	Database string `envconfig:"DB_NAME" default:"aureavia_db"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
}

// DSN собирает строку подключения для pgx.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

type MQConfig struct {
	Host     string `envconfig:"RABBITMQ_HOST" default:"localhost"`
	Port     int    `envconfig:"RABBITMQ_PORT" default:"5672"`
	User     string `envconfig:"RABBITMQ_USER" default:"guest"`
	Password string `envconfig:"RABBITMQ_PASSWORD" default:"guest"`
	VHost    string `envconfig:"RABBITMQ_VHOST" default:"/"`
}

// AMQPURL собирает URL подключения к RabbitMQ.
func (c MQConfig) AMQPURL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d%s", c.User, c.Password, c.Host, c.Port, c.VHost)
}

type RedisConfig struct {
	Addr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	Password string `envconfig:"REDIS_PASSWORD" default:""`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

type ServicesConfig struct {
	DispatchPort int `envconfig:"DISPATCH_SERVICE_PORT" default:"3000"`
	WebhookPort  int `envconfig:"WEBHOOK_SERVICE_PORT" default:"3001"`
}

type JWTConfig struct {
	Secret        string `envconfig:"JWT_SECRET" default:"dev_secret"`
	ExpiryMinutes int    `envconfig:"JWT_EXPIRY_MINUTES" default:"60"`
}

type MonitorConfig struct {
	Interval       time.Duration `envconfig:"MONITOR_INTERVAL" default:"60s"`
	CriticalWindow time.Duration `envconfig:"MONITOR_CRITICAL_WINDOW" default:"3h"`
}

type WebhookConfig struct {
	// Secret — bearer-секрет входящих вебхуков. Пустой — проверка выключена (dev).
	Secret string `envconfig:"WEBHOOK_SECRET" default:""`
	// RatePerSecond/Burst — пер-инстансный лимит входящих вебхуков.
	RatePerSecond float64 `envconfig:"WEBHOOK_RATE_PER_SECOND" default:"25"`
	Burst         int     `envconfig:"WEBHOOK_RATE_BURST" default:"50"`
}

// Load читает конфигурацию из окружения. Отсутствующий .env — не ошибка.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
