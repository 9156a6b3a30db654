package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	App      App      `yaml:"app"`
	HTTP     HTTP     `yaml:"http"`
	Log      Log      `yaml:"log"`
	Postgres Postgres `yaml:"postgres"`
	Redis    Redis    `yaml:"redis"`
	Kafka    Kafka    `yaml:"kafka"`
	Ingest   Ingest   `yaml:"ingest"`
	Pipeline Pipeline `yaml:"pipeline"`
	Cache    Cache    `yaml:"cache"`
}

type App struct {
	Name    string `yaml:"name" env:"APP_NAME" env-default:"vaxtrace"`
	Version string `yaml:"version" env:"APP_VERSION" env-default:"1.0.0"`
}

type HTTP struct {
	Port string `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
}

type Log struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

type Postgres struct {
	Host     string `yaml:"host" env:"POSTGRES_HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"POSTGRES_PORT" env-default:"5432"`
	User     string `yaml:"user" env:"POSTGRES_USER" env-default:"vaxtrace"`
	Password string `yaml:"password" env:"POSTGRES_PASSWORD" env-default:"vaxtrace"`
	DBName   string `yaml:"dbname" env:"POSTGRES_DB" env-default:"vaxtrace_db"`
}

type Redis struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD" env-default:""`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

type Kafka struct {
	Brokers []string `yaml:"brokers" env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	Topic   string   `yaml:"topic" env:"KAFKA_TOPIC" env-default:"vaxtrace-notifications"`
	GroupID string   `yaml:"group_id" env:"KAFKA_GROUP_ID" env-default:"vaxtrace-ingest-1"`
}

type Ingest struct {
	// Secret is shared with the upstream system of record; notifications
	// arrive with an HMAC-SHA256 of the raw body computed over it.
	Secret string `yaml:"secret" env:"INGEST_SECRET" env-default:""`
}

type Pipeline struct {
	TickInterval time.Duration `yaml:"tick_interval" env:"PIPELINE_TICK_INTERVAL" env-default:"1s"`
	AlertTTL     time.Duration `yaml:"alert_ttl" env:"PIPELINE_ALERT_TTL" env-default:"1h"`
}

type Cache struct {
	// TTL classes: short for volatile aggregates, medium for alerts,
	// long for slowly-changing geo data.
	ShortTTL  time.Duration `yaml:"short_ttl" env:"CACHE_SHORT_TTL" env-default:"5m"`
	MediumTTL time.Duration `yaml:"medium_ttl" env:"CACHE_MEDIUM_TTL" env-default:"1h"`
	LongTTL   time.Duration `yaml:"long_ttl" env:"CACHE_LONG_TTL" env-default:"24h"`
}

func New() (*Config, error) {
	cfg := &Config{}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		// fallback to env vars if file not found
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("config error: %w", err)
		}
	} else {
		// Allow env vars to override config file
		cleanenv.ReadEnv(cfg)
	}

	return cfg, nil
}
