package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Config struct {
	Env            string `env:"ENVIRONMENT" envDefault:"development"`
	ServerPort     int    `env:"SERVER_PORT" envDefault:"8080"`
	BasicAuthCreds string `env:"BASIC_AUTH_CREDS"`
	DatabasePath   string `env:"DATABASE_PATH" envDefault:"data/vacancywatch.sqlite"`

	Catalog struct {
		BaseURL    string        `env:"CATALOG_BASE_URL" envDefault:"http://opendata.trudvsem.ru/api/v1/vacancies"`
		PageLimit  int           `env:"CATALOG_PAGE_LIMIT" envDefault:"100"`
		RatePerSec int           `env:"CATALOG_RATE_PER_SEC" envDefault:"5"`
		Timeout    time.Duration `env:"CATALOG_TIMEOUT" envDefault:"30s"`
		CacheTTL   time.Duration `env:"CATALOG_CACHE_TTL" envDefault:"10m"`
	}
	Redis struct {
		Addr     string `env:"REDIS_ADDR"`
		Password string `env:"REDIS_PASSWORD"`
		DB       int    `env:"REDIS_DB" envDefault:"0"`
	}
	Scheduler struct {
		PollInterval   time.Duration `env:"POLL_INTERVAL" envDefault:"24h"`
		NotifyInterval time.Duration `env:"NOTIFY_INTERVAL" envDefault:"24h"`
		Workers        int           `env:"SCHEDULER_WORKERS" envDefault:"5"`
		ShutdownGrace  time.Duration `env:"SHUTDOWN_GRACE" envDefault:"30s"`
	}
	Telegram struct {
		Token      string `env:"TELEGRAM_TOKEN"`
		RatePerSec int    `env:"TELEGRAM_RATE_PER_SEC" envDefault:"25"`
	}
	Mailgun struct {
		Domain      string `env:"MAILGUN_DOMAIN"`
		APIKey      string `env:"MAILGUN_API_KEY"`
		SenderFrom  string `env:"MAILGUN_SENDER_FROM" envDefault:"vacancywatch <noreply@vacancywatch.local>"`
		TimeoutSecs int    `env:"MAILGUN_TIMEOUT_SECS" envDefault:"10"`
	}

	log   *zap.Logger
	creds map[string]string
}

func NewConfig(lc fx.Lifecycle, log *zap.Logger) (*Config, error) {
	cfg := &Config{log: log}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	creds, err := cfg.parseCreds()
	if err != nil {
		if cfg.Env != "development" {
			return nil, err
		}
		cfg.log.Sugar().Infof("%s (credentials will be set to default in development env)", err)
		creds = map[string]string{"admin": "password"}
	}
	cfg.creds = creds

	return cfg, nil
}

func (cfg *Config) GetCreds() map[string]string {
	return cfg.creds
}

func (cfg *Config) parseCreds() (map[string]string, error) {
	if cfg.BasicAuthCreds == "" {
		return nil, errors.New("BASIC_AUTH_CREDS envvar must be populated")
	}

	creds := strings.Split(cfg.BasicAuthCreds, ",")
	result := make(map[string]string)
	for _, cred := range creds {
		userPass := strings.Split(cred, ":")
		if len(userPass) != 2 {
			return nil, fmt.Errorf("failed to parse '%s', each credential should be delimited by a colon -- user1:pass1,user2:pass2", cred)
		}

		user, pass := userPass[0], userPass[1]
		result[strings.Trim(user, " ")] = strings.Trim(pass, " ")
	}

	return result, nil
}
