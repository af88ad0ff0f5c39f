package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"
)

type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	DatabaseURL string `env:"DATABASE_URL"`

	// AssistantBaseURL points at the hosted music-assistant API. When empty,
	// the gateway answers through OpenAI directly (dev mode, no history).
	AssistantBaseURL string        `env:"ASSISTANT_BASE_URL"`
	AssistantTimeout time.Duration `env:"ASSISTANT_TIMEOUT" envDefault:"60s"`
	OpenAIAPIKey     string        `env:"OPENAI_API_KEY"`
	OpenAIModel      string        `env:"OPENAI_MODEL"`

	TypingIntervalMS   int           `env:"TYPING_INTERVAL_MS" envDefault:"15"`
	SendDedupeWindow   time.Duration `env:"SEND_DEDUPE_WINDOW" envDefault:"5s"`
	SessionIdleTimeout time.Duration `env:"SESSION_IDLE_TIMEOUT" envDefault:"30m"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.Wrap(err, "config: parse env")
	}
	return cfg, nil
}
