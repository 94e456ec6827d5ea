package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is everything the postresult command reads from the environment.
// Flags override these values.
type Config struct {
	Host     string        `env:"EXTJOB_HOST"`
	Port     int           `env:"EXTJOB_PORT" envDefault:"8080"`
	Job      string        `env:"EXTJOB_JOB"`
	Encoding string        `env:"EXTJOB_ENCODING" envDefault:"hexBinary"`
	Timeout  time.Duration `env:"EXTJOB_TIMEOUT" envDefault:"30s"`

	Log     LogConfig     `envPrefix:"EXTJOB_LOG_"`
	Tracing TracingConfig `envPrefix:"EXTJOB_OTEL_"`
	S3      S3Config      `envPrefix:"EXTJOB_S3_"`

	// PushgatewayURL enables pushing reporter metrics after the post.
	PushgatewayURL string `env:"EXTJOB_PUSHGATEWAY_URL"`
}

type LogConfig struct {
	Level    string `env:"LEVEL" envDefault:"info"`
	Encoding string `env:"ENCODING" envDefault:"json"`
	Output   string `env:"OUTPUT" envDefault:"stderr"`
}

type TracingConfig struct {
	Enabled      bool    `env:"ENABLED" envDefault:"false"`
	Endpoint     string  `env:"ENDPOINT" envDefault:"localhost:4318"`
	Insecure     bool    `env:"INSECURE" envDefault:"true"`
	SamplingRate float64 `env:"SAMPLING_RATE" envDefault:"1.0"`
}

type S3Config struct {
	Region          string `env:"REGION"`
	Endpoint        string `env:"ENDPOINT"`
	AccessKeyID     string `env:"ACCESS_KEY_ID"`
	SecretAccessKey string `env:"SECRET_ACCESS_KEY"`
}

// Load reads the given .env files (missing ones are skipped) and parses the
// environment. Variables already set in the environment win over .env files.
func Load(envFiles ...string) (*Config, error) {
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", file, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	cfg.Sanitize()
	return &cfg, nil
}

// Sanitize applies guardrails to loaded values.
func (c *Config) Sanitize() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.Tracing.SamplingRate < 0 {
		c.Tracing.SamplingRate = 0
	}
	if c.Tracing.SamplingRate > 1 {
		c.Tracing.SamplingRate = 1
	}
}
