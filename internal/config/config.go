// Package config loads client settings from the environment.
package config

import (
	"fmt"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds everything the command line tools need to reach a server.
type Config struct {
	ServerURL      string        `env:"ROCKETCHAT_URL,required=true" validate:"required,url"`
	Username       string        `env:"ROCKETCHAT_USER" validate:"required_without=Token"`
	Password       string        `env:"ROCKETCHAT_PASSWORD" validate:"required_with=Username"`
	Token          string        `env:"ROCKETCHAT_TOKEN"`
	Transport      string        `env:"ROCKETCHAT_TRANSPORT,default=nhooyr" validate:"oneof=nhooyr gobwas"`
	CallTimeout    time.Duration `env:"CALL_TIMEOUT,default=30s" validate:"gt=0"`
	SendRate       float64       `env:"SEND_RATE,default=10" validate:"gte=0"`
	SendBurst      int           `env:"SEND_BURST,default=5" validate:"gte=1"`
	MaxMessageSize int64         `env:"MAX_MESSAGE_SIZE,default=1048576" validate:"gte=1024"`
	LogLevel       string        `env:"LOG_LEVEL,default=info" validate:"oneof=debug info warn warning error"`
	LogFormat      string        `env:"LOG_FORMAT,default=text" validate:"oneof=text json"`
	LogOutput      string        `env:"LOG_OUTPUT,default=stderr"`
}

var validate = validator.New()

// Load reads an optional .env file, then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field rules that environment tags cannot express.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
