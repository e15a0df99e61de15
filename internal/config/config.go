package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

type Config struct {
	LogLevel   string `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	HTTPPort   string `yaml:"http-port" env:"HTTP_PORT" env-default:"9090"`
	SocketPort string `yaml:"socket-port" env:"SOCKET_PORT" env-default:"7777"`
	Store      string `yaml:"store" env:"STORE" env-default:"redis"`
	Redis      Redis  `yaml:"redis"`
	Game       Game   `yaml:"game"`
}

type Redis struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// Game holds the defaults and limits applied to newly created games.
type Game struct {
	DefaultGridSize     int `yaml:"default-grid-size" env-default:"3"`
	DefaultWinCondition int `yaml:"default-win-condition" env-default:"3"`
	MaxGridSize         int `yaml:"max-grid-size" env-default:"20"`
	// JoinRetries bounds how often a join retries after losing a slot race.
	JoinRetries int `yaml:"join-retries" env-default:"5"`
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config, err := Load(path)
	if err != nil {
		panic(err)
	}

	return config
}

// Load reads an optional .env file, then the yaml config at path with environment overrides.
// CONFIG_PATH replaces path when set.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("unable to load .env file: %w", err)
	}

	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		path = envPath
	}

	config := &Config{}
	if err := cleanenv.ReadConfig(path, config); err != nil {
		return nil, fmt.Errorf("unable to load config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (that *Config) Validate() error {
	if that.Store != StoreRedis && that.Store != StoreMemory {
		return fmt.Errorf("unknown store %q, expected %q or %q", that.Store, StoreRedis, StoreMemory)
	}

	if that.Game.MaxGridSize < that.Game.DefaultGridSize {
		return fmt.Errorf("max grid size %d is below the default %d", that.Game.MaxGridSize, that.Game.DefaultGridSize)
	}

	if that.Game.JoinRetries < 1 {
		return fmt.Errorf("join retries must be positive, got %d", that.Game.JoinRetries)
	}

	return nil
}

func (that *Redis) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}
