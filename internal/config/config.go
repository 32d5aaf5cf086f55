package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	LogLevel  string    `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	HTTPPort  string    `yaml:"http-port" env:"PORT" env-default:"8080"`
	Redis     Redis     `yaml:"redis"`
	Heartbeat Heartbeat `yaml:"heartbeat"`
	Socket    Socket    `yaml:"socket"`
}

type Redis struct {
	Host         string        `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port         string        `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD" env-default:""`
	DB           int           `yaml:"db" env:"REDIS_DB" env-default:"0"`
	FlushOnStart bool          `yaml:"flush-on-start" env:"REDIS_FLUSH_ON_START" env-default:"false"`
	OpTimeout    time.Duration `yaml:"op-timeout" env:"REDIS_OP_TIMEOUT" env-default:"3s"`
}

type Heartbeat struct {
	Interval time.Duration `yaml:"interval" env:"HEARTBEAT_INTERVAL" env-default:"5s"`
}

type Socket struct {
	OutboxSize     int           `yaml:"outbox-size" env:"SOCKET_OUTBOX_SIZE" env-default:"256"`
	MaxMessageSize int64         `yaml:"max-message-size" env:"SOCKET_MAX_MESSAGE_SIZE" env-default:"512"`
	WriteWait      time.Duration `yaml:"write-wait" env:"SOCKET_WRITE_WAIT" env-default:"10s"`
	CheckOrigin    bool          `yaml:"check-origin" env:"SOCKET_CHECK_ORIGIN" env-default:"false"`
}

// MustLoad - load all configurations from the yaml file at path, or from the environment when the file is absent.
func MustLoad(path string) *Config {
	config, err := Load(path)
	if err != nil {
		panic(fmt.Errorf("unable to load config: %w", err))
	}

	return config
}

func Load(path string) (*Config, error) {
	config := &Config{}

	_, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		if err = cleanenv.ReadEnv(config); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}

		return config, nil
	}

	if err = cleanenv.ReadConfig(path, config); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return config, nil
}

func (that *Redis) GetRedisAddr() string {
	return net.JoinHostPort(that.Host, that.Port)
}
