package config

import (
	"fmt"
	"log"
	"net"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	HTTPPort     string `yaml:"http_port" env:"HTTP_PORT" env-default:"8080"`
	SQLitePath   string `yaml:"sqlite_path" env:"SQLITE_PATH" env-default:"./rooms.db"`
	JWTSecret    string `yaml:"jwt_secret" env:"JWT_SECRET" env-default:"change_me_in_production"`
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT" env-default:"otel-collector:4317"`

	Redis Redis `yaml:"redis"`
}

type Redis struct {
	Host string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port string `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
}

func (r Redis) Addr() string {
	return net.JoinHostPort(r.Host, r.Port)
}

// MustLoad reads configuration from the given YAML file, falling back to
// environment variables when the file does not exist.
func MustLoad(path string) *Config {
	var cfg Config

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			log.Fatalf("failed to read config %s: %v", path, err)
		}
		return &cfg
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		log.Fatalf("failed to read config from environment: %v", err)
	}
	return &cfg
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf(":%s", c.HTTPPort)
}
