package config

import "github.com/caarlos0/env/v10"

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort          string `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL       string `env:"DATABASE_URL,required"`
	SessionSecret     string `env:"SESSION_SECRET"`
	SessionTTLMinutes int    `env:"SESSION_TTL_MINUTES" envDefault:"60"`
	SessionBackend    string `env:"SESSION_BACKEND" envDefault:"store"`
	HashAlgo          string `env:"HASH_ALGO" envDefault:"argon2id"`
	RedisAddr         string `env:"REDIS_ADDR"`
	RedisPassword     string `env:"REDIS_PASSWORD"`
	RedisDB           int    `env:"REDIS_DB" envDefault:"0"`
	UploadDir         string `env:"UPLOAD_DIR" envDefault:"uploads"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
