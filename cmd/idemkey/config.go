package main

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port     int    `yaml:"port"`
	Origin   string `yaml:"origin"`
	Provider string `yaml:"provider"`
	// DB is the SQLite database file for the sqlite provider.
	DB string `yaml:"db"`
	// DBMaxAge bounds SQLite entry lifetime as a Go duration string,
	// e.g. "24h". Empty keeps entries forever.
	DBMaxAge string      `yaml:"dbMaxAge"`
	Redis RedisConfig `yaml:"redis"`
	// ConflictStatus overrides the status code of replayed responses,
	// zero leaves the stored status untouched.
	ConflictStatus int        `yaml:"conflictStatus"`
	Lock           LockConfig `yaml:"lock"`
	// DefaultExempt switches to default-exempt mode, where only routes
	// with a required or manual marker are enforced.
	DefaultExempt bool          `yaml:"defaultExempt"`
	StoreStatuses []int         `yaml:"storeStatuses"`
	Routes        []RouteConfig `yaml:"routes"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	// TTL is the entry lifetime as a Go duration string, e.g. "24h".
	TTL string `yaml:"ttl"`
}

type LockConfig struct {
	Disabled bool `yaml:"disabled"`
	// Timeout is the lock wait budget as a Go duration string, e.g. "100ms".
	Timeout string `yaml:"timeout"`
}

type RouteConfig struct {
	Path     string `yaml:"path"`
	Required bool   `yaml:"required"`
	Exempt   bool   `yaml:"exempt"`
	Manual   bool   `yaml:"manual"`
}

func getConfig(filename string) (Config, error) {
	var config Config
	configBytes, err := os.ReadFile(filename)
	if err != nil {
		return config, err
	}
	err = yaml.Unmarshal(configBytes, &config)
	return config, err
}
