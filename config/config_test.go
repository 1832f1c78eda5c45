package config

import (
	"testing"
	"time"

	"babcia/internal/logger"

	"github.com/stretchr/testify/assert"
)

func validConfig() Config {
	return Config{
		ServerPort:           8288,
		DatabaseDriver:       DatabaseDriverSQLite,
		DatabasePath:         "babcia.db",
		ImageDir:             "images",
		AutoScanConcurrency:  2,
		BackgroundWakeBudget: 2 * time.Minute,
		DefaultPersona:       "classic",
	}
}

func TestValidateConfig(t *testing.T) {
	log := logger.New("config_test")

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid sqlite", mutate: func(*Config) {}},
		{
			name: "valid postgres",
			mutate: func(c *Config) {
				c.DatabaseDriver = DatabaseDriverPostgres
				c.DatabaseHost = "localhost"
				c.DatabaseName = "babcia"
				c.DatabaseUser = "babcia"
			},
		},
		{name: "invalid port", mutate: func(c *Config) { c.ServerPort = 0 }, wantErr: true},
		{name: "unknown driver", mutate: func(c *Config) { c.DatabaseDriver = "mysql" }, wantErr: true},
		{
			name:    "postgres without host",
			mutate:  func(c *Config) { c.DatabaseDriver = DatabaseDriverPostgres },
			wantErr: true,
		},
		{name: "sqlite without path", mutate: func(c *Config) { c.DatabasePath = "" }, wantErr: true},
		{
			name:    "cache address without port",
			mutate:  func(c *Config) { c.DatabaseCacheAddress = "localhost" },
			wantErr: true,
		},
		{name: "no image dir", mutate: func(c *Config) { c.ImageDir = "" }, wantErr: true},
		{name: "zero concurrency", mutate: func(c *Config) { c.AutoScanConcurrency = 0 }, wantErr: true},
		{name: "zero wake budget", mutate: func(c *Config) { c.BackgroundWakeBudget = 0 }, wantErr: true},
		{name: "unknown persona", mutate: func(c *Config) { c.DefaultPersona = "grandpa" }, wantErr: true},
		{
			name:    "production without jwt secret",
			mutate:  func(c *Config) { c.Environment = "production" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := validateConfig(cfg, log)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, cfg, GetConfig())
		})
	}
}
