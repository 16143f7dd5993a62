package utils

import (
	"log/slog"
	"os"
	"time"
)

type Config struct {
	port   string
	dbFile string

	adminUsername string
	adminPassword string

	sessionLifetime          time.Duration
	metricCollectionInterval time.Duration
}

func NewConfig() *Config {
	return &Config{
		port: func() string {
			port := os.Getenv("PORT")
			if port == "" {
				port = "8080"
			}
			slog.Debug("env", "PORT", port)
			return port
		}(),

		dbFile: func() string {
			dbFile := os.Getenv("DB_FILE")
			if dbFile == "" {
				dbFile = "./data/buses.db"
			}
			slog.Debug("env", "DB_FILE", dbFile)
			return dbFile
		}(),

		adminUsername: func() string {
			adminUsername := os.Getenv("ADMIN_USERNAME")
			if adminUsername == "" {
				slog.Warn("ADMIN_USERNAME is not set")
				adminUsername = "admin"
			}
			return adminUsername
		}(),
		adminPassword: func() string {
			adminPassword := os.Getenv("ADMIN_PASSWORD")
			if adminPassword == "" {
				slog.Warn("ADMIN_PASSWORD is not set")
				adminPassword = "password123"
			}
			return adminPassword
		}(),

		sessionLifetime: func() time.Duration {
			sessionLifetime := os.Getenv("SESSION_LIFETIME")
			if sessionLifetime == "" {
				slog.Warn("SESSION_LIFETIME is not set")
				sessionLifetime = "168h" // 1 week
			}
			duration, err := time.ParseDuration(sessionLifetime)
			if err != nil {
				slog.Error("invalid SESSION_LIFETIME", "error", err)
				os.Exit(1)
			}
			slog.Debug("env", "SESSION_LIFETIME", sessionLifetime, "duration", duration)
			return duration
		}(),

		metricCollectionInterval: func() time.Duration {
			metricCollectionInterval := os.Getenv("METRIC_COLLECTION_INTERVAL")
			if metricCollectionInterval == "" {
				metricCollectionInterval = "60s"
			}
			duration, err := time.ParseDuration(metricCollectionInterval)
			if err != nil {
				slog.Error("invalid METRIC_COLLECTION_INTERVAL", "error", err)
				os.Exit(1)
			}
			slog.Debug("env", "METRIC_COLLECTION_INTERVAL", metricCollectionInterval, "duration", duration)
			return duration
		}(),
	}
}

func (c *Config) GetPort() string {
	return c.port
}

func (c *Config) GetDbFile() string {
	return c.dbFile
}

func (c *Config) GetAdminUsername() string {
	return c.adminUsername
}

func (c *Config) GetAdminPassword() string {
	return c.adminPassword
}

func (c *Config) GetSessionLifetime() time.Duration {
	return c.sessionLifetime
}

func (c *Config) GetMetricCollectionInterval() time.Duration {
	return c.metricCollectionInterval
}
