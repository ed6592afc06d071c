package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port         string
	RateLimitRPM int

	// Dataset source
	DataSource   string
	DataDir      string
	DataBaseURL  string
	SQLiteDBPath string
	DatasetsFile string
	FetchTimeout time.Duration

	// Table page cache
	TableCacheSize int
	TableCacheTTL  time.Duration

	// AMQP (optional DatasetLoaded events)
	AMQPURL        string
	AMQPExchange   string
	AMQPRoutingKey string

	// Logging
	LogLevel  string
	LogFormat string
}

// Source names accepted by DATA_SOURCE.
const (
	SourceFiles  = "files"
	SourceHTTP   = "http"
	SourceSQLite = "sqlite"
)

var validSources = []string{SourceFiles, SourceHTTP, SourceSQLite}

func Load() *Config {
	cfg := &Config{
		Port:         getEnv("PORT", "8080"),
		RateLimitRPM: getEnvInt("RATE_LIMIT_RPM", 120),

		DataSource:   getEnv("DATA_SOURCE", SourceFiles),
		DataDir:      getEnv("DATA_DIR", "./data"),
		DataBaseURL:  getEnv("DATA_BASE_URL", ""),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/doge.db"),
		DatasetsFile: getEnv("DATASETS_FILE", ""),
		FetchTimeout: getEnvDuration("FETCH_TIMEOUT", 30*time.Second),

		TableCacheSize: getEnvInt("TABLE_CACHE_SIZE", 256),
		TableCacheTTL:  getEnvDuration("TABLE_CACHE_TTL", 10*time.Minute),

		AMQPURL:        getEnv("AMQP_URL", ""),
		AMQPExchange:   getEnv("AMQP_EXCHANGE", "dogedash"),
		AMQPRoutingKey: getEnv("AMQP_ROUTING_KEY", "dataset.loaded"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	isValidSource := false
	for _, s := range validSources {
		if c.DataSource == s {
			isValidSource = true
			break
		}
	}
	if !isValidSource {
		errors = append(errors, fmt.Sprintf("invalid data source '%s': must be one of %v", c.DataSource, validSources))
	}

	switch c.DataSource {
	case SourceFiles:
		if c.DataDir == "" {
			errors = append(errors, "data directory cannot be empty when using files source")
		}
	case SourceHTTP:
		if c.DataBaseURL == "" {
			errors = append(errors, "DATA_BASE_URL is required when using http source")
		} else if u, err := url.Parse(c.DataBaseURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid data base URL '%s': %v", c.DataBaseURL, err))
		} else if u.Scheme != "http" && u.Scheme != "https" {
			errors = append(errors, fmt.Sprintf("invalid data base URL scheme '%s': must be 'http' or 'https'", u.Scheme))
		}
	case SourceSQLite:
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite source")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if c.DatasetsFile != "" {
		if _, err := os.Stat(c.DatasetsFile); err != nil {
			errors = append(errors, fmt.Sprintf("datasets file '%s' is not readable: %v", c.DatasetsFile, err))
		}
	}

	if c.FetchTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid fetch timeout %v: must be at least 1 second", c.FetchTimeout))
	} else if c.FetchTimeout > 10*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid fetch timeout %v: must be at most 10 minutes", c.FetchTimeout))
	}

	if c.TableCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid table cache size %d: must be at least 1", c.TableCacheSize))
	}
	if c.TableCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid table cache TTL %v: must not be negative", c.TableCacheTTL))
	}
	if c.RateLimitRPM < 0 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must not be negative", c.RateLimitRPM))
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPRoutingKey == "" {
			errors = append(errors, "AMQP routing key cannot be empty when AMQP URL is provided")
		}
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
