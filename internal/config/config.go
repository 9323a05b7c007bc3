package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/maltedev/retailsearch/internal/models"
)

type Config struct {
	Server   ServerConfig
	Search   SearchConfig
	Proxy    ProxyConfig
	Network  NetworkConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type SearchConfig struct {
	CacheTTL          time.Duration
	FetchTimeout      time.Duration
	AffiliateTagUS    string
	AffiliateTagCA    string
	BandwidthOptimize bool
	SweepInterval     time.Duration
}

type ProxyConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

type NetworkConfig struct {
	DetectionEnabled bool
	CIDRs            []string
	HostnameGlobs    []string
	ServerIP         string
	ServerHostname   string
}

type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	MaxConns int32
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	hostname, _ := os.Hostname()

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvOrDefault("SERVER_PORT", "8080"),
			Host:            getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Search: SearchConfig{
			CacheTTL:          getDurationOrDefault("SEARCH_CACHE_TTL", 24*time.Hour),
			FetchTimeout:      getDurationOrDefault("SEARCH_FETCH_TIMEOUT", 30*time.Second),
			AffiliateTagUS:    getEnvOrDefault("SEARCH_AFFILIATE_TAG_US", ""),
			AffiliateTagCA:    getEnvOrDefault("SEARCH_AFFILIATE_TAG_CA", ""),
			BandwidthOptimize: getBoolOrDefault("SEARCH_BANDWIDTH_OPTIMIZE", true),
			SweepInterval:     getDurationOrDefault("SEARCH_SWEEP_INTERVAL", time.Hour),
		},
		Proxy: ProxyConfig{
			Host:     getEnvOrDefault("PROXY_HOST", ""),
			Port:     getIntOrDefault("PROXY_PORT", 8080),
			Username: getEnvOrDefault("PROXY_USERNAME", ""),
			Password: getEnvOrDefault("PROXY_PASSWORD", ""),
		},
		Network: NetworkConfig{
			DetectionEnabled: getBoolOrDefault("NETWORK_DETECTION_ENABLED", false),
			CIDRs:            getStringSliceOrDefault("NETWORK_CIDRS", []string{}),
			HostnameGlobs:    getStringSliceOrDefault("NETWORK_HOSTNAME_GLOBS", []string{}),
			ServerIP:         getEnvOrDefault("NETWORK_SERVER_IP", ""),
			ServerHostname:   getEnvOrDefault("NETWORK_SERVER_HOSTNAME", hostname),
		},
		Database: DatabaseConfig{
			Enabled:  getBoolOrDefault("DB_ENABLED", false),
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getIntOrDefault("DB_PORT", 5432),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", ""),
			Name:     getEnvOrDefault("DB_NAME", "retailsearch"),
			MaxConns: int32(getIntOrDefault("DB_MAX_CONNS", 10)),
		},
		Redis: RedisConfig{
			Enabled:  getBoolOrDefault("REDIS_ENABLED", false),
			Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getIntOrDefault("REDIS_DB", 0),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Search.CacheTTL <= 0 {
		return fmt.Errorf("SEARCH_CACHE_TTL must be positive")
	}
	if c.Search.FetchTimeout <= 0 {
		return fmt.Errorf("SEARCH_FETCH_TIMEOUT must be positive")
	}
	if c.Proxy.Host != "" && c.Proxy.Username == "" {
		return fmt.Errorf("PROXY_USERNAME is required when PROXY_HOST is set")
	}
	return nil
}

// AffiliateTags maps countries to their configured associate tag.
func (c *Config) AffiliateTags() map[models.Country]string {
	return map[models.Country]string{
		models.CountryUS: c.Search.AffiliateTagUS,
		models.CountryCA: c.Search.AffiliateTagCA,
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}
