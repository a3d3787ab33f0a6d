package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds environment-based settings
type Config struct {
	Environment    string
	LogLevel       string
	ServerAddress  string
	DatabaseURL    string
	MigrationsPath string

	RedisAddress  string
	RedisUsername string
	RedisPassword string

	// MQTTBrokerURL empty disables the control channel.
	MQTTBrokerURL string
	DeviceID      string

	DisplayTimezone string
	CacheKey        string
	CacheMaxAge     time.Duration
	ReloadMaxPerDay int

	// Weather is fetched only when both coordinates are set.
	WeatherEnabled   bool
	WeatherLatitude  float64
	WeatherLongitude float64
}

func (c *Config) Development() bool {
	return c.Environment == "development"
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	cfg := &Config{
		Environment:     os.Getenv("APP_ENV"),
		LogLevel:        getenv("LOG_LEVEL", "info"),
		ServerAddress:   getenv("SERVER_ADDRESS", ":8080"),
		DatabaseURL:     dbURL,
		MigrationsPath:  getenv("MIGRATIONS_PATH", "./migrations"),
		RedisAddress:    getenv("REDIS_ADDRESS", "localhost:6379"),
		RedisUsername:   os.Getenv("REDIS_USERNAME"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		MQTTBrokerURL:   os.Getenv("MQTT_BROKER_URL"),
		DeviceID:        getenv("DEVICE_ID", "pano-1"),
		DisplayTimezone: getenv("DISPLAY_TIMEZONE", "Europe/Istanbul"),
		CacheKey:        getenv("CACHE_KEY", "player:bundle"),
		CacheMaxAge:     24 * time.Hour,
		ReloadMaxPerDay: 10,
	}

	if v := os.Getenv("CACHE_MAX_AGE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("CACHE_MAX_AGE must be a positive duration, got %q", v)
		}
		cfg.CacheMaxAge = d
	}

	if v := os.Getenv("RELOAD_MAX_PER_DAY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("RELOAD_MAX_PER_DAY must be a positive integer, got %q", v)
		}
		cfg.ReloadMaxPerDay = n
	}

	lat, lon := os.Getenv("WEATHER_LATITUDE"), os.Getenv("WEATHER_LONGITUDE")
	if lat != "" && lon != "" {
		var err error
		if cfg.WeatherLatitude, err = strconv.ParseFloat(lat, 64); err != nil {
			return nil, fmt.Errorf("invalid WEATHER_LATITUDE: %w", err)
		}
		if cfg.WeatherLongitude, err = strconv.ParseFloat(lon, 64); err != nil {
			return nil, fmt.Errorf("invalid WEATHER_LONGITUDE: %w", err)
		}
		cfg.WeatherEnabled = true
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
