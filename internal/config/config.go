package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	// Discord
	DiscordToken  string
	CommandPrefix string

	// Playback
	DefaultVolume    float64
	MaxStatusWaiters int
	FFmpegPath       string

	// Logging
	LogLevel string
}

func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("No .env file found, using environment variables only")
	}

	cfg := &Config{
		// Discord
		DiscordToken:  os.Getenv("DISCORD_TOKEN"),
		CommandPrefix: getEnvOrDefault("COMMAND_PREFIX", "!"),

		// Playback
		DefaultVolume:    getFloatEnvOrDefault("DEFAULT_VOLUME", 1.0),
		MaxStatusWaiters: getIntEnvOrDefault("MAX_STATUS_WAITERS", 8),
		FFmpegPath:       getEnvOrDefault("FFMPEG_PATH", "ffmpeg"),

		// Logging
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
	}

	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	if c.DiscordToken == "" {
		return fmt.Errorf("DISCORD_TOKEN is required")
	}

	if c.CommandPrefix == "" {
		return fmt.Errorf("COMMAND_PREFIX must not be empty")
	}

	if c.DefaultVolume < 0 || c.DefaultVolume > 2 {
		return fmt.Errorf("DEFAULT_VOLUME must be in [0, 2]")
	}

	if c.MaxStatusWaiters < 0 {
		return fmt.Errorf("MAX_STATUS_WAITERS must not be negative")
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnvOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getFloatEnvOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}
