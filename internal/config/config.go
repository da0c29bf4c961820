package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName                string
	AppEnv                 string
	AppPort                string
	DatabaseURL            string
	RedisURL               string
	NATSURL                string
	JWTSecret              string
	ChannelBase            string
	RTCAppID               string
	RTCSecret              string
	RTCTokenTTL            time.Duration
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	SessionWindow          time.Duration
	CallRingWindow         time.Duration
	CallRemoveDelay        time.Duration
	SweepInterval          time.Duration
	AIProvider             string
	AIModel                string
	OpenAIAPIKey           string
	AnthropicAPIKey        string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("TELECARE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Telecare API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("channel.base", "telecare")
	v.SetDefault("rtc.token_ttl", "1h")
	v.SetDefault("cloudinary.folder", "telecare/chat")
	v.SetDefault("session.window", "10m")
	v.SetDefault("call.ring_window", "2m")
	v.SetDefault("call.remove_delay", "5s")
	v.SetDefault("sweep.interval", "30s")
	v.SetDefault("ai.provider", "openai")
	v.SetDefault("ai.model", "gpt-4o-mini")

	var durationErr error
	duration := func(key string) time.Duration {
		parsed, err := time.ParseDuration(v.GetString(key))
		if err != nil && durationErr == nil {
			durationErr = fmt.Errorf("invalid duration for %s: %w", key, err)
		}
		return parsed
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		JWTSecret:              v.GetString("jwt.secret"),
		ChannelBase:            v.GetString("channel.base"),
		RTCAppID:               v.GetString("rtc.app_id"),
		RTCSecret:              v.GetString("rtc.secret"),
		RTCTokenTTL:            duration("rtc.token_ttl"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		SessionWindow:          duration("session.window"),
		CallRingWindow:         duration("call.ring_window"),
		CallRemoveDelay:        duration("call.remove_delay"),
		SweepInterval:          duration("sweep.interval"),
		AIProvider:             strings.ToLower(v.GetString("ai.provider")),
		AIModel:                v.GetString("ai.model"),
		OpenAIAPIKey:           v.GetString("openai_api_key"),
		AnthropicAPIKey:        v.GetString("anthropic_api_key"),
	}

	if durationErr != nil {
		return Config{}, durationErr
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	return cfg, nil
}
