package internal

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	ListenAddr     string       `mapstructure:"listen_addr"`
	AllowedOrigins []string     `mapstructure:"allowed_origins"`
	API            APIConfig    `mapstructure:"api"`
	Upload         UploadConfig `mapstructure:"upload"`
}

// APIConfig points the agent at the Pictallion photo API. The token is an
// opaque bearer string attached verbatim to outgoing requests.
type APIConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	Token          string `mapstructure:"token"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type UploadConfig struct {
	MaxBatchBytes int64 `mapstructure:"max_batch_bytes"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigFile("files/config.yaml")

	viper.SetDefault("listen_addr", "127.0.0.1:8780")
	viper.SetDefault("api.base_url", "http://127.0.0.1:8000")
	viper.SetDefault("api.timeout_seconds", 600)
	viper.SetDefault("upload.max_batch_bytes", 2*1024*1024*1024)

	// Try to read the config and provide more detailed error information
	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &config, nil
}
