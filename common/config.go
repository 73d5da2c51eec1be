package common

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds everything the server reads from the environment.
type Config struct {
	Port           string   `mapstructure:"port"`
	DBPath         string   `mapstructure:"quid_db"`
	SecretKey      string   `mapstructure:"secret_key"`
	AdminCode      string   `mapstructure:"admin_code"`
	AdminCodeHash  string   `mapstructure:"admin_code_hash"`
	AdminUser      string   `mapstructure:"admin_user"`
	AdminPassword  string   `mapstructure:"admin_password"`
	ListLimit      int      `mapstructure:"list_limit"`
	TrustedProxies []string `mapstructure:"trusted_proxies"`
	SSL            bool     `mapstructure:"ssl"`
	RateLimitRPS   float64  `mapstructure:"rate_limit_rps"`
	RateLimitBurst int      `mapstructure:"rate_limit_burst"`
	GinMode        string   `mapstructure:"gin_mode"`
	Domain         string   `mapstructure:"domain"`
}

// BasicAuthConfigured reports whether HTTP Basic credentials were provided.
func (c *Config) BasicAuthConfigured() bool {
	return c.AdminUser != "" && c.AdminPassword != ""
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "5000")
	v.SetDefault("quid_db", "quid.db")
	v.SetDefault("secret_key", "dev-key")
	v.SetDefault("admin_code", "letmein")
	v.SetDefault("admin_code_hash", "")
	v.SetDefault("admin_user", "")
	v.SetDefault("admin_password", "")
	v.SetDefault("list_limit", 100)
	v.SetDefault("trusted_proxies", []string{"127.0.0.1", "::1", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"})
	v.SetDefault("ssl", false)
	v.SetDefault("rate_limit_rps", 0)
	v.SetDefault("rate_limit_burst", 10)
	v.SetDefault("gin_mode", "release")
	v.SetDefault("domain", "http://localhost:5000")
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		panic(fmt.Errorf("decoding default config: %w", err))
	}
	return cfg
}

// LoadConfig reads .env, an optional config.yaml in the working directory and the
// environment, in increasing order of precedence.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, skipping")
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config.yaml: %w", err)
		}
	}

	return decodeConfig(v)
}

func decodeConfig(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if cfg.ListLimit <= 0 {
		cfg.ListLimit = 100
	}
	if cfg.SecretKey == "dev-key" {
		log.Println("WARNING: SECRET_KEY not set, using insecure default")
	}
	if cfg.AdminCode == "letmein" && cfg.AdminCodeHash == "" {
		log.Println("WARNING: ADMIN_CODE not set, using insecure default")
	}
	return cfg, nil
}
