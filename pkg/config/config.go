package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// OverflowPolicy controls what happens to a live-stream subscriber whose
// queue is full when new output arrives.
type OverflowPolicy string

const (
	OverflowDropOldest OverflowPolicy = "drop_oldest"
	OverflowDisconnect OverflowPolicy = "disconnect"
)

type Config struct {
	// Required fields
	JWTSecretKey string `mapstructure:"jwt_secret_key"`

	// Optional API settings
	APIHost string `mapstructure:"api_host"`
	APIPort int    `mapstructure:"api_port"`

	// Optional static API key (alternative to JWT, sent as X-API-Key)
	APIKey string `mapstructure:"api_key"`

	// Optional SSL settings
	SSLCert string `mapstructure:"ssl_cert"`
	SSLKey  string `mapstructure:"ssl_key"`

	// Optional CORS settings
	CORSOrigins []string `mapstructure:"cors_origins"`

	// Optional logging settings
	LogLevel string `mapstructure:"log_level"`

	// Optional JWT settings
	JWTAlgorithm string `mapstructure:"jwt_algorithm"`

	// Supervisor settings
	MaxBufferBytes       int            `mapstructure:"max_buffer_bytes"`
	DefaultGraceMillis   int            `mapstructure:"default_grace_millis"`
	KillWaitMillis       int            `mapstructure:"kill_wait_millis"`
	SubscriberQueueDepth int            `mapstructure:"subscriber_queue_depth"`
	OverflowPolicy       OverflowPolicy `mapstructure:"overflow_policy"`

	// Static paths
	ConfigPath string
	DBPath     string `mapstructure:"db_path"`
}

const (
	DefaultConfigPath           = "/etc/procwrap/config.yml"
	DefaultDBPath               = "/var/lib/procwrap/db.sqlite3"
	DefaultAPIHost              = "0.0.0.0"
	DefaultAPIPort              = 8337
	DefaultLogLevel             = "info"
	DefaultJWTAlgorithm         = "HS256"
	DefaultMaxBufferBytes       = 1 << 20
	DefaultGraceMillis          = 5000
	DefaultKillWaitMillis       = 5000
	DefaultSubscriberQueueDepth = 64
)

func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = DefaultConfigPath
	}

	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	// Set defaults
	viper.SetDefault("api_host", DefaultAPIHost)
	viper.SetDefault("api_port", DefaultAPIPort)
	viper.SetDefault("log_level", DefaultLogLevel)
	viper.SetDefault("jwt_algorithm", DefaultJWTAlgorithm)
	viper.SetDefault("db_path", DefaultDBPath)
	viper.SetDefault("max_buffer_bytes", DefaultMaxBufferBytes)
	viper.SetDefault("default_grace_millis", DefaultGraceMillis)
	viper.SetDefault("kill_wait_millis", DefaultKillWaitMillis)
	viper.SetDefault("subscriber_queue_depth", DefaultSubscriberQueueDepth)
	viper.SetDefault("overflow_policy", string(OverflowDropOldest))

	// Allow environment variable overrides
	viper.AutomaticEnv()
	viper.SetEnvPrefix("PROCWRAP")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.ConfigPath = configPath

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.JWTSecretKey == "" {
		return fmt.Errorf("jwt_secret_key is required")
	}

	if c.MaxBufferBytes <= 0 {
		return fmt.Errorf("max_buffer_bytes must be positive")
	}

	if c.DefaultGraceMillis < 0 {
		return fmt.Errorf("default_grace_millis must not be negative")
	}

	if c.KillWaitMillis <= 0 {
		return fmt.Errorf("kill_wait_millis must be positive")
	}

	if c.SubscriberQueueDepth <= 0 {
		return fmt.Errorf("subscriber_queue_depth must be positive")
	}

	if c.OverflowPolicy != OverflowDropOldest && c.OverflowPolicy != OverflowDisconnect {
		return fmt.Errorf("overflow_policy must be '%s' or '%s'", OverflowDropOldest, OverflowDisconnect)
	}

	// Validate SSL config if provided
	if c.SSLCert != "" || c.SSLKey != "" {
		if c.SSLCert == "" || c.SSLKey == "" {
			return fmt.Errorf("both ssl_cert and ssl_key must be provided")
		}
		if _, err := os.Stat(c.SSLCert); os.IsNotExist(err) {
			return fmt.Errorf("ssl_cert file does not exist: %s", c.SSLCert)
		}
		if _, err := os.Stat(c.SSLKey); os.IsNotExist(err) {
			return fmt.Errorf("ssl_key file does not exist: %s", c.SSLKey)
		}
	}

	return nil
}

func (c *Config) IsDevMode() bool {
	return os.Getenv("PROCWRAP_DEV_MODE") == "1"
}
