package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. TINYQP_DATA_DIR
const EnvPrefix = "TINYQP"

// Server holds runtime settings of the query server
type Server struct {
	Port           string        `mapstructure:"port"`
	DataDir        string        `mapstructure:"data_dir"`
	InMemory       bool          `mapstructure:"in_memory"`
	MaxMemoryMB    int64         `mapstructure:"max_memory_mb"`
	QueryTimeout   time.Duration `mapstructure:"query_timeout"`
	QueryMaxRows   int           `mapstructure:"query_max_rows"`
	GCInterval     time.Duration `mapstructure:"gc_interval"`
	GCDiscardRatio float64       `mapstructure:"gc_discard_ratio"`

	// Retention is how far behind the newest sample data is kept, in
	// timestamp units. 0 keeps everything.
	Retention         int64         `mapstructure:"retention"`
	RetentionInterval time.Duration `mapstructure:"retention_interval"`
}

// Load reads settings from an optional config file and TINYQP_* environment
// variables. Environment wins over the file; unset keys keep their defaults.
func Load(file string) (*Server, error) {
	v := viper.New()

	v.SetDefault("port", DefaultPort)
	v.SetDefault("data_dir", DefaultDataDir)
	v.SetDefault("in_memory", false)
	v.SetDefault("max_memory_mb", DefaultMaxMemoryMB)
	v.SetDefault("query_timeout", QueryTimeout)
	v.SetDefault("query_max_rows", QueryMaxRows)
	v.SetDefault("gc_interval", BadgerGCInterval)
	v.SetDefault("gc_discard_ratio", 0.5)
	v.SetDefault("retention", 0)
	v.SetDefault("retention_interval", RetentionInterval)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	var cfg Server
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the settings for obvious mistakes
func (c *Server) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port is required")
	}
	if !c.InMemory && c.DataDir == "" {
		return fmt.Errorf("data dir is required unless running in memory")
	}
	if c.MaxMemoryMB < 0 {
		return fmt.Errorf("max memory must not be negative")
	}
	if c.QueryTimeout < 0 {
		return fmt.Errorf("query timeout must not be negative")
	}
	if c.QueryMaxRows < 0 {
		return fmt.Errorf("query max rows must not be negative")
	}
	if c.GCInterval <= 0 {
		return fmt.Errorf("gc interval must be positive")
	}
	if c.GCDiscardRatio <= 0 || c.GCDiscardRatio >= 1 {
		return fmt.Errorf("gc discard ratio must be between 0 and 1")
	}
	if c.Retention < 0 {
		return fmt.Errorf("retention must not be negative")
	}
	if c.Retention > 0 && c.RetentionInterval <= 0 {
		return fmt.Errorf("retention interval must be positive")
	}
	return nil
}

// Addr returns the listen address
func (c *Server) Addr() string {
	return ":" + c.Port
}
