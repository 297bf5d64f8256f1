package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// AIConfig tunes the external generation client and the decomposition pipeline.
type AIConfig struct {
	RequestTimeout   time.Duration `mapstructure:"requestTimeout"`
	MaxRetries       int           `mapstructure:"maxRetries"`
	InitialBackoff   time.Duration `mapstructure:"initialBackoff"`
	MaxBackoff       time.Duration `mapstructure:"maxBackoff"`
	FailureThreshold int           `mapstructure:"failureThreshold"`
	OpenDuration     time.Duration `mapstructure:"openDuration"`
	MaxChildren      int           `mapstructure:"maxChildren"`
	MinChars         int           `mapstructure:"minChars"`
	MinWords         int           `mapstructure:"minWords"`
}

func DefaultAIConfig() AIConfig {
	return AIConfig{
		RequestTimeout:   30 * time.Second,
		MaxRetries:       2,
		InitialBackoff:   500 * time.Millisecond,
		MaxBackoff:       8 * time.Second,
		FailureThreshold: 5,
		OpenDuration:     30 * time.Second,
		MaxChildren:      12,
		MinChars:         20,
		MinWords:         3,
	}
}

// AIConfigHolder serves the current AIConfig and reloads it when the
// backing file changes.
type AIConfigHolder struct {
	current atomic.Value // holds AIConfig
}

func NewAIConfigHolder() (*AIConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("ai")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/taskforge")
	v.AddConfigPath(".")

	v.SetEnvPrefix("TASKFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultAIConfig()
	v.SetDefault("ai.requestTimeout", defaults.RequestTimeout)
	v.SetDefault("ai.maxRetries", defaults.MaxRetries)
	v.SetDefault("ai.initialBackoff", defaults.InitialBackoff)
	v.SetDefault("ai.maxBackoff", defaults.MaxBackoff)
	v.SetDefault("ai.failureThreshold", defaults.FailureThreshold)
	v.SetDefault("ai.openDuration", defaults.OpenDuration)
	v.SetDefault("ai.maxChildren", defaults.MaxChildren)
	v.SetDefault("ai.minChars", defaults.MinChars)
	v.SetDefault("ai.minWords", defaults.MinWords)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg AIConfig
	if err := v.UnmarshalKey("ai", &cfg); err != nil {
		return nil, err
	}
	if err := validateAIConfig(cfg); err != nil {
		return nil, err
	}

	holder := &AIConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated AIConfig
		if err := v.UnmarshalKey("ai", &updated); err != nil {
			log.Printf("[ai-config] reload failed: %v", err)
			return
		}
		if err := validateAIConfig(updated); err != nil {
			log.Printf("[ai-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[ai-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticAIConfigHolder returns a holder pinned to cfg. Used by tests.
func NewStaticAIConfigHolder(cfg AIConfig) *AIConfigHolder {
	holder := &AIConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *AIConfigHolder) Get() AIConfig {
	return h.current.Load().(AIConfig)
}

func validateAIConfig(cfg AIConfig) error {
	if cfg.RequestTimeout <= 0 {
		return errors.New("ai.requestTimeout must be positive")
	}
	if cfg.MaxRetries < 0 {
		return errors.New("ai.maxRetries cannot be negative")
	}
	if cfg.FailureThreshold <= 0 {
		return errors.New("ai.failureThreshold must be positive")
	}
	if cfg.OpenDuration <= 0 {
		return errors.New("ai.openDuration must be positive")
	}
	if cfg.MaxChildren <= 0 {
		return errors.New("ai.maxChildren must be positive")
	}
	return nil
}
