package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds keeper configuration loaded from flags, env, or config
// file. The private key is only ever read from KEEPER_PRIVATE_KEY or a
// flag, never logged.
type Config struct {
	RPCURL          string
	PrivateKey      string
	PositionManager string
	StateView       string
	Positions       []string
	Recipient       string

	Interval     time.Duration
	StateFile    string
	AlertsOut    string
	PGDSN        string
	EdgeFraction float64

	WidthPercent float64
	Deadline     time.Duration

	Strategy         string
	ThresholdUSD     float64
	CompoundInterval time.Duration
	GasFloorMultiple float64

	MaxRetries   int
	RetryBackoff time.Duration
	CallTimeout  time.Duration
	LogLevel     string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("KEEPER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("interval", 5*time.Minute)
	v.SetDefault("state-file", "./data/monitor_state.json")
	v.SetDefault("width-percent", 10.0)
	v.SetDefault("deadline", 5*time.Minute)
	v.SetDefault("strategy", "dollar")
	v.SetDefault("threshold-usd", 50.0)
	v.SetDefault("compound-interval", 24*time.Hour)
	v.SetDefault("max-retries", 3)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("call-timeout", 30*time.Second)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		RPCURL:          v.GetString("rpc"),
		PrivateKey:      v.GetString("private-key"),
		PositionManager: v.GetString("position-manager"),
		StateView:       v.GetString("state-view"),
		Positions:       getStringSlice(v, "positions"),
		Recipient:       v.GetString("recipient"),

		Interval:     v.GetDuration("interval"),
		StateFile:    v.GetString("state-file"),
		AlertsOut:    v.GetString("alerts-out"),
		PGDSN:        v.GetString("pg-dsn"),
		EdgeFraction: v.GetFloat64("edge-fraction"),

		WidthPercent: v.GetFloat64("width-percent"),
		Deadline:     v.GetDuration("deadline"),

		Strategy:         v.GetString("strategy"),
		ThresholdUSD:     v.GetFloat64("threshold-usd"),
		CompoundInterval: v.GetDuration("compound-interval"),
		GasFloorMultiple: v.GetFloat64("gas-floor-multiple"),

		MaxRetries:   v.GetInt("max-retries"),
		RetryBackoff: v.GetDuration("retry-backoff"),
		CallTimeout:  v.GetDuration("call-timeout"),
		LogLevel:     v.GetString("log-level"),
	}

	return cfg, nil
}

// Validate checks the fields every command needs.
func (c Config) Validate() error {
	if c.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if c.PositionManager == "" {
		return fmt.Errorf("position-manager address is required")
	}
	if c.StateView == "" {
		return fmt.Errorf("state-view address is required")
	}
	return nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
