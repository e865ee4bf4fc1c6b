package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"juiceWatch/internal/model"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	SubgraphURL     string
	DiscordWebhook  string
	Streams         []string
	StateFile       string
	ErrorsFile      string
	PGDSN           string
	IPFSGateway     string
	ENSAPI          string
	EthRPC          string
	AppURL          string
	ExplorerURL     string
	CallTimeout     time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration
	MaxConcurrency  int
	MetricsTextfile string
	MetricsPushURL  string
	LogLevel        string
}

// Load merges config file, environment variables, and flags into Config.
// Environment variables use the NOTIFIER_ prefix, e.g. NOTIFIER_SUBGRAPH_URL.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("NOTIFIER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("streams", []string{model.StreamPayEvents, model.StreamProjectCreateEvents})
	v.SetDefault("state-file", "./recent-runs.json")
	v.SetDefault("errors-file", "./errors.jsonl")
	v.SetDefault("ipfs-gateway", "https://ipfs.io")
	v.SetDefault("ens-api", "https://api.ensideas.com")
	v.SetDefault("app-url", "https://juicebox.money")
	v.SetDefault("explorer-url", "https://etherscan.io")
	v.SetDefault("call-timeout", 15*time.Second)
	v.SetDefault("max-retries", 3)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("max-concurrency", 8)
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
		SubgraphURL:     v.GetString("subgraph-url"),
		DiscordWebhook:  v.GetString("discord-webhook"),
		Streams:         getStringSlice(v, "streams"),
		StateFile:       v.GetString("state-file"),
		ErrorsFile:      v.GetString("errors-file"),
		PGDSN:           v.GetString("pg-dsn"),
		IPFSGateway:     v.GetString("ipfs-gateway"),
		ENSAPI:          v.GetString("ens-api"),
		EthRPC:          v.GetString("eth-rpc"),
		AppURL:          v.GetString("app-url"),
		ExplorerURL:     v.GetString("explorer-url"),
		CallTimeout:     v.GetDuration("call-timeout"),
		MaxRetries:      v.GetInt("max-retries"),
		RetryBackoff:    v.GetDuration("retry-backoff"),
		MaxConcurrency:  v.GetInt("max-concurrency"),
		MetricsTextfile: v.GetString("metrics-textfile"),
		MetricsPushURL:  v.GetString("metrics-push-url"),
		LogLevel:        v.GetString("log-level"),
	}

	return cfg, nil
}

// Validate checks the settings a run cannot start without.
func (c Config) Validate() error {
	var errs []error
	if c.SubgraphURL == "" {
		errs = append(errs, errors.New("subgraph-url is required"))
	}
	if c.DiscordWebhook == "" {
		errs = append(errs, errors.New("discord-webhook is required"))
	}
	if len(c.Streams) == 0 {
		errs = append(errs, errors.New("at least one stream is required"))
	}
	for _, s := range c.Streams {
		if s != model.StreamPayEvents && s != model.StreamProjectCreateEvents {
			errs = append(errs, fmt.Errorf("unknown stream %q", s))
		}
	}
	if c.StateFile == "" && c.PGDSN == "" {
		errs = append(errs, errors.New("state-file or pg-dsn is required"))
	}
	if c.CallTimeout <= 0 {
		errs = append(errs, errors.New("call-timeout must be positive"))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, errors.New("max-retries must not be negative"))
	}
	if c.MaxConcurrency < 0 {
		errs = append(errs, errors.New("max-concurrency must not be negative"))
	}
	return errors.Join(errs...)
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
	return cleanStrings(strings.Split(input, ","))
}

// cleanStrings trims entries, drops blanks, and removes duplicates.
func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
