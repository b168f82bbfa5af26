package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. QUESTFILTER_RPC.
const EnvPrefix = "QUESTFILTER"

// load merges config file, environment variables, and flags. Flags win over env, env over
// the file, and the file over defaults.
func load(cfgFile string, flags *pflag.FlagSet, defaults map[string]interface{}) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("log-level", "info")
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

// MatchConfig holds configuration for the match command.
type MatchConfig struct {
	Descriptors []string
	In          string
	Out         string
	OnlyMatched bool
	Workers     int
	RedisURL    string
	CacheTTL    time.Duration
	CacheSize   int
	MetricsAddr string
	LogLevel    string
}

func LoadMatch(cfgFile string, flags *pflag.FlagSet) (MatchConfig, error) {
	v, err := load(cfgFile, flags, map[string]interface{}{
		"out":       "-",
		"workers":   0,
		"cache-ttl": 24 * time.Hour,
	})
	if err != nil {
		return MatchConfig{}, err
	}
	return MatchConfig{
		Descriptors: getStringSlice(v, "descriptor"),
		In:          v.GetString("in"),
		Out:         v.GetString("out"),
		OnlyMatched: v.GetBool("only-matched"),
		Workers:     v.GetInt("workers"),
		RedisURL:    v.GetString("redis-url"),
		CacheTTL:    v.GetDuration("cache-ttl"),
		CacheSize:   v.GetInt("cache-size"),
		MetricsAddr: v.GetString("metrics-addr"),
		LogLevel:    v.GetString("log-level"),
	}, nil
}

// ScanConfig holds configuration for the scan command.
type ScanConfig struct {
	RPCURL            string
	Descriptors       []string
	FromBlock         uint64
	ToBlock           uint64
	BatchSize         uint64
	FetchWorkers      int
	Workers           int
	OnlyMatched       bool
	Out               string
	PGDSN             string
	StateName         string
	Checkpoint        string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
	RedisURL          string
	CacheTTL          time.Duration
	CacheSize         int
	MetricsAddr       string
	Progress          bool
	LogLevel          string
}

func LoadScan(cfgFile string, flags *pflag.FlagSet) (ScanConfig, error) {
	v, err := load(cfgFile, flags, map[string]interface{}{
		"batch-size":         uint64(100),
		"fetch-workers":      4,
		"only-matched":       true,
		"out":                "./data/matches.jsonl",
		"state-name":         "default",
		"checkpoint":         "./data/checkpoint.json",
		"checkpoint-enabled": true,
		"max-retries":        5,
		"retry-backoff":      500 * time.Millisecond,
		"cache-ttl":          24 * time.Hour,
	})
	if err != nil {
		return ScanConfig{}, err
	}
	return ScanConfig{
		RPCURL:            v.GetString("rpc"),
		Descriptors:       getStringSlice(v, "descriptor"),
		FromBlock:         v.GetUint64("from"),
		ToBlock:           v.GetUint64("to"),
		BatchSize:         v.GetUint64("batch-size"),
		FetchWorkers:      v.GetInt("fetch-workers"),
		Workers:           v.GetInt("workers"),
		OnlyMatched:       v.GetBool("only-matched"),
		Out:               v.GetString("out"),
		PGDSN:             v.GetString("pg-dsn"),
		StateName:         v.GetString("state-name"),
		Checkpoint:        v.GetString("checkpoint"),
		CheckpointEnabled: v.GetBool("checkpoint-enabled"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		RedisURL:          v.GetString("redis-url"),
		CacheTTL:          v.GetDuration("cache-ttl"),
		CacheSize:         v.GetInt("cache-size"),
		MetricsAddr:       v.GetString("metrics-addr"),
		Progress:          v.GetBool("progress"),
		LogLevel:          v.GetString("log-level"),
	}, nil
}

// CompileConfig holds configuration for the compile command.
type CompileConfig struct {
	Adapter  string
	Action   string
	Params   string
	Out      string
	LogLevel string
}

func LoadCompile(cfgFile string, flags *pflag.FlagSet) (CompileConfig, error) {
	v, err := load(cfgFile, flags, map[string]interface{}{"out": "-"})
	if err != nil {
		return CompileConfig{}, err
	}
	return CompileConfig{
		Adapter:  v.GetString("adapter"),
		Action:   v.GetString("action"),
		Params:   v.GetString("params"),
		Out:      v.GetString("out"),
		LogLevel: v.GetString("log-level"),
	}, nil
}

// FetchConfig holds configuration for the fetch command.
type FetchConfig struct {
	RPCURL       string
	Hashes       []string
	Out          string
	MaxRetries   int
	RetryBackoff time.Duration
	LogLevel     string
}

func LoadFetch(cfgFile string, flags *pflag.FlagSet) (FetchConfig, error) {
	v, err := load(cfgFile, flags, map[string]interface{}{
		"out":           "-",
		"max-retries":   3,
		"retry-backoff": 500 * time.Millisecond,
	})
	if err != nil {
		return FetchConfig{}, err
	}
	return FetchConfig{
		RPCURL:       v.GetString("rpc"),
		Hashes:       getStringSlice(v, "hash"),
		Out:          v.GetString("out"),
		MaxRetries:   v.GetInt("max-retries"),
		RetryBackoff: v.GetDuration("retry-backoff"),
		LogLevel:     v.GetString("log-level"),
	}, nil
}

// TokensConfig holds configuration for the tokens command.
type TokensConfig struct {
	Adapter  string
	ChainID  uint64
	RPCURL   string
	LogLevel string
}

func LoadTokens(cfgFile string, flags *pflag.FlagSet) (TokensConfig, error) {
	v, err := load(cfgFile, flags, nil)
	if err != nil {
		return TokensConfig{}, err
	}
	return TokensConfig{
		Adapter:  v.GetString("adapter"),
		ChainID:  v.GetUint64("chain-id"),
		RPCURL:   v.GetString("rpc"),
		LogLevel: v.GetString("log-level"),
	}, nil
}

// MatchedConfig holds configuration for the matched command.
type MatchedConfig struct {
	PGDSN       string
	Descriptors []string
	Limit       int
	Out         string
	LogLevel    string
}

func LoadMatched(cfgFile string, flags *pflag.FlagSet) (MatchedConfig, error) {
	v, err := load(cfgFile, flags, map[string]interface{}{
		"limit": 1000,
		"out":   "-",
	})
	if err != nil {
		return MatchedConfig{}, err
	}
	return MatchedConfig{
		PGDSN:       v.GetString("pg-dsn"),
		Descriptors: getStringSlice(v, "descriptor"),
		Limit:       v.GetInt("limit"),
		Out:         v.GetString("out"),
		LogLevel:    v.GetString("log-level"),
	}, nil
}

// MigrateConfig holds configuration for the migrate command.
type MigrateConfig struct {
	PGDSN    string
	Version  int64
	LogLevel string
}

func LoadMigrate(cfgFile string, flags *pflag.FlagSet) (MigrateConfig, error) {
	v, err := load(cfgFile, flags, map[string]interface{}{"version": int64(-1)})
	if err != nil {
		return MigrateConfig{}, err
	}
	return MigrateConfig{
		PGDSN:    v.GetString("pg-dsn"),
		Version:  v.GetInt64("version"),
		LogLevel: v.GetString("log-level"),
	}, nil
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
