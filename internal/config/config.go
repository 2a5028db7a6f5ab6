package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL         string
	Pool           string
	Kind           string
	ReferencePrice float64
	QuoteUSD       float64
	MaxLevels      int
	Precision      float64
	BlockNumber    uint64

	QueryTimeout   time.Duration
	BatchTimeout   time.Duration
	MaxRetries     int
	RetryBackoff   time.Duration
	MaxBatchSize   int
	Multicall      string
	BreakerEnabled bool

	TickWordRadius int
	BinRadius      int

	RateLimitRPS   float64
	RateLimitBurst int

	CacheTTL  time.Duration
	RedisAddr string
	RedisDB   int

	Out      string
	PgDSN    string
	LogLevel string
}

// Load merges config file, DEPTH_-prefixed environment variables, and
// flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DEPTH")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("kind", "")
	v.SetDefault("quote-usd", 0.0)
	v.SetDefault("max-levels", 50)
	v.SetDefault("precision", 0.0)
	v.SetDefault("block", uint64(0))
	v.SetDefault("query-timeout", 30*time.Second)
	v.SetDefault("batch-timeout", 10*time.Second)
	v.SetDefault("max-retries", 3)
	v.SetDefault("retry-backoff", 250*time.Millisecond)
	v.SetDefault("max-batch-size", 200)
	v.SetDefault("tick-word-radius", 16)
	v.SetDefault("bin-radius", 500)
	v.SetDefault("rate-limit-rps", 0.0)
	v.SetDefault("rate-limit-burst", 1)
	v.SetDefault("cache-ttl", time.Duration(0))
	v.SetDefault("redis-db", 0)
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
		RPCURL:         v.GetString("rpc"),
		Pool:           v.GetString("pool"),
		Kind:           v.GetString("kind"),
		ReferencePrice: v.GetFloat64("reference-price"),
		QuoteUSD:       v.GetFloat64("quote-usd"),
		MaxLevels:      v.GetInt("max-levels"),
		Precision:      v.GetFloat64("precision"),
		BlockNumber:    v.GetUint64("block"),
		QueryTimeout:   v.GetDuration("query-timeout"),
		BatchTimeout:   v.GetDuration("batch-timeout"),
		MaxRetries:     v.GetInt("max-retries"),
		RetryBackoff:   v.GetDuration("retry-backoff"),
		MaxBatchSize:   v.GetInt("max-batch-size"),
		Multicall:      v.GetString("multicall"),
		BreakerEnabled: v.GetBool("breaker-enabled"),
		TickWordRadius: v.GetInt("tick-word-radius"),
		BinRadius:      v.GetInt("bin-radius"),
		RateLimitRPS:   v.GetFloat64("rate-limit-rps"),
		RateLimitBurst: v.GetInt("rate-limit-burst"),
		CacheTTL:       v.GetDuration("cache-ttl"),
		RedisAddr:      v.GetString("redis-addr"),
		RedisDB:        v.GetInt("redis-db"),
		Out:            v.GetString("out"),
		PgDSN:          v.GetString("pg-dsn"),
		LogLevel:       v.GetString("log-level"),
	}

	return cfg, nil
}
