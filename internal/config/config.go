package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
	DB      DBConfig      `mapstructure:"db"`
	API     APIConfig     `mapstructure:"api"`
	Rate    RateConfig    `mapstructure:"rate"`
	Betting BettingConfig `mapstructure:"betting"`
	PoW     PoWConfig     `mapstructure:"pow"`
	Poll    PollConfig    `mapstructure:"poll"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

// APIConfig points at the remote predictions API the engine consumes.
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type RateConfig struct {
	Endpoint     string        `mapstructure:"endpoint"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	StreamURL    string        `mapstructure:"stream_url"`
	MaxStaleness time.Duration `mapstructure:"max_staleness"`
}

type BettingConfig struct {
	MinBetUSD           float64       `mapstructure:"min_bet_usd"`
	ExpiryWindow        time.Duration `mapstructure:"expiry_window"`
	ClosingSoon         time.Duration `mapstructure:"closing_soon"`
	ValidatorWorkers    int           `mapstructure:"validator_workers"`
	ProbeTimeout        time.Duration `mapstructure:"probe_timeout"`
	MarketRefresh       time.Duration `mapstructure:"market_refresh"`
	ResolvedLegSweep    time.Duration `mapstructure:"resolved_leg_sweep"`
	IncludeResolvedList bool          `mapstructure:"include_resolved_list"`
}

type PoWConfig struct {
	Difficulty       int           `mapstructure:"difficulty"`
	ProgressEvery    int           `mapstructure:"progress_every"`
	ProgressInterval time.Duration `mapstructure:"progress_interval"`
}

type PollConfig struct {
	BetStatus  time.Duration `mapstructure:"bet_status"`
	SlipStatus time.Duration `mapstructure:"slip_status"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("XB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("api.base_url", "https://api.xmrbet.example")
	v.SetDefault("api.timeout", "15s")
	v.SetDefault("rate.endpoint", "https://api.binance.com/api/v3/ticker/price?symbol=XMRUSDT")
	v.SetDefault("rate.poll_interval", "30s")
	v.SetDefault("rate.stream_url", "")
	v.SetDefault("rate.max_staleness", "5m")

	// Betting contract constants. The server enforces the same values; keep in sync.
	v.SetDefault("betting.min_bet_usd", 5)
	v.SetDefault("betting.expiry_window", "60m")
	v.SetDefault("betting.closing_soon", "5m")
	v.SetDefault("betting.validator_workers", 6)
	v.SetDefault("betting.probe_timeout", "4s")
	v.SetDefault("betting.market_refresh", "30s")
	v.SetDefault("betting.resolved_leg_sweep", "1m")
	v.SetDefault("betting.include_resolved_list", false)

	v.SetDefault("pow.difficulty", 18)
	v.SetDefault("pow.progress_every", 4096)
	v.SetDefault("pow.progress_interval", "250ms")

	v.SetDefault("poll.bet_status", "15s")
	v.SetDefault("poll.slip_status", "15s")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.addr", ":9095")

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
