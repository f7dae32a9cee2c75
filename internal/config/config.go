package config

import (
	"errors"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Log       LoggingConfig   `yaml:"log"`
	RPC       RPCConfig       `yaml:"rpc"`
	Faucet    FaucetConfig    `yaml:"faucet"`
	State     StateConfig     `yaml:"state"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Timescale TimescaleConfig `yaml:"timescale"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Strategy  StrategyConfig  `yaml:"strategy"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// RPCConfig points at the wallet daemon the bot trades through. The unlock
// password comes from the WALLET_PASSWORD environment variable, never from
// the config file.
type RPCConfig struct {
	URL            string        `yaml:"url"`
	Timeout        time.Duration `yaml:"timeout"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	Account        string        `yaml:"account"`
}

type FaucetConfig struct {
	URL      string `yaml:"url"`
	Referrer string `yaml:"referrer"`
}

type StateConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
}

type MetricsConfig struct {
	Enabled *bool  `yaml:"enabled"`
	Address string `yaml:"address"`
	Path    string `yaml:"path"`
}

func (m MetricsConfig) EnabledValue() bool {
	return m.Enabled != nil && *m.Enabled
}

type TimescaleConfig struct {
	Enabled         bool          `yaml:"enabled"`
	DSN             string        `yaml:"dsn"`
	Schema          string        `yaml:"schema"`
	QueueSize       int           `yaml:"queue_size"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	ChatID  string `yaml:"chat_id"`
}

// StrategyConfig is the raw strategy block. Required keys use pointers so an
// absent value is distinguishable from an explicit zero; strategy.NewSettings
// turns this into the validated Settings struct.
type StrategyConfig struct {
	Markets                     []string           `yaml:"markets"`
	TargetPrice                 string             `yaml:"target_price"`
	TargetPriceOffsetPercentage *float64           `yaml:"target_price_offset_percentage"`
	SpreadPercentage            *float64           `yaml:"spread_percentage"`
	AllowedSpreadPercentage     *float64           `yaml:"allowed_spread_percentage"`
	VolumePercentage            *float64           `yaml:"volume_percentage"`
	SymmetricSides              *bool              `yaml:"symmetric_sides"`
	OnlyBuy                     bool               `yaml:"only_buy"`
	OnlySell                    bool               `yaml:"only_sell"`
	ExpirationSeconds           *int               `yaml:"expiration"`
	Ratio                       *float64           `yaml:"ratio"`
	SkipBlocks                  *int               `yaml:"skip_blocks"`
	BorrowPercentages           map[string]float64 `yaml:"borrow_percentages"`
	MinimumAmounts              map[string]float64 `yaml:"minimum_amounts"`
	MinimumChangePercentage     *float64           `yaml:"minimum_change_percentage"`
	ReserveAsset                string             `yaml:"reserve_asset"`
	TickInterval                time.Duration      `yaml:"tick_interval"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, validate(&cfg)
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.RPC.URL == "" {
		cfg.RPC.URL = "ws://127.0.0.1:8092"
	}
	if cfg.RPC.Timeout == 0 {
		cfg.RPC.Timeout = 10 * time.Second
	}
	if cfg.RPC.ReconnectDelay == 0 {
		cfg.RPC.ReconnectDelay = 3 * time.Second
	}
	if cfg.State.SQLitePath == "" {
		cfg.State.SQLitePath = "data/bts-wall-bot.db"
	}
	if cfg.Metrics.Enabled == nil {
		enabled := true
		cfg.Metrics.Enabled = &enabled
	}
	if cfg.Metrics.Address == "" {
		cfg.Metrics.Address = "127.0.0.1:9001"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.Timescale.QueueSize == 0 {
		cfg.Timescale.QueueSize = 256
	}
	if cfg.Strategy.TickInterval == 0 {
		// one BitShares block
		cfg.Strategy.TickInterval = 3 * time.Second
	}
}

func validate(cfg *Config) error {
	if cfg.RPC.Account == "" {
		return errors.New("rpc.account is required")
	}
	if cfg.Timescale.Enabled && cfg.Timescale.DSN == "" {
		return errors.New("timescale.dsn is required when timescale is enabled")
	}
	return nil
}
