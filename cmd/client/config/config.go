package config

import (
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/HeliosFLR/helios-ui-sub000/protocols/poolregistry"
	"github.com/HeliosFLR/helios-ui-sub000/protocols/token"
)

type ClientConfig struct {
	ChainID *big.Int `yaml:"chain_id" validate:"required"`
	RPCURL  string   `yaml:"rpc_url" validate:"required,url"`
	// RPCRateLimit is the sustained eth_call rate; zero disables throttling.
	RPCRateLimit float64        `yaml:"rpc_rate_limit" validate:"gte=0"`
	Router       common.Address `yaml:"router" validate:"required"`

	Tokens []TokenConfig `yaml:"tokens" validate:"required,min=1,dive"`
	Pools  []PoolConfig  `yaml:"pools" validate:"required,min=1,dive"`

	Quote     QuoteConfig     `yaml:"quote"`
	PriceFeed PriceFeedConfig `yaml:"price_feed"`
	Watch     WatchConfig     `yaml:"watch"`
	Tx        TxConfig        `yaml:"tx"`
	XP        XPConfig        `yaml:"xp"`
	// Redis is optional; XP profiles stay in memory without it.
	Redis *RedisConfig `yaml:"redis" validate:"omitempty"`
}

type TokenConfig struct {
	ID       uint64         `yaml:"id" validate:"required"`
	Address  common.Address `yaml:"address" validate:"required"`
	Symbol   string         `yaml:"symbol" validate:"required"`
	Name     string         `yaml:"name"`
	Decimals uint8          `yaml:"decimals" validate:"lte=36"`
}

type PoolConfig struct {
	ID      uint64         `yaml:"id" validate:"required"`
	Address common.Address `yaml:"address" validate:"required"`
	TokenX  common.Address `yaml:"token_x" validate:"required"`
	TokenY  common.Address `yaml:"token_y" validate:"required"`
	BinStep uint16         `yaml:"bin_step" validate:"required"`
	Version uint8          `yaml:"version" validate:"lte=3"`
}

type QuoteConfig struct {
	CacheTTL      time.Duration `yaml:"cache_ttl" validate:"gte=0"`
	RetryAttempts int           `yaml:"retry_attempts" validate:"gte=0"`
	RetryInterval time.Duration `yaml:"retry_interval" validate:"gte=0"`
}

type PriceFeedConfig struct {
	// URL is optional; without it only the static price table is used.
	URL      string            `yaml:"url" validate:"omitempty,url"`
	TTL      time.Duration     `yaml:"ttl" validate:"gte=0"`
	RetryMax int               `yaml:"retry_max" validate:"gte=0"`
	Timeout  time.Duration     `yaml:"timeout" validate:"gte=0"`
	IDs      map[string]string `yaml:"ids"`
}

type WatchConfig struct {
	Interval time.Duration `yaml:"interval" validate:"gte=0"`
}

type TxConfig struct {
	PollInterval time.Duration `yaml:"poll_interval" validate:"gte=0"`
	SlippageBps  uint32        `yaml:"slippage_bps" validate:"lte=10000"`
	Deadline     time.Duration `yaml:"deadline" validate:"gte=0"`
}

type XPConfig struct {
	Timezone   string `yaml:"timezone" validate:"omitempty,timezone"`
	HistoryCap int    `yaml:"history_cap" validate:"gte=0"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" validate:"required,hostname_port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" validate:"gte=0"`
	Prefix   string `yaml:"prefix"`
}

// LoadConfig reads a configuration file from the given path and unmarshals it
// into a ClientConfig struct. Unset tunables get their defaults.
func LoadConfig(path string) (*ClientConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes and validates a YAML document.
func Parse(data []byte) (*ClientConfig, error) {
	var cfg ClientConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.checkReferences(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *ClientConfig) applyDefaults() {
	if c.Quote.CacheTTL == 0 {
		c.Quote.CacheTTL = 15 * time.Second
	}
	if c.Quote.RetryAttempts == 0 {
		c.Quote.RetryAttempts = 3
	}
	if c.Quote.RetryInterval == 0 {
		c.Quote.RetryInterval = 500 * time.Millisecond
	}
	if c.PriceFeed.TTL == 0 {
		c.PriceFeed.TTL = 60 * time.Second
	}
	if c.PriceFeed.RetryMax == 0 {
		c.PriceFeed.RetryMax = 2
	}
	if c.PriceFeed.Timeout == 0 {
		c.PriceFeed.Timeout = 10 * time.Second
	}
	if c.Watch.Interval == 0 {
		c.Watch.Interval = 5 * time.Second
	}
	if c.Tx.PollInterval == 0 {
		c.Tx.PollInterval = 3 * time.Second
	}
	if c.Tx.SlippageBps == 0 {
		c.Tx.SlippageBps = 50
	}
	if c.Tx.Deadline == 0 {
		c.Tx.Deadline = 20 * time.Minute
	}
	if c.XP.Timezone == "" {
		c.XP.Timezone = "UTC"
	}
}

// checkReferences enforces what struct tags cannot: unique ids and pools
// that only reference listed tokens.
func (c *ClientConfig) checkReferences() error {
	known := make(map[common.Address]struct{}, len(c.Tokens))
	ids := make(map[uint64]struct{}, len(c.Tokens))
	for _, t := range c.Tokens {
		if _, dup := ids[t.ID]; dup {
			return fmt.Errorf("duplicate token id %d", t.ID)
		}
		ids[t.ID] = struct{}{}
		known[t.Address] = struct{}{}
	}
	clear(ids)
	for _, p := range c.Pools {
		if _, dup := ids[p.ID]; dup {
			return fmt.Errorf("duplicate pool id %d", p.ID)
		}
		ids[p.ID] = struct{}{}
		if p.TokenX == p.TokenY {
			return fmt.Errorf("pool %d has identical tokens", p.ID)
		}
		for _, addr := range []common.Address{p.TokenX, p.TokenY} {
			if _, ok := known[addr]; !ok {
				return fmt.Errorf("pool %d references unlisted token %s", p.ID, addr.Hex())
			}
		}
	}
	return nil
}

// TokenViews converts the token list for the token registry.
func (c *ClientConfig) TokenViews() []token.TokenView {
	out := make([]token.TokenView, len(c.Tokens))
	for i, t := range c.Tokens {
		out[i] = token.TokenView{ID: t.ID, Address: t.Address, Symbol: t.Symbol, Name: t.Name, Decimals: t.Decimals}
	}
	return out
}

// PoolViews converts the pool list for the pool registry.
func (c *ClientConfig) PoolViews() []poolregistry.PoolView {
	out := make([]poolregistry.PoolView, len(c.Pools))
	for i, p := range c.Pools {
		out[i] = poolregistry.PoolView{
			ID:      p.ID,
			Address: p.Address,
			TokenX:  p.TokenX,
			TokenY:  p.TokenY,
			BinStep: p.BinStep,
			Version: poolregistry.Version(p.Version),
		}
	}
	return out
}

// Location resolves the XP timezone.
func (c *ClientConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.XP.Timezone)
}
