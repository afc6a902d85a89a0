package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HeliosFLR/helios-ui-sub000/protocols/poolregistry"
)

const validYAML = `
chain_id: 14
rpc_url: https://flare-api.flare.network/ext/C/rpc
rpc_rate_limit: 20
router: 0x00000000000000000000000000000000000000a1
tokens:
  - id: 1
    address: 0x0000000000000000000000000000000000000001
    symbol: WFLR
    name: Wrapped Flare
    decimals: 18
  - id: 2
    address: 0x0000000000000000000000000000000000000002
    symbol: USDT0
    decimals: 6
pools:
  - id: 1
    address: 0x00000000000000000000000000000000000000b1
    token_x: 0x0000000000000000000000000000000000000001
    token_y: 0x0000000000000000000000000000000000000002
    bin_step: 15
    version: 3
quote:
  cache_ttl: 30s
price_feed:
  url: https://api.coingecko.com/api/v3/simple/price
  ids:
    WFLR: flare-networks
xp:
  timezone: Europe/London
redis:
  addr: localhost:6379
  prefix: helios
`

func TestParse_Valid(t *testing.T) {
	cfg, err := Parse([]byte(validYAML))
	require.NoError(t, err)

	assert.Equal(t, uint64(14), cfg.ChainID.Uint64())
	assert.Equal(t, common.HexToAddress("0xa1"), cfg.Router)
	assert.Equal(t, 30*time.Second, cfg.Quote.CacheTTL)
	assert.Equal(t, 3, cfg.Quote.RetryAttempts, "default applied")
	assert.Equal(t, uint32(50), cfg.Tx.SlippageBps, "default applied")
	assert.Equal(t, "flare-networks", cfg.PriceFeed.IDs["WFLR"])
	require.NotNil(t, cfg.Redis)
	assert.Equal(t, "helios", cfg.Redis.Prefix)

	tokens := cfg.TokenViews()
	require.Len(t, tokens, 2)
	assert.Equal(t, "USDT0", tokens[1].Symbol)
	assert.Equal(t, uint8(6), tokens[1].Decimals)

	pools := cfg.PoolViews()
	require.Len(t, pools, 1)
	assert.Equal(t, poolregistry.VersionV2_2, pools[0].Version)
	assert.Equal(t, uint16(15), pools[0].BinStep)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/London", loc.String())
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		replace [2]string
	}{
		{"missing rpc url", [2]string{"rpc_url: https://flare-api.flare.network/ext/C/rpc", ""}},
		{"bad rpc url", [2]string{"https://flare-api.flare.network/ext/C/rpc", "not a url"}},
		{"zero bin step", [2]string{"bin_step: 15", "bin_step: 0"}},
		{"unknown version", [2]string{"version: 3", "version: 9"}},
		{"unlisted pool token", [2]string{"token_y: 0x0000000000000000000000000000000000000002", "token_y: 0x0000000000000000000000000000000000000009"}},
		{"identical pool tokens", [2]string{"token_y: 0x0000000000000000000000000000000000000002", "token_y: 0x0000000000000000000000000000000000000001"}},
		{"duplicate token id", [2]string{"  - id: 2\n    address: 0x0000000000000000000000000000000000000002", "  - id: 1\n    address: 0x0000000000000000000000000000000000000002"}},
		{"bad timezone", [2]string{"Europe/London", "Mars/Olympus"}},
		{"bad redis addr", [2]string{"addr: localhost:6379", "addr: localhost"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := strings.Replace(validYAML, tt.replace[0], tt.replace[1], 1)
			require.NotEqual(t, validYAML, doc)
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestParse_OptionalSections(t *testing.T) {
	doc := validYAML[:strings.Index(validYAML, "quote:")]
	cfg, err := Parse([]byte(doc))
	require.NoError(t, err)
	assert.Nil(t, cfg.Redis)
	assert.Empty(t, cfg.PriceFeed.URL)
	assert.Equal(t, "UTC", cfg.XP.Timezone)
	assert.Equal(t, 5*time.Second, cfg.Watch.Interval)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validYAML), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Pools, 1)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
