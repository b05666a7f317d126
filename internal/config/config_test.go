package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, "postgres", cfg.Storage)
	assert.Equal(t, "sequential", cfg.Chain.ScanMode)
	assert.Equal(t, int64(10), cfg.Session.Cost)
	assert.Equal(t, 15*time.Minute, cfg.JWT.AccessTTL)
	assert.Empty(t, cfg.Chains)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
env: prod
storage: memory
jwt:
  access_secret: a-long-access-secret
  refresh_secret: a-long-refresh-secret
session:
  cost: 25
ledger:
  decimals: 2
chain:
  scan_mode: concurrent
chains:
  - name: base
    chain_id: 8453
    rpc_url: https://base.example
    decimals: 6
    min_confirmations: 3
  - name: polygon
    chain_id: 137
    rpc_url: https://polygon.example
    timeout: 2s
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("TOKENLEDGER_SESSION_COST", "40")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.IsProd())
	assert.Equal(t, int64(40), cfg.Session.Cost)
	assert.Equal(t, "concurrent", cfg.Chain.ScanMode)
	require.Len(t, cfg.Chains, 2)
	assert.Equal(t, "base", cfg.Chains[0].Name)
	require.NotNil(t, cfg.Chains[0].Decimals)
	assert.Equal(t, int32(6), *cfg.Chains[0].Decimals)
	assert.Equal(t, uint64(3), cfg.Chains[0].MinConfirmations)
	assert.Equal(t, 5*time.Second, cfg.Chains[0].Timeout)
	assert.Equal(t, 2*time.Second, cfg.Chains[1].Timeout)
	// decimals falls back to ledger decimals
	require.NotNil(t, cfg.Chains[1].Decimals)
	assert.Equal(t, int32(2), *cfg.Chains[1].Decimals)
}

func TestLoadKeepsExplicitZeroDecimals(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
ledger:
  decimals: 2
chains:
  - name: points
    chain_id: 100
    rpc_url: https://gnosis.example
    decimals: 0
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Chains, 1)
	require.NotNil(t, cfg.Chains[0].Decimals)
	assert.Equal(t, int32(0), *cfg.Chains[0].Decimals)
}

func TestValidateRejectsBadValues(t *testing.T) {
	base := Config{Storage: "memory", Chain: ChainScanConfig{ScanMode: "sequential"}, Session: SessionConfig{Cost: 1}}
	require.NoError(t, base.Validate())

	c := base
	c.Storage = "mongo"
	assert.Error(t, c.Validate())

	c = base
	c.Chain.ScanMode = "random"
	assert.Error(t, c.Validate())

	c = base
	c.Session.Cost = 0
	assert.Error(t, c.Validate())

	c = base
	c.Chains = []ChainConfig{{Name: "a", RPCURL: "x"}, {Name: "a", RPCURL: "y"}}
	assert.Error(t, c.Validate())
}

func TestValidateProdSecrets(t *testing.T) {
	base := Config{Env: "prod", Storage: "memory", Chain: ChainScanConfig{ScanMode: "sequential"}, Session: SessionConfig{Cost: 1},
		JWT: JWTConfig{AccessSecret: "s3cret-a", RefreshSecret: "s3cret-r"}}
	require.NoError(t, base.Validate())

	c := base
	c.JWT.AccessSecret = defaultAccessSecret
	assert.ErrorContains(t, c.Validate(), "jwt.access_secret")

	c = base
	c.JWT.RefreshSecret = ""
	assert.ErrorContains(t, c.Validate(), "jwt.refresh_secret")

	c = base
	c.JWT.RefreshSecret = c.JWT.AccessSecret
	assert.Error(t, c.Validate())

	// dev keeps working with the defaults
	c = base
	c.Env = "dev"
	c.JWT = JWTConfig{AccessSecret: defaultAccessSecret, RefreshSecret: defaultRefreshSecret}
	assert.NoError(t, c.Validate())
}

func TestLoadProdRejectsDefaultSecrets(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TOKENLEDGER_ENV", "prod")

	_, err := Load("")
	assert.ErrorContains(t, err, "non-default")
}
