package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONTRACTS_DIPLOMA_ADDRESS", "0x1234567890123456789012345678901234567890")
	t.Setenv("ISSUANCE_SETTLE_DELAY", "500ms")

	conf, err := Load()
	require.NoError(t, err)

	require.Equal(t, int64(421614), conf.Chain.ChainID)
	require.Equal(t, "https://sepolia-rollup.arbitrum.io/rpc", conf.Chain.RPCURL)
	require.Equal(t, "0x1234567890123456789012345678901234567890", conf.Contracts.Diploma)
	require.Empty(t, conf.Contracts.Token)
	require.Equal(t, 500*time.Millisecond, conf.Issuance.SettleDelay)
	require.Equal(t, 4*time.Second, conf.Issuance.StatusInterval)
	require.Equal(t, 168, conf.Auth.MaxShareHours)
}

func TestShareSigningKeyFallsBack(t *testing.T) {
	a := Auth{JWTSecret: "session"}
	require.Equal(t, []byte("session"), a.ShareSigningKey())

	a.ShareSecret = "share"
	require.Equal(t, []byte("share"), a.ShareSigningKey())
}
