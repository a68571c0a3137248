package registry

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
)

func TestStablecoinBlacklistBuiltins(t *testing.T) {
	b := NewStablecoinBlacklist(nil)
	require.True(t, b.Contains(mintUSDC))
	require.True(t, b.Contains(mintWSOL))
	require.True(t, b.Contains(mintUSDH))

	arbitrary := solana.MustPublicKeyFromBase58("6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P")
	require.False(t, b.Contains(arbitrary))
}

func TestStablecoinBlacklistUserAdditions(t *testing.T) {
	extra := solana.MustPublicKeyFromBase58("6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P")
	b := NewStablecoinBlacklist([]solana.PublicKey{extra})
	require.True(t, b.Contains(extra))

	// Additions never remove a built-in.
	require.True(t, b.Contains(mintUSDC))
}

func TestStablecoinBlacklistAddAfterConstruction(t *testing.T) {
	b := NewStablecoinBlacklist(nil)
	extra := solana.MustPublicKeyFromBase58("LanMV9sAd7wArD4vJFi2qDdfnVhFxYSUg6eADduJ3uj")
	require.False(t, b.Contains(extra))
	b.Add(extra)
	require.True(t, b.Contains(extra))
}
