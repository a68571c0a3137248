package platform

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"github.com/agrozold/pumpfun-bonkfun-bot/internal/signal"
	"github.com/agrozold/pumpfun-bonkfun-bot/internal/solanatx"
)

var testMint = solana.MustPublicKeyFromBase58("6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P")

func invokedSet(ids ...solana.PublicKey) map[solana.PublicKey]struct{} {
	set := make(map[solana.PublicKey]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func TestResolveTagsPumpFunAndDerivesBondingCurve(t *testing.T) {
	buy := signal.WhaleBuy{TokenMint: testMint}
	intent := Resolve(buy, invokedSet(solanatx.ProgramPumpFun), nil)

	require.Equal(t, "pump_fun", intent.Platform)
	require.NotNil(t, intent.BondingCurve)
	require.NotNil(t, intent.AssociatedBondingCurve)
	require.NotNil(t, intent.GlobalConfig)
}

func TestResolvePrefersLaunchpadOverAMMWhenBothInvoked(t *testing.T) {
	buy := signal.WhaleBuy{TokenMint: testMint}
	intent := Resolve(buy, invokedSet(solanatx.ProgramRaydiumAMM, solanatx.ProgramPumpFun), nil)

	require.Equal(t, "pump_fun", intent.Platform)
}

func TestResolveFallsBackToAMMWhenNoLaunchpadPresent(t *testing.T) {
	buy := signal.WhaleBuy{TokenMint: testMint}
	intent := Resolve(buy, invokedSet(solanatx.ProgramRaydiumAMM), nil)

	require.Equal(t, "raydium_amm", intent.Platform)
	require.Nil(t, intent.BondingCurve, "AMM platforms get no derived bonding-curve fields")
}

func TestResolveTagsUnknownWhenNoProgramMatches(t *testing.T) {
	buy := signal.WhaleBuy{TokenMint: testMint}
	stranger := solana.MustPublicKeyFromBase58("11111111111111111111111111111111")
	intent := Resolve(buy, invokedSet(stranger), nil)

	require.Equal(t, Unknown, intent.Platform)
	require.Nil(t, intent.BondingCurve)
}

func TestResolveIsDeterministicAcrossRuns(t *testing.T) {
	buy := signal.WhaleBuy{TokenMint: testMint}
	first := Resolve(buy, invokedSet(solanatx.ProgramPumpFun), nil)
	second := Resolve(buy, invokedSet(solanatx.ProgramPumpFun), nil)

	require.Equal(t, *first.BondingCurve, *second.BondingCurve)
	require.Equal(t, *first.AssociatedBondingCurve, *second.AssociatedBondingCurve)
}

func TestResolveBagsSeedsWithCreatorWhenKnown(t *testing.T) {
	buy := signal.WhaleBuy{TokenMint: testMint}
	creator := solana.MustPublicKeyFromBase58("9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin")

	withoutCreator := Resolve(buy, invokedSet(solanatx.ProgramBags), nil)
	withCreator := Resolve(buy, invokedSet(solanatx.ProgramBags), &creator)

	require.NotNil(t, withoutCreator.BondingCurve)
	require.NotNil(t, withCreator.BondingCurve)
	require.NotEqual(t, *withoutCreator.BondingCurve, *withCreator.BondingCurve,
		"bags vault derivation must depend on the creator seed when one is known")
}
