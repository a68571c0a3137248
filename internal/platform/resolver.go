// Package platform tags a passed WhaleBuy with its originating DEX or
// launchpad and derives the program-derived addresses the trade executor
// needs, the same way the teacher's lnwallet package derives channel
// addresses deterministically from a handful of well-known seeds.
package platform

import (
	"github.com/gagliardetto/solana-go"

	"github.com/agrozold/pumpfun-bonkfun-bot/internal/signal"
	"github.com/agrozold/pumpfun-bonkfun-bot/internal/solanatx"
)

// Unknown is the platform tag used when no program ID in the transaction
// matches a known launchpad or AMM.
const Unknown = "unknown"

// launchpadPriority lists launchpad platform tags in preference order: if a
// transaction invoked both a launchpad and an AMM program, the launchpad
// wins because its signal carries richer structure and typically
// represents a first buy.
var launchpadPriority = []string{"pump_fun", "lets_bonk", "bags"}

// Resolve detects the platform from invoked program IDs and derives the
// platform-specific addresses for buy. creator, when known from the
// decoder, seeds bonding-curve derivation; it may be nil.
func Resolve(buy signal.WhaleBuy, invoked map[solana.PublicKey]struct{}, creator *solana.PublicKey) signal.BuyIntent {
	intent := signal.BuyIntent{WhaleBuy: buy, Creator: creator}

	tag, ok := detectPlatform(invoked)
	if !ok {
		intent.Platform = Unknown
		return intent
	}
	intent.Platform = tag

	switch tag {
	case "pump_fun":
		derivePumpFun(&intent)
	case "lets_bonk":
		deriveLetsBonk(&intent)
	case "bags":
		deriveBags(&intent)
	case "pumpswap", "raydium_amm", "jupiter":
		// AMM/aggregator platforms get no derived fields here; the
		// executor falls back to routing through Jupiter for these.
	}
	return intent
}

func detectPlatform(invoked map[solana.PublicKey]struct{}) (string, bool) {
	candidates := make(map[string]struct{})
	for id := range invoked {
		if tag, ok := platformForProgramID(id); ok {
			candidates[tag] = struct{}{}
		}
	}
	if len(candidates) == 0 {
		return "", false
	}

	for _, tag := range launchpadPriority {
		if _, ok := candidates[tag]; ok {
			return tag, true
		}
	}
	// No launchpad matched; take whichever AMM/aggregator tag is present.
	for _, tag := range []string{"pumpswap", "raydium_amm", "jupiter"} {
		if _, ok := candidates[tag]; ok {
			return tag, true
		}
	}
	return "", false
}

func platformForProgramID(id solana.PublicKey) (string, bool) {
	switch {
	case id.Equals(solanatx.ProgramPumpFun):
		return "pump_fun", true
	case id.Equals(solanatx.ProgramLetsBonk):
		return "lets_bonk", true
	case id.Equals(solanatx.ProgramBags):
		return "bags", true
	case id.Equals(solanatx.ProgramPumpswap):
		return "pumpswap", true
	case id.Equals(solanatx.ProgramRaydiumAMM):
		return "raydium_amm", true
	case id.Equals(solanatx.ProgramJupiter):
		return "jupiter", true
	default:
		return "", false
	}
}

// derivePumpFun computes the bonding-curve PDA and its associated token
// account for a pump.fun mint. Seed layout matches pump.fun's published
// program IDL.
func derivePumpFun(intent *signal.BuyIntent) {
	curve, _, err := solana.FindProgramAddress(
		[][]byte{[]byte("bonding-curve"), intent.TokenMint.Bytes()},
		solanatx.ProgramPumpFun,
	)
	if err != nil {
		log.Warnf("platform: deriving pump_fun bonding curve for %s: %v", intent.TokenMint, err)
		return
	}
	intent.BondingCurve = &curve

	assoc, _, err := solana.FindAssociatedTokenAddress(curve, intent.TokenMint)
	if err != nil {
		log.Warnf("platform: deriving pump_fun associated curve account for %s: %v", intent.TokenMint, err)
		return
	}
	intent.AssociatedBondingCurve = &assoc

	global, _, err := solana.FindProgramAddress([][]byte{[]byte("global")}, solanatx.ProgramPumpFun)
	if err == nil {
		intent.GlobalConfig = &global
	}
}

// deriveLetsBonk mirrors derivePumpFun's seed shape for the lets_bonk
// launchpad, which publishes an equivalent bonding-curve layout.
func deriveLetsBonk(intent *signal.BuyIntent) {
	curve, _, err := solana.FindProgramAddress(
		[][]byte{[]byte("pool"), intent.TokenMint.Bytes()},
		solanatx.ProgramLetsBonk,
	)
	if err != nil {
		log.Warnf("platform: deriving lets_bonk pool for %s: %v", intent.TokenMint, err)
		return
	}
	intent.BondingCurve = &curve

	config, _, err := solana.FindProgramAddress([][]byte{[]byte("global-config")}, solanatx.ProgramLetsBonk)
	if err == nil {
		intent.PlatformConfig = &config
	}
}

// deriveBags derives the bags launchpad's per-mint vault PDA, seeded with
// the creator address when known, matching its creator-scoped curve
// design.
func deriveBags(intent *signal.BuyIntent) {
	seeds := [][]byte{[]byte("vault"), intent.TokenMint.Bytes()}
	if intent.Creator != nil {
		seeds = append(seeds, intent.Creator.Bytes())
	}
	vault, _, err := solana.FindProgramAddress(seeds, solanatx.ProgramBags)
	if err != nil {
		log.Warnf("platform: deriving bags vault for %s: %v", intent.TokenMint, err)
		return
	}
	intent.BondingCurve = &vault
}
