// Package signal holds the data shapes that flow from the whale classifier
// through the platform resolver to the emission boundary.
package signal

import "github.com/gagliardetto/solana-go"

// WhaleBuy is the raw signal produced by the classifier on a pass.
type WhaleBuy struct {
	WhaleWallet solana.PublicKey
	TokenMint   solana.PublicKey
	AmountSOL   float64
	Signature   [64]byte
	BlockTime   *int64
	AgeSeconds  float64
	Platform    string
	WhaleLabel  string
}

// BuyIntent extends WhaleBuy with the platform-specific addresses the
// trade executor needs. Exactly which optional fields are populated
// depends on Platform.
type BuyIntent struct {
	WhaleBuy

	// BondingCurve is populated for the bonding-curve launchpads
	// (pump_fun, lets_bonk, bags); AssociatedBondingCurve only for
	// pump_fun.
	BondingCurve            *solana.PublicKey
	AssociatedBondingCurve  *solana.PublicKey
	// PoolState and the vault pair are left nil by platform.Resolve for
	// every platform, AMMs (pumpswap, raydium_amm) included.
	PoolState  *solana.PublicKey
	BaseVault  *solana.PublicKey
	QuoteVault *solana.PublicKey
	// GlobalConfig (pump_fun) and PlatformConfig (lets_bonk) are populated
	// for launchpads that key fee/program configuration off a single
	// well-known PDA.
	GlobalConfig   *solana.PublicKey
	PlatformConfig *solana.PublicKey
	// Creator is the token creator/deployer address, when the caller of
	// platform.Resolve supplies it; of the derivations there, only the bags
	// vault is seeded with it.
	Creator *solana.PublicKey
}

// EmissionOutcome is what the external trade executor hands back for a
// BuyIntent. A false Bought and a non-empty FailReason is a failed
// attempt; the zero value is neither and must never be treated as success.
type EmissionOutcome struct {
	Bought         bool
	PositionHandle string // opaque; the core never introspects it
	FailReason     string
}
