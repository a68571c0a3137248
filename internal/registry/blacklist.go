package registry

import (
	"sync"

	"github.com/gagliardetto/solana-go"
)

// Built-in stablecoin mints. These are hard-coded and can never be removed
// by configuration; user config may only add to this set. Addresses are the
// canonical SPL mints for each asset on mainnet-beta.
var (
	mintUSDC    = solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	mintUSDT    = solana.MustPublicKeyFromBase58("Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB")
	mintWSOL    = solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
	mintMSOL    = solana.MustPublicKeyFromBase58("mSoLzYCxHdYgdzU16g5QSh3i5K3z3KZK7ytfqcJm7So")
	mintSTSOL   = solana.MustPublicKeyFromBase58("7dHbWXmci3dT8UFYWYZweBLXgycu7Y3iL6trKn1Y7ARj")
	mintJITOSOL = solana.MustPublicKeyFromBase58("J1toso1uCk3RLmjorhTtrVwY9HJ7X8V9yYac6Y7kGCPn")
	mintBSOL    = solana.MustPublicKeyFromBase58("bSo13r4TkiE4KumL71LsHTPpL2euBYLFx6h9HP3piy1")
	mintUSD1    = solana.MustPublicKeyFromBase58("USD1ttGY1N17NEEHLmELoaybftRBUSErhqYiQzvEmVmR")
	mintUSDH    = solana.MustPublicKeyFromBase58("USDH1SM1ojwWUga67PGrgFWUHibbjqMvuMaDkRJTgkX")
)

var builtinStablecoins = []solana.PublicKey{
	mintUSDC, mintUSDT, mintWSOL, mintMSOL, mintSTSOL, mintJITOSOL, mintBSOL, mintUSD1, mintUSDH,
}

// StablecoinBlacklist is the mint exclusion set. Its built-in entries are
// fixed and entries can only ever be added, never removed. It satisfies
// solanatx.Blacklist structurally, so the decoder package never needs to
// import this one.
type StablecoinBlacklist struct {
	mu    sync.RWMutex
	extra map[solana.PublicKey]struct{}
}

// NewStablecoinBlacklist builds the blacklist from the built-in set plus any
// user-configured additions. Additions are one-way: there is no API to
// remove a built-in entry.
func NewStablecoinBlacklist(additional []solana.PublicKey) *StablecoinBlacklist {
	b := &StablecoinBlacklist{extra: make(map[solana.PublicKey]struct{}, len(additional))}
	for _, m := range additional {
		b.extra[m] = struct{}{}
	}
	return b
}

// Contains reports whether mint is excluded from classification.
func (b *StablecoinBlacklist) Contains(mint solana.PublicKey) bool {
	for _, sc := range builtinStablecoins {
		if sc.Equals(mint) {
			return true
		}
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.extra[mint]
	return ok
}

// Add appends to the user-configured portion of the blacklist. Safe to call
// after construction, e.g. while applying a config reload.
func (b *StablecoinBlacklist) Add(mint solana.PublicKey) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.extra[mint] = struct{}{}
}
