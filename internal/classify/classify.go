// Package classify decides whether a decoded transaction is a qualifying
// whale buy worth emitting, applying an ordered chain of drop rules the
// way htlcswitch's forwarding-policy checks reject an HTLC at the first
// rule it fails rather than evaluating every rule.
package classify

import (
	"strings"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/gagliardetto/solana-go"

	"github.com/agrozold/pumpfun-bonkfun-bot/internal/registry"
	"github.com/agrozold/pumpfun-bonkfun-bot/internal/signal"
	"github.com/agrozold/pumpfun-bonkfun-bot/internal/solanatx"
)

// DefaultMinBuySOL and DefaultTimeWindow are the configured defaults absent
// an explicit override.
const (
	DefaultMinBuySOL  = 0.4
	DefaultTimeWindow = 5 * time.Minute
)

// Config holds the classifier's threshold knobs.
type Config struct {
	MinBuySOL  float64
	TimeWindow time.Duration
}

// DefaultConfig returns the configured defaults.
func DefaultConfig() Config {
	return Config{MinBuySOL: DefaultMinBuySOL, TimeWindow: DefaultTimeWindow}
}

// Classifier applies the seven-step decision procedure against a decoded
// transaction.
type Classifier struct {
	cfg       Config
	whales    *registry.WhaleRegistry
	blacklist *registry.StablecoinBlacklist
	state     *registry.State
	nowFunc   func() time.Time
}

// New constructs a Classifier. whales and state are the registry
// collaborators it needs for whale gating and the first-emission check.
// blacklist is consulted again here even though the decoder already
// filters blacklisted mints for raw candidates: the webhook ingress
// variant delivers pre-enriched transactions that never pass through the
// decoder, so blacklist soundness has to hold at this layer too, not just
// at the decoder's.
func New(cfg Config, whales *registry.WhaleRegistry, blacklist *registry.StablecoinBlacklist, state *registry.State) *Classifier {
	return &Classifier{cfg: cfg, whales: whales, blacklist: blacklist, state: state, nowFunc: time.Now}
}

// Classify runs the ordered decision procedure. It returns the raw
// WhaleBuy and true on a pass; false means drop, and reason names which
// rule fired (for the debug log line the caller is expected to emit).
func (c *Classifier) Classify(tx *solanatx.ParsedTx) (signal.WhaleBuy, bool, string) {
	if !tx.Succeeded {
		return signal.WhaleBuy{}, false, "transaction did not succeed"
	}

	info, tracked := c.whales.Lookup(tx.FeePayer)
	if !tracked {
		return signal.WhaleBuy{}, false, "fee payer is not a tracked whale"
	}

	if !isBuy(tx.LogMessages, tx.InvokedProgramIDs) {
		return signal.WhaleBuy{}, false, "transaction is not a buy"
	}

	if tx.ReceivedMint == nil {
		return signal.WhaleBuy{}, false, "no received mint"
	}

	if c.blacklist != nil && c.blacklist.Contains(*tx.ReceivedMint) {
		return signal.WhaleBuy{}, false, "received mint is blacklisted"
	}

	if tx.AmountSOL < c.cfg.MinBuySOL {
		return signal.WhaleBuy{}, false, "amount below threshold"
	}

	ageSeconds := 0.0
	if tx.BlockTime != nil {
		age := c.nowFunc().Sub(time.Unix(*tx.BlockTime, 0))
		if age > c.cfg.TimeWindow {
			return signal.WhaleBuy{}, false, "signal too old"
		}
		ageSeconds = age.Seconds()
	}

	if !c.state.TryReserve(*tx.ReceivedMint) {
		return signal.WhaleBuy{}, false, "mint already emitted or in flight"
	}

	buy := signal.WhaleBuy{
		WhaleWallet: tx.FeePayer,
		TokenMint:   *tx.ReceivedMint,
		AmountSOL:   tx.AmountSOL,
		Signature:   tx.Signature,
		BlockTime:   tx.BlockTime,
		AgeSeconds:  ageSeconds,
		WhaleLabel:  info.Label,
	}
	log.Debugf("classify: qualifying whale buy: %v", spew.Sdump(buy))
	return buy, true, ""
}

// knownAMMPrograms is consulted only for the "known AMM program ID +
// swap/buy keyword" buy-detection rule; platform tagging itself happens
// downstream in internal/platform.
var knownAMMPrograms = []solana.PublicKey{
	solanatx.ProgramPumpswap,
	solanatx.ProgramRaydiumAMM,
	solanatx.ProgramJupiter,
}

// isBuy implements the buy-detection rules: any matching log line, a known
// launchpad program invoked (sufficient on its own — see
// solanatx.IsLaunchpadProgram), or a known AMM program ID invoked alongside
// swap/buy language in the logs. The launchpad case is what lets the
// webhook backup channel copy pump_fun/lets_bonk/bags buys whose provider
// type is neither SWAP nor BUY: that ingress variant delivers pre-enriched
// transactions with no real program logs, only program-ID hints (see
// webhook.programHints) plus at most one log line synthesized from the
// provider's type (see webhook.buyEvidenceLog).
func isBuy(logMessages []string, invoked map[solana.PublicKey]struct{}) bool {
	for id := range invoked {
		if solanatx.IsLaunchpadProgram(id) {
			return true
		}
	}

	hasKnownAMM := false
	for _, id := range knownAMMPrograms {
		if _, ok := invoked[id]; ok {
			hasKnownAMM = true
			break
		}
	}

	for _, line := range logMessages {
		lower := strings.ToLower(line)
		if strings.HasPrefix(lower, "program log: ") && strings.Contains(lower, "instruction: buy") {
			return true
		}
		if strings.Contains(lower, "instruction: swap") || strings.Contains(lower, "ray_log") {
			return true
		}
		if hasKnownAMM && (strings.Contains(lower, "swap") || strings.Contains(lower, "buy")) {
			return true
		}
	}
	return false
}
