// Package emission implements the single typed handoff to the external
// trade executor: the only place in the pipeline that calls out of the
// core and the only place that commits a mint to the persistent
// emitted-token set.
package emission

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/agrozold/pumpfun-bonkfun-bot/internal/registry"
	"github.com/agrozold/pumpfun-bonkfun-bot/internal/signal"
)

// TradeExecutor is the external collaborator that signs and submits the
// actual buy transaction. The core never introspects PositionHandle; it is
// an opaque identifier the executor understands. Modeled as a plain Go
// interface injected into the pipeline, matching the teacher's own idiom
// for external collaborators (chainntfs.ChainNotifier, lnwallet.BlockChainIO).
type TradeExecutor interface {
	Execute(ctx context.Context, intent signal.BuyIntent) (signal.EmissionOutcome, error)
}

// nowFunc is overridable so tests can produce deterministic history
// timestamps without touching the wall clock.
var nowFunc = time.Now

// Boundary is the Emission Boundary. It wraps a TradeExecutor with the
// bookkeeping required around it: committing successful buys to the
// persistent emitted-token set and the append-only purchase history, and
// leaving failed attempts eligible for retry.
type Boundary struct {
	executor TradeExecutor
	state    *registry.State
	history  *registry.PurchaseHistory
}

// New constructs a Boundary. state must be the same *registry.State the
// Classifier used to reserve the mint; Emit assumes the caller already
// holds a reservation obtained from state.TryReserve.
func New(executor TradeExecutor, state *registry.State, history *registry.PurchaseHistory) *Boundary {
	return &Boundary{executor: executor, state: state, history: history}
}

// Emit hands intent to the trade executor and resolves the mint's
// reservation based on the outcome. The executor call itself happens
// outside any mutex the registry holds — only the reservation check-and-set
// that happened upstream in the Classifier, and the release performed here,
// are covered by State's single critical-section mutex.
//
// Critical invariant: on a Failed outcome the mint is released without
// being added to the emitted-token set, so a future signal for the same
// mint remains eligible. Emit itself never panics or retries; the executor
// owns retry policy entirely.
func (b *Boundary) Emit(ctx context.Context, intent signal.BuyIntent) (signal.EmissionOutcome, error) {
	outcome, err := b.executor.Execute(ctx, intent)
	if err != nil {
		if relErr := b.state.Release(intent.TokenMint, false); relErr != nil {
			log.Errorf("emission: releasing reservation for %s after executor error: %v", intent.TokenMint, relErr)
		}
		return signal.EmissionOutcome{}, fmt.Errorf("emission: executor call failed: %w", err)
	}

	if !outcome.Bought {
		if relErr := b.state.Release(intent.TokenMint, false); relErr != nil {
			log.Errorf("emission: releasing reservation for %s after Failed outcome: %v", intent.TokenMint, relErr)
		}
		log.Infof("emission: %s reported Failed (%s), mint remains eligible for retry", intent.TokenMint, outcome.FailReason)
		return outcome, nil
	}

	if err := b.state.Release(intent.TokenMint, true); err != nil {
		log.Errorf("emission: committing %s to emitted-token set: %v", intent.TokenMint, err)
	}

	if b.history != nil {
		entry := registry.HistoryEntry{
			Mint:       intent.TokenMint.String(),
			Timestamp:  nowFunc().Unix(),
			WhaleLabel: intent.WhaleLabel,
			AmountSOL:  intent.AmountSOL,
			Signature:  hex.EncodeToString(intent.Signature[:]),
		}
		if err := b.history.Append(entry); err != nil {
			log.Errorf("emission: appending purchase history for %s: %v", intent.TokenMint, err)
		}
	}

	log.Infof("emission: bought %s for %s (%.4f SOL, platform=%s, position=%s)",
		intent.TokenMint, intent.WhaleWallet, intent.AmountSOL, intent.Platform, outcome.PositionHandle)
	return outcome, nil
}
