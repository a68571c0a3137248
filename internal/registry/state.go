package registry

import (
	"sync"

	"github.com/gagliardetto/solana-go"
)

// State bundles the emitted-token set and the buying-in-progress set behind
// the single mutex that must gate both: a mint may only advance into
// emission once, and the check-and-reserve for "is this mint already
// emitted or already being bought" has to be one atomic step shared across
// every concurrent classification flow.
type State struct {
	mu       sync.Mutex
	emitted  *EmittedTokens
	inFlight map[solana.PublicKey]struct{}
}

// NewState wraps an already-loaded EmittedTokens set.
func NewState(emitted *EmittedTokens) *State {
	return &State{
		emitted:  emitted,
		inFlight: make(map[solana.PublicKey]struct{}),
	}
}

// TryReserve is the one critical section in the pipeline: it atomically
// checks whether mint has already been emitted or is already mid-purchase
// and, if neither, marks it in-progress and returns true. Callers must call
// Release(mint, outcome) exactly once for every true result, regardless of
// how the downstream emission call turns out.
func (s *State) TryReserve(mint solana.PublicKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.emitted.Contains(mint) {
		return false
	}
	if _, busy := s.inFlight[mint]; busy {
		return false
	}
	s.inFlight[mint] = struct{}{}
	return true
}

// Release clears mint's in-progress marker and, if bought is true, commits
// it to the persistent emitted-token set. This must be called exactly once
// per successful TryReserve, after the executor call returns — the
// executor call itself happens outside any mutex held by this package.
func (s *State) Release(mint solana.PublicKey, bought bool) error {
	s.mu.Lock()
	delete(s.inFlight, mint)
	s.mu.Unlock()

	if !bought {
		return nil
	}
	return s.emitted.Add(mint)
}

// InFlightCount reports how many mints are currently mid-purchase. Used by
// the watchdog's health snapshot.
func (s *State) InFlightCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inFlight)
}

// EmittedCount reports how many mints have been fully emitted.
func (s *State) EmittedCount() int {
	return s.emitted.Len()
}
