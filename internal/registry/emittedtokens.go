package registry

import (
	"encoding/json"
	"sync"

	"github.com/gagliardetto/solana-go"
)

// DefaultEmittedTokenCapacity bounds the persistent emitted-token set.
const DefaultEmittedTokenCapacity = 500

// EmittedTokens is the append-only, bounded, persisted set of mints the
// pipeline has already emitted a buy intent for. It grows monotonically in
// normal operation; the only shrink path is the oldest-half eviction that
// keeps the file from growing without bound.
type EmittedTokens struct {
	mu       sync.Mutex
	path     string
	capacity int
	order    []string
	index    map[string]struct{}
}

// LoadEmittedTokens reads path (falling back to path+".bak" on corruption)
// and builds the in-memory set. If both the primary and backup are
// unreadable, it starts empty and logs a critical error: this risks at
// most one duplicate buy, which the executor's own rules can still refuse.
func LoadEmittedTokens(path string, capacity int) *EmittedTokens {
	if capacity <= 0 {
		capacity = DefaultEmittedTokenCapacity
	}
	e := &EmittedTokens{path: path, capacity: capacity, index: make(map[string]struct{})}

	err := readWithBackupFallback(path, func(raw []byte) error {
		var mints []string
		if jerr := json.Unmarshal(raw, &mints); jerr != nil {
			return jerr
		}
		e.order = mints
		e.index = make(map[string]struct{}, len(mints))
		for _, m := range mints {
			e.index[m] = struct{}{}
		}
		return nil
	})
	if err != nil {
		log.Errorf("registry: emitted-token state unreadable, starting empty: %v", err)
	}
	return e
}

// Contains reports whether mint has already been emitted.
func (e *EmittedTokens) Contains(mint solana.PublicKey) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.index[mint.String()]
	return ok
}

// Add records mint as emitted and persists the set atomically. Callers are
// expected to have already verified uniqueness under the registry's single
// critical-section mutex; a mint that is already present is left as is and
// nothing is written.
func (e *EmittedTokens) Add(mint solana.PublicKey) error {
	key := mint.String()

	e.mu.Lock()
	if _, ok := e.index[key]; ok {
		e.mu.Unlock()
		return nil
	}
	e.index[key] = struct{}{}
	e.order = append(e.order, key)
	if len(e.order) > e.capacity {
		cut := len(e.order) / 2
		for _, m := range e.order[:cut] {
			delete(e.index, m)
		}
		remaining := make([]string, len(e.order)-cut)
		copy(remaining, e.order[cut:])
		e.order = remaining
	}
	snapshot := make([]string, len(e.order))
	copy(snapshot, e.order)
	e.mu.Unlock()

	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return atomicWriteFile(e.path, data)
}

// Len reports how many mints are currently tracked.
func (e *EmittedTokens) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.index)
}
