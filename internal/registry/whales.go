package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/gagliardetto/solana-go"
)

// WhaleInfo is the metadata the registry carries for a tracked wallet.
type WhaleInfo struct {
	Label   string  `json:"label"`
	WinRate float64 `json:"win_rate"`
	Source  string  `json:"source"`
}

// whaleDocument is the on-disk shape of the wallets file: a map keyed by
// base58 wallet address.
type whaleDocument map[string]WhaleInfo

// WhaleRegistry is the read-mostly wallet-address-to-metadata map. It is
// populated at startup and mutated only by an explicit Reload call, never
// incrementally, mirroring the teacher's channeldb pattern of swapping a
// whole snapshot under a lock rather than patching entries in place.
type WhaleRegistry struct {
	mu     sync.RWMutex
	path   string
	whales map[solana.PublicKey]WhaleInfo
}

// LoadWhaleRegistry reads the wallets file at path and builds the initial
// registry. A missing file is not an error: the pipeline simply starts with
// no tracked whales. A file that exists but does not parse as a wallets
// document, an empty file included, is an error.
func LoadWhaleRegistry(path string) (*WhaleRegistry, error) {
	r := &WhaleRegistry{path: path, whales: make(map[solana.PublicKey]WhaleInfo)}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload re-reads the wallets file from disk and atomically swaps the
// in-memory map. Intended to be driven by an explicit admin action, never
// on a timer.
func (r *WhaleRegistry) Reload() error {
	raw, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		r.mu.Lock()
		r.whales = make(map[solana.PublicKey]WhaleInfo)
		r.mu.Unlock()
		return nil
	}
	if err != nil {
		return fmt.Errorf("registry: reading wallets file: %w", err)
	}

	var doc whaleDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("registry: parsing wallets file: %w", err)
	}

	parsed := make(map[solana.PublicKey]WhaleInfo, len(doc))
	for addr, info := range doc {
		pk, err := solana.PublicKeyFromBase58(addr)
		if err != nil {
			log.Warnf("registry: skipping malformed wallet address %q: %v", addr, err)
			continue
		}
		parsed[pk] = info
	}

	r.mu.Lock()
	r.whales = parsed
	r.mu.Unlock()

	log.Infof("registry: loaded %d tracked whales from %s", len(parsed), r.path)
	return nil
}

// Lookup returns the whale's metadata and whether wallet is tracked at all.
func (r *WhaleRegistry) Lookup(wallet solana.PublicKey) (WhaleInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.whales[wallet]
	return info, ok
}

// Len reports the number of tracked whales.
func (r *WhaleRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.whales)
}
