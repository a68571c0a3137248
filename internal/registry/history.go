package registry

import (
	"encoding/json"
	"sync"
)

// HistoryEntry is one recorded successful buy.
type HistoryEntry struct {
	Mint       string  `json:"mint"`
	Timestamp  int64   `json:"timestamp"`
	WhaleLabel string  `json:"whale_label"`
	AmountSOL  float64 `json:"amount_sol"`
	Signature  string  `json:"signature"`
}

// PurchaseHistory is the append-only record of every successful emission,
// rewritten atomically like EmittedTokens since append-in-place on a JSON
// array isn't meaningfully cheaper than a full rewrite at this scale.
type PurchaseHistory struct {
	mu      sync.Mutex
	path    string
	entries []HistoryEntry
}

// LoadPurchaseHistory reads path, falling back to its backup on corruption.
// An unreadable history is non-fatal: the pipeline starts with an empty
// history and keeps operating, since this file is a record, not a gate.
func LoadPurchaseHistory(path string) *PurchaseHistory {
	h := &PurchaseHistory{path: path}
	err := readWithBackupFallback(path, func(raw []byte) error {
		var entries []HistoryEntry
		if jerr := json.Unmarshal(raw, &entries); jerr != nil {
			return jerr
		}
		h.entries = entries
		return nil
	})
	if err != nil {
		log.Errorf("registry: purchase history unreadable, starting empty: %v", err)
	}
	return h
}

// Append records entry and persists the full history atomically.
func (h *PurchaseHistory) Append(entry HistoryEntry) error {
	h.mu.Lock()
	h.entries = append(h.entries, entry)
	snapshot := make([]HistoryEntry, len(h.entries))
	copy(snapshot, h.entries)
	h.mu.Unlock()

	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return atomicWriteFile(h.path, data)
}

// Len reports the number of recorded purchases.
func (h *PurchaseHistory) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}
