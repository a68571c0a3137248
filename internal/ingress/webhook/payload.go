package webhook

// NativeTransfer is one lamport movement reported by the webhook provider.
type NativeTransfer struct {
	FromUserAccount string `json:"fromUserAccount"`
	ToUserAccount   string `json:"toUserAccount"`
	Amount          uint64 `json:"amount"`
}

// TokenTransfer is one SPL token movement reported by the webhook provider.
type TokenTransfer struct {
	ToUserAccount string  `json:"toUserAccount"`
	Mint          string  `json:"mint"`
	TokenAmount   float64 `json:"tokenAmount"`
}

// WebhookTx is one pre-enriched transaction in a webhook POST body.
type WebhookTx struct {
	Signature       string           `json:"signature"`
	Timestamp       int64            `json:"timestamp"`
	Type            string           `json:"type"`
	FeePayer        string           `json:"feePayer"`
	NativeTransfers []NativeTransfer `json:"nativeTransfers"`
	TokenTransfers  []TokenTransfer  `json:"tokenTransfers"`
	Events          map[string]any   `json:"events,omitempty"`
}
