// Package ingress defines the common shape every transaction-delivery
// channel implements, mirroring how chainntfs.ChainNotifier gives the
// teacher's channel abstraction a single Start/Stop contract regardless of
// which concrete notification source backs it.
package ingress

import (
	"context"
	"time"

	"github.com/agrozold/pumpfun-bonkfun-bot/internal/solanatx"
)

// Candidate is one transaction envelope handed from an ingress channel to
// the Supervisor. It is a sum type: exactly one of Raw or Parsed is set.
// Binary-stream channels deliver Raw, since the decoder still needs to run
// on them; the webhook channel delivers an already pre-enriched
// transaction, so it sets Parsed directly and the Supervisor skips decode.
type Candidate struct {
	Raw           *solanatx.RawEnvelope
	NumSignatures int // meaningful only alongside Raw; used for fee reporting

	Parsed *solanatx.ParsedTx

	ChannelName string
	ReceivedAt  time.Time
}

// ChannelHealthRecord is the point-in-time health view the Watchdog polls
// from every registered channel.
type ChannelHealthRecord struct {
	Name          string
	Connected     bool
	LastMessageAt time.Time
	Reconnects    int
}

// Ingress is implemented by every channel variant (binary-stream, webhook).
// Start must not block past handing off its internal goroutine(s); it
// returns once the channel is actively attempting delivery. Stop must
// return once the channel has released its network resources, within the
// pipeline's bounded shutdown window.
type Ingress interface {
	Start(ctx context.Context, sink chan<- *Candidate) error
	Stop() error
	Health() ChannelHealthRecord
}

// FastReconnectDelay is used for reset-stream conditions specifically,
// where latency is the product and a full backoff ladder would be
// self-defeating.
const FastReconnectDelay = 500 * time.Millisecond

// MaxReconnectBackoff caps the exponential backoff applied to any other
// network error.
const MaxReconnectBackoff = 30 * time.Second

// NextBackoff returns the exponential backoff for the given attempt number
// (0-indexed), capped at MaxReconnectBackoff.
func NextBackoff(attempt int) time.Duration {
	// Far past the cap already; returning early also keeps the shift below
	// from overflowing into a negative or zero delay.
	if attempt >= 16 {
		return MaxReconnectBackoff
	}
	d := time.Duration(1<<uint(attempt)) * 250 * time.Millisecond
	if d > MaxReconnectBackoff {
		return MaxReconnectBackoff
	}
	return d
}
