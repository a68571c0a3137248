// Package watchdog observes ingress channel health and alarms without
// ever acting: no restart, no reconnect, just log lines. It is built on
// lightningnetwork/lnd/ticker for its wakeup cadence and wraps its check in
// lightningnetwork/lnd/healthcheck's CheckFunc type, the same function
// shape the teacher uses for its own liveness probes; no healthcheck
// Observation or Monitor is run, and the check only logs.
package watchdog

import (
	"context"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/healthcheck"
	"github.com/lightningnetwork/lnd/ticker"

	"github.com/agrozold/pumpfun-bonkfun-bot/internal/ingress"
	"github.com/agrozold/pumpfun-bonkfun-bot/internal/ratelimit"
	"github.com/agrozold/pumpfun-bonkfun-bot/internal/registry"
)

// PollInterval is the watchdog's wakeup cadence.
const PollInterval = 30 * time.Second

// SilenceThreshold is how long a channel may go without a message before
// it's considered silent.
const SilenceThreshold = 5 * time.Minute

// alarmRepeat is how often a still-active alarm condition is re-logged,
// so operators get a periodic reminder without being flooded on every
// 30 s poll.
const alarmRepeat = 60 * time.Second

// ChannelHealthSource is the narrow capability the watchdog needs from the
// Supervisor: a point-in-time view of every registered ingress channel.
type ChannelHealthSource interface {
	HealthSnapshot() []ingress.ChannelHealthRecord
}

// Watchdog periodically polls channel health and logs warnings/errors. It
// never restarts a channel — that responsibility belongs entirely to each
// Ingress implementation's own reconnect logic.
type Watchdog struct {
	source  ChannelHealthSource
	pool    *ratelimit.Pool
	dedup   dedupCounter
	state   *registry.State
	ticker  ticker.Ticker
	check0  healthcheck.CheckFunc
	nowFunc func() time.Time

	mu             sync.Mutex
	lastAllErrorAt time.Time
	lastWarnAt     map[string]time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// dedupCounter is the narrow capability needed from dedup.Tracker for the
// health snapshot's "reservation counts" field.
type dedupCounter interface {
	ProcessedCount() int
}

// New constructs a Watchdog. All collaborators are read-only views; the
// watchdog never mutates pipeline state.
func New(source ChannelHealthSource, pool *ratelimit.Pool, dedup dedupCounter, state *registry.State) *Watchdog {
	w := &Watchdog{
		source:     source,
		pool:       pool,
		dedup:      dedup,
		state:      state,
		ticker:     ticker.New(PollInterval),
		nowFunc:    time.Now,
		lastWarnAt: make(map[string]time.Time),
	}
	// healthcheck.CheckFunc is the same function shape the teacher's own
	// liveness probes use; wrapping check() in it keeps the two alarm
	// paths (this one and any future healthcheck.Monitor-driven probe)
	// interchangeable.
	w.check0 = func() error {
		w.check()
		return nil
	}
	return w
}

// Start begins the periodic health check. It returns immediately; checks
// run on a background goroutine until Stop is called.
func (w *Watchdog) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})

	w.ticker.Resume()
	go w.run(runCtx)
	return nil
}

// Stop halts the background goroutine.
func (w *Watchdog) Stop() error {
	if w.cancel != nil {
		w.cancel()
	}
	w.ticker.Stop()
	if w.done != nil {
		<-w.done
	}
	return nil
}

func (w *Watchdog) run(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-w.ticker.Ticks():
			if err := w.check0(); err != nil {
				log.Errorf("watchdog: check returned an error (should never happen): %v", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (w *Watchdog) check() {
	records := w.source.HealthSnapshot()
	now := w.nowFunc()

	silent := 0
	for _, rec := range records {
		if now.Sub(rec.LastMessageAt) >= SilenceThreshold {
			silent++
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	switch {
	case len(records) > 0 && silent == len(records):
		if now.Sub(w.lastAllErrorAt) >= alarmRepeat {
			log.Errorf("watchdog: all %d ingress channels have been silent for >= %s", len(records), SilenceThreshold)
			w.lastAllErrorAt = now
		}
	case silent == 1:
		for _, rec := range records {
			if now.Sub(rec.LastMessageAt) < SilenceThreshold {
				continue
			}
			if now.Sub(w.lastWarnAt[rec.Name]) >= alarmRepeat {
				log.Warnf("watchdog: ingress channel %q has been silent for >= %s while others remain active", rec.Name, SilenceThreshold)
				w.lastWarnAt[rec.Name] = now
			}
		}
	}
}

// HealthSnapshot is the JSON shape served at GET /health: per-channel
// last-message age, rate-limit pool endpoint states, and counters.
type HealthSnapshot struct {
	Channels          []ChannelAge             `json:"channels"`
	RateLimitPool     []ratelimit.Snapshot      `json:"rate_limit_pool"`
	ProcessedCount    int                       `json:"processed_count"`
	EmittedTokenCount int                       `json:"emitted_token_count"`
	InFlightCount     int                       `json:"in_flight_count"`
}

// ChannelAge is one channel's health expressed as an age in seconds rather
// than an absolute timestamp, so the JSON output doesn't depend on clock
// skew between the pipeline host and whoever's reading /health.
type ChannelAge struct {
	Name            string  `json:"name"`
	Connected       bool    `json:"connected"`
	LastMessageAgeS float64 `json:"last_message_age_seconds"`
	Reconnects      int     `json:"reconnects"`
}

// Snapshot builds the full JSON-ready health view on demand; this is what
// the webhook server's HealthSnapshotFunc should call.
func (w *Watchdog) Snapshot() any {
	records := w.source.HealthSnapshot()
	now := w.nowFunc()

	channels := make([]ChannelAge, 0, len(records))
	for _, rec := range records {
		age := 0.0
		if !rec.LastMessageAt.IsZero() {
			age = now.Sub(rec.LastMessageAt).Seconds()
		}
		channels = append(channels, ChannelAge{
			Name:            rec.Name,
			Connected:       rec.Connected,
			LastMessageAgeS: age,
			Reconnects:      rec.Reconnects,
		})
	}

	return HealthSnapshot{
		Channels:          channels,
		RateLimitPool:     w.pool.Snapshot(),
		ProcessedCount:    w.dedup.ProcessedCount(),
		EmittedTokenCount: w.state.EmittedCount(),
		InFlightCount:     w.state.InFlightCount(),
	}
}

