// Package supervisor fans multiple ingress channels into one decoded,
// deduplicated stream, the same role htlcswitch.Switch plays for the
// teacher's multiple peer links: many independent sources in, one
// dispatch decision per message, no transaction state of its own.
package supervisor

import (
	"context"
	"sync"
	"time"

	"github.com/agrozold/pumpfun-bonkfun-bot/internal/dedup"
	"github.com/agrozold/pumpfun-bonkfun-bot/internal/ingress"
	"github.com/agrozold/pumpfun-bonkfun-bot/internal/registry"
	"github.com/agrozold/pumpfun-bonkfun-bot/internal/solanatx"
)

// ClassifierSinkCapacity is the bound on the Supervisor-to-Classifier
// channel. On overflow the Supervisor drops the new candidate and counts
// it, rather than blocking any ingress channel.
const ClassifierSinkCapacity = 1024

// drainBound is how long Stop waits for the fan-in loop to finish handling
// whatever is already in flight before giving up.
const drainBound = 5 * time.Second

// Forwarded is what the Supervisor hands to the Classifier: a decoded
// transaction plus which channel it arrived on.
type Forwarded struct {
	Tx          *solanatx.ParsedTx
	ChannelName string
}

// Supervisor multiplexes registered Ingress channels onto a single bounded
// output queue, applying decode (where needed) and dedup along the way.
type Supervisor struct {
	channels  []ingress.Ingress
	dedup     *dedup.Tracker
	blacklist solanatx.Blacklist
	lookups   solanatx.LookupTableResolver

	in      chan *ingress.Candidate
	out     chan *Forwarded
	dropped int64

	mu       sync.Mutex
	healthBy map[string]ingress.ChannelHealthRecord

	cancel context.CancelFunc
	done   chan struct{}
}

// New constructs a Supervisor over the given channels. blacklist and
// lookups are passed straight through to the decoder for raw candidates;
// the webhook variant's already-parsed candidates skip both.
func New(channels []ingress.Ingress, tracker *dedup.Tracker, blacklist *registry.StablecoinBlacklist, lookups solanatx.LookupTableResolver) *Supervisor {
	s := &Supervisor{
		channels: channels,
		dedup:    tracker,
		lookups:  lookups,
		in:       make(chan *ingress.Candidate, ClassifierSinkCapacity),
		out:      make(chan *Forwarded, ClassifierSinkCapacity),
		healthBy: make(map[string]ingress.ChannelHealthRecord, len(channels)),
	}
	// Assigning a nil *StablecoinBlacklist straight into the Blacklist
	// interface field would produce a non-nil interface wrapping a nil
	// pointer; keep the interface itself nil in that case so decode.go's
	// nil check behaves as intended.
	if blacklist != nil {
		s.blacklist = blacklist
	}
	return s
}

// Output is the bounded stream of decoded, deduplicated transactions ready
// for classification.
func (s *Supervisor) Output() <-chan *Forwarded {
	return s.out
}

// Start launches every registered Ingress channel and the fan-in loop.
func (s *Supervisor) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	for _, ch := range s.channels {
		if err := ch.Start(runCtx, s.in); err != nil {
			cancel()
			return err
		}
	}

	go s.run(runCtx)
	return nil
}

// Stop cancels the fan-in loop and every channel, bounded to drainBound.
func (s *Supervisor) Stop() error {
	if s.cancel != nil {
		s.cancel()
	}
	select {
	case <-s.done:
	case <-time.After(drainBound):
		log.Warnf("supervisor: drain bound exceeded, proceeding with shutdown")
	}

	var firstErr error
	for _, ch := range s.channels {
		if err := ch.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Dropped returns the number of candidates dropped for sink overflow.
func (s *Supervisor) Dropped() int64 {
	return s.dropped
}

// HealthSnapshot returns the last known health record for every channel.
func (s *Supervisor) HealthSnapshot() []ingress.ChannelHealthRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ingress.ChannelHealthRecord, 0, len(s.channels))
	for _, ch := range s.channels {
		out = append(out, ch.Health())
	}
	return out
}

func (s *Supervisor) run(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case candidate := <-s.in:
			s.handle(candidate)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Supervisor) handle(candidate *ingress.Candidate) {
	var parsed *solanatx.ParsedTx

	if candidate.Parsed != nil {
		parsed = candidate.Parsed
	} else if candidate.Raw != nil {
		p, err := solanatx.Decode(candidate.Raw, s.lookups, s.blacklist)
		if err != nil {
			log.Debugf("supervisor[%s]: dropping candidate: %v", candidate.ChannelName, err)
			return
		}
		if candidate.NumSignatures > 0 {
			log.Debugf("supervisor[%s]: signature %s reported fee ~%d lamports",
				candidate.ChannelName, p.SignatureHex(), solanatx.ReportedFeeLamports(candidate.NumSignatures))
		}
		parsed = p
	} else {
		log.Warnf("supervisor[%s]: candidate has neither Raw nor Parsed set", candidate.ChannelName)
		return
	}

	sigHex := parsed.SignatureHex()
	mintKey := ""
	if parsed.ReceivedMint != nil {
		mintKey = parsed.ReceivedMint.String()
	}
	if !s.dedup.TryReserve(sigHex, mintKey) {
		return
	}

	select {
	case s.out <- &Forwarded{Tx: parsed, ChannelName: candidate.ChannelName}:
	default:
		s.dropped++
		log.Warnf("supervisor: classifier sink full, dropping signature %s", sigHex)
	}
}
