// Package ratelimit implements priority- and weight-aware selection and
// quota enforcement over N RPC provider endpoints, with health-gated
// disable/recover. It is the only component in the pipeline allowed to talk
// to an outbound RPC provider directly.
package ratelimit

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

// Kind is the transport an endpoint serves.
type Kind int

const (
	Http Kind = iota
	WebSocket
	Grpc
)

const (
	// MaxConsecutiveErrors is the failure count that trips disable.
	MaxConsecutiveErrors = 5
	// Cooldown is how long a tripped endpoint stays disabled.
	Cooldown = 300 * time.Second
)

// ErrNoHealthyEndpoint is returned by Select when no endpoint of the
// requested kind is currently eligible. It is non-fatal: callers treat it
// as a transient miss.
var ErrNoHealthyEndpoint = errors.New("ratelimit: no healthy endpoint available")

// ErrorClass distinguishes errors that should count toward the disable
// threshold from ones that shouldn't.
type ErrorClass int

const (
	// ClassRetryable covers timeouts, 5xx, and 429s that persist past
	// backoff.
	ClassRetryable ErrorClass = iota
	// ClassApplication covers non-retryable application errors (e.g. "not
	// found") which never count toward disable.
	ClassApplication
)

// Endpoint is a named HTTP/streaming provider endpoint.
type Endpoint struct {
	Name               string
	URL                string
	Kind               Kind
	Weight             int
	RateLimitPerSecond float64
	Priority           int

	mu                sync.Mutex
	limiter           *rate.Limiter // authoritative quota gate; see eligible()/consume()
	consecutiveErrors int
	disabledUntil     time.Time
	currentWeight     int
	backoffUntil      time.Time // specific to repeated 429s, separate from disable

	selections prometheus.Counter
	errors     prometheus.Counter
}

func newEndpoint(cfg Endpoint) *Endpoint {
	limit := rate.Limit(cfg.RateLimitPerSecond)
	ep := &Endpoint{
		Name:               cfg.Name,
		URL:                cfg.URL,
		Kind:               cfg.Kind,
		Weight:             cfg.Weight,
		RateLimitPerSecond: cfg.RateLimitPerSecond,
		Priority:           cfg.Priority,
		limiter:            rate.NewLimiter(limit, 1),
	}
	return ep
}

// Disabled reports whether the endpoint is currently inside its cooldown
// window.
func (e *Endpoint) Disabled(now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return now.Before(e.disabledUntil)
}

// eligible reports whether e may be selected right now: not disabled, not
// mid-429-backoff, and its rate.Limiter token bucket has a token available
// at now. This is a pure read — it must not consume any budget, since
// multiple same-priority candidates are peeked before the
// weighted-round-robin tie-break picks exactly one winner. It peeks the
// limiter via Reserve/Cancel, which is the documented way to test
// availability without spending a token.
func (e *Endpoint) eligible(now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if now.Before(e.disabledUntil) || now.Before(e.backoffUntil) {
		return false
	}
	r := e.limiter.ReserveN(now, 1)
	ok := r.OK() && r.DelayFrom(now) == 0
	r.CancelAt(now)
	return ok
}

// consume spends one token from e's rate.Limiter, the authoritative quota
// gate for this endpoint. It is only ever called on the winner of a
// Select, with Pool.mu held throughout Select, so the reservation it takes
// here is the same one eligible() just peeked and cancelled; the OK/delay
// check is defensive and cancels rather than ever over-spending the
// bucket.
func (e *Endpoint) consume(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r := e.limiter.ReserveN(now, 1)
	if !r.OK() || r.DelayFrom(now) > 0 {
		r.CancelAt(now)
	}
}

// Pool multiplexes logical requests over a heterogeneous set of provider
// endpoints.
type Pool struct {
	mu        sync.Mutex
	endpoints []*Endpoint
	now       func() time.Time // overridable for deterministic tests

	selectCounter  *prometheus.CounterVec
	disableCounter *prometheus.CounterVec
}

// NewPool constructs a Pool from a set of endpoint configurations.
func NewPool(endpoints []Endpoint, reg prometheus.Registerer) *Pool {
	p := &Pool{now: time.Now}
	for _, cfg := range endpoints {
		p.endpoints = append(p.endpoints, newEndpoint(cfg))
	}
	if reg != nil {
		p.selectCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "whalecopy",
			Subsystem: "ratelimit",
			Name:      "selections_total",
			Help:      "Number of times an endpoint was selected, by endpoint name.",
		}, []string{"endpoint"})
		p.disableCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "whalecopy",
			Subsystem: "ratelimit",
			Name:      "disables_total",
			Help:      "Number of times an endpoint was disabled after exceeding the consecutive-error threshold.",
		}, []string{"endpoint"})
		reg.MustRegister(p.selectCounter, p.disableCounter)
	}
	return p
}

// Select returns the best eligible endpoint of the given kind, applying
// priority ordering with smooth weighted round robin as the tie-break.
func (p *Pool) Select(kind Kind) (*Endpoint, error) {
	now := p.now()

	p.mu.Lock()
	defer p.mu.Unlock()

	var candidates []*Endpoint
	bestPriority := int(^uint(0) >> 1)
	for _, ep := range p.endpoints {
		if ep.Kind != kind || !ep.eligible(now) {
			continue
		}
		if ep.Priority < bestPriority {
			bestPriority = ep.Priority
			candidates = candidates[:0]
			candidates = append(candidates, ep)
		} else if ep.Priority == bestPriority {
			candidates = append(candidates, ep)
		}
	}
	if len(candidates) == 0 {
		return nil, ErrNoHealthyEndpoint
	}
	if len(candidates) == 1 {
		winner := candidates[0]
		winner.consume(now)
		p.recordSelect(winner)
		return winner, nil
	}

	winner := weightedRoundRobinPick(candidates)
	winner.consume(now)
	p.recordSelect(winner)
	return winner, nil
}

func (p *Pool) recordSelect(ep *Endpoint) {
	if p.selectCounter != nil {
		p.selectCounter.WithLabelValues(ep.Name).Inc()
	}
}

// weightedRoundRobinPick implements smooth weighted round robin: every
// candidate's current-weight is bumped by its configured weight; the
// highest current-weight wins and has the sum-of-all-weights subtracted
// from it. Must be called with p.mu held.
func weightedRoundRobinPick(candidates []*Endpoint) *Endpoint {
	totalWeight := 0
	for _, ep := range candidates {
		ep.mu.Lock()
		ep.currentWeight += ep.Weight
		totalWeight += ep.Weight
		ep.mu.Unlock()
	}

	var winner *Endpoint
	best := -1 << 31
	for _, ep := range candidates {
		ep.mu.Lock()
		w := ep.currentWeight
		ep.mu.Unlock()
		if w > best {
			best = w
			winner = ep
		}
	}

	winner.mu.Lock()
	winner.currentWeight -= totalWeight
	winner.mu.Unlock()
	return winner
}

// ReportSuccess resets the endpoint's consecutive-error counter.
func (p *Pool) ReportSuccess(ep *Endpoint) {
	ep.mu.Lock()
	ep.consecutiveErrors = 0
	ep.backoffUntil = time.Time{}
	ep.mu.Unlock()
}

// ReportError records a failure against ep. Only ClassRetryable errors
// count toward the disable threshold.
func (p *Pool) ReportError(ep *Endpoint, class ErrorClass) {
	if class != ClassRetryable {
		return
	}

	now := p.now()
	ep.mu.Lock()
	ep.consecutiveErrors++
	trip := ep.consecutiveErrors >= MaxConsecutiveErrors
	if trip {
		ep.disabledUntil = now.Add(Cooldown)
	}
	ep.mu.Unlock()

	if trip {
		log.Warnf("ratelimit: disabling endpoint %s for %s after %d consecutive errors",
			ep.Name, Cooldown, MaxConsecutiveErrors)
		if p.disableCounter != nil {
			p.disableCounter.WithLabelValues(ep.Name).Inc()
		}
	}
}

// Report429 applies an endpoint-specific exponential backoff window for a
// 429 response, independent of (and shorter-lived than) the disable
// cooldown.
func (p *Pool) Report429(ep *Endpoint, attempt int) {
	backoff := time.Duration(1<<uint(attempt)) * 100 * time.Millisecond
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	now := p.now()
	ep.mu.Lock()
	ep.backoffUntil = now.Add(backoff)
	ep.mu.Unlock()
}

// Snapshot returns a point-in-time view of every endpoint for the
// watchdog's /health output.
type Snapshot struct {
	Name              string
	Kind              Kind
	ConsecutiveErrors int
	Disabled          bool
	DisabledUntil     time.Time
}

func (p *Pool) Snapshot() []Snapshot {
	now := p.now()
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Snapshot, 0, len(p.endpoints))
	for _, ep := range p.endpoints {
		ep.mu.Lock()
		out = append(out, Snapshot{
			Name:              ep.Name,
			Kind:              ep.Kind,
			ConsecutiveErrors: ep.consecutiveErrors,
			Disabled:          now.Before(ep.disabledUntil),
			DisabledUntil:     ep.disabledUntil,
		})
		ep.mu.Unlock()
	}
	return out
}
