// Package webhook is the HTTP Webhook Ingress (backup channel): a plain
// net/http server exposing POST /webhook and GET /health. It decouples the
// HTTP handler from the bounded Supervisor sink using
// lightningnetwork/lnd/queue.ConcurrentQueue the same way the teacher
// decouples peer message reads from htlcswitch dispatch, so a slow
// Supervisor never backs up into held HTTP connections.
package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/queue"

	"github.com/agrozold/pumpfun-bonkfun-bot/internal/ingress"
	"github.com/agrozold/pumpfun-bonkfun-bot/internal/solanatx"
)

// inboundQueueSize bounds the ConcurrentQueue's internal buffering before it
// must grow; provider bursts beyond this still get absorbed, just with more
// internal allocation, since ConcurrentQueue never blocks the producer.
const inboundQueueSize = 1000

// readTimeout bounds webhook POST processing end to end.
const readTimeout = 10 * time.Second

// HealthSnapshotFunc produces the aggregated `/health` payload. The server
// itself has no opinion on what belongs in it; the pipeline wires in the
// watchdog's snapshot builder.
type HealthSnapshotFunc func() any

// Server is the Variant B Ingress implementation.
type Server struct {
	addr        string
	healthFn    HealthSnapshotFunc
	httpServer  *http.Server
	inbound     *queue.ConcurrentQueue
	forwardDone chan struct{}

	mu            sync.Mutex
	connected     bool
	lastMessageAt time.Time
	dropped       int
}

// New constructs a Server listening on addr (e.g. ":8080"). healthFn may be
// nil until the watchdog is wired in; /health then reports an empty JSON
// object.
func New(addr string, healthFn HealthSnapshotFunc) *Server {
	if healthFn == nil {
		healthFn = func() any { return struct{}{} }
	}
	return &Server{
		addr:        addr,
		healthFn:    healthFn,
		inbound:     queue.NewConcurrentQueue(inboundQueueSize),
		forwardDone: make(chan struct{}),
	}
}

// Start launches the HTTP server and the forwarding goroutine that drains
// the inbound queue onto sink.
func (s *Server) Start(ctx context.Context, sink chan<- *ingress.Candidate) error {
	s.inbound.Start()

	mux := http.NewServeMux()
	mux.HandleFunc("/webhook", s.handleWebhook)
	mux.HandleFunc("/health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:        s.addr,
		Handler:     mux,
		ReadTimeout: readTimeout,
	}

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("webhook: server exited: %v", err)
		}
	}()

	s.mu.Lock()
	s.connected = true
	s.mu.Unlock()

	go s.forward(ctx, sink)
	return nil
}

// Stop shuts down the HTTP server and the forwarding goroutine.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.httpServer.Shutdown(ctx)
	s.inbound.Stop()
	<-s.forwardDone

	s.mu.Lock()
	s.connected = false
	s.mu.Unlock()
	return err
}

// SetHealthSnapshotFunc wires in the aggregated health snapshot builder
// after construction. The pipeline constructs the Supervisor (which needs
// this Server as one of its channels) before the Watchdog (whose Snapshot
// method becomes healthFn), so the two can't be wired in one shot at New.
func (s *Server) SetHealthSnapshotFunc(fn HealthSnapshotFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.healthFn = fn
}

// Health reports the webhook channel's state. "Connected" here means the
// HTTP listener is up, not that a provider is actively posting.
func (s *Server) Health() ingress.ChannelHealthRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ingress.ChannelHealthRecord{
		Name:          "webhook",
		Connected:     s.connected,
		LastMessageAt: s.lastMessageAt,
	}
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var txs []WebhookTx
	if err := json.NewDecoder(r.Body).Decode(&txs); err != nil {
		log.Warnf("webhook: rejecting malformed body: %v", err)
		w.WriteHeader(http.StatusOK) // never surface validation failures as HTTP errors
		return
	}

	for _, tx := range txs {
		parsed, ok := toParsedTx(tx)
		if !ok {
			log.Debugf("webhook: skipping unusable entry for signature %q", tx.Signature)
			continue
		}
		s.inbound.ChanIn() <- parsed
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	healthFn := s.healthFn
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(healthFn()); err != nil {
		log.Errorf("webhook: encoding health snapshot: %v", err)
	}
}

func (s *Server) forward(ctx context.Context, sink chan<- *ingress.Candidate) {
	defer close(s.forwardDone)
	for {
		select {
		case item, ok := <-s.inbound.ChanOut():
			if !ok {
				return
			}
			parsed := item.(*solanatx.ParsedTx)
			candidate := &ingress.Candidate{
				Parsed:      parsed,
				ChannelName: "webhook",
				ReceivedAt:  time.Now(),
			}

			s.mu.Lock()
			s.lastMessageAt = candidate.ReceivedAt
			s.mu.Unlock()

			select {
			case sink <- candidate:
			default:
				s.mu.Lock()
				s.dropped++
				s.mu.Unlock()
				log.Warnf("webhook: sink full, dropping candidate for signature %x", parsed.Signature)
			}
		case <-ctx.Done():
			return
		}
	}
}
