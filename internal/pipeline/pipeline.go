// Package pipeline wires every component in internal/ into a single,
// explicit struct constructed once in main and passed by reference, rather
// than relying on package-level singletons. It owns the rate-limit pool,
// dedup set, registry, ingress
// channels, supervisor, classifier, resolver, watchdog, and emission
// boundary, and runs the classify -> resolve -> emit tail of the dataflow
// that the Supervisor's output feeds.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/agrozold/pumpfun-bonkfun-bot/internal/classify"
	"github.com/agrozold/pumpfun-bonkfun-bot/internal/dedup"
	"github.com/agrozold/pumpfun-bonkfun-bot/internal/emission"
	"github.com/agrozold/pumpfun-bonkfun-bot/internal/ingress"
	"github.com/agrozold/pumpfun-bonkfun-bot/internal/ingress/webhook"
	"github.com/agrozold/pumpfun-bonkfun-bot/internal/platform"
	"github.com/agrozold/pumpfun-bonkfun-bot/internal/ratelimit"
	"github.com/agrozold/pumpfun-bonkfun-bot/internal/registry"
	"github.com/agrozold/pumpfun-bonkfun-bot/internal/signal"
	"github.com/agrozold/pumpfun-bonkfun-bot/internal/solanatx"
	"github.com/agrozold/pumpfun-bonkfun-bot/internal/supervisor"
	"github.com/agrozold/pumpfun-bonkfun-bot/internal/watchdog"
)

// rpcTimeout bounds the one piece of RPC this core issues directly
// (address-lookup-table resolution), matching the default blockchain RPC
// request timeout.
const rpcTimeout = 5 * time.Second

// classifyWorkers bounds how many Classify->Resolve->Emit flows run
// concurrently. Classification and resolution are pure CPU and finish in
// microseconds; the only blocking step is Emit, so this is effectively
// the pipeline's concurrent-buy-in-flight limit. It is intentionally
// generous since the Classifier's first-emission reservation already
// prevents two flows from racing on the same mint.
const classifyWorkers = 16

// Deps bundles the external collaborators the pipeline cannot construct
// itself: the trade executor and the chain client. Both are modeled as
// plain interfaces the core depends on without knowing the concrete
// backend.
type Deps struct {
	Executor    emission.TradeExecutor
	ChainClient ChainClient
	Registerer  prometheus.Registerer // may be nil to disable metrics

	// StreamChannels are the two Binary-Stream Ingress instances, already
	// constructed with their provider-specific Subscriber/Decoder. Those
	// adapters wrap generated protobuf stubs or provider-specific message
	// shapes this module deliberately does not depend on directly; the
	// pipeline only ever calls Start/Stop/Health on them.
	StreamChannels []ingress.Ingress
}

// Pipeline is the whole whale-copy signal dataflow, end to end.
type Pipeline struct {
	cfg Config

	pool      *ratelimit.Pool
	tracker   *dedup.Tracker
	whales    *registry.WhaleRegistry
	blacklist *registry.StablecoinBlacklist
	state     *registry.State
	history   *registry.PurchaseHistory

	classifier *classify.Classifier
	resolver   func(signal.WhaleBuy, map[solana.PublicKey]struct{}, *solana.PublicKey) signal.BuyIntent
	boundary   *emission.Boundary

	supervisor *supervisor.Supervisor
	watchdog   *watchdog.Watchdog
	webhook    *webhook.Server

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New constructs a Pipeline. It loads the whale registry and persistent
// state from cfg.StateDir/cfg.WalletsFile; a load failure here is the
// kind of startup-time config/state error that should map to a distinct
// non-zero exit code; the caller is expected to do that mapping.
func New(cfg Config, deps Deps) (*Pipeline, error) {
	whales, err := registry.LoadWhaleRegistry(cfg.WalletsFile)
	if err != nil {
		return nil, fmt.Errorf("pipeline: loading whale registry: %w", err)
	}

	blacklist := registry.NewStablecoinBlacklist(cfg.StablecoinFilter)

	emittedPath := filepath.Join(cfg.StateDir, "emitted_tokens.json")
	historyPath := filepath.Join(cfg.StateDir, "purchased_history.json")
	emitted := registry.LoadEmittedTokens(emittedPath, cfg.EmittedTokenCapacity())
	state := registry.NewState(emitted)
	history := registry.LoadPurchaseHistory(historyPath)

	var reg prometheus.Registerer
	if deps.Registerer != nil {
		reg = deps.Registerer
	}
	pool := ratelimit.NewPool(toEndpoints(cfg.Providers), reg)

	tracker := dedup.NewTrackerWithCapacity(cfg.SignatureCapacity())

	var lookups solanatx.LookupTableResolver
	if deps.ChainClient != nil {
		lookups = newRateLimitedLookupResolver(pool, deps.ChainClient)
	}

	channels := buildChannels(cfg, deps)
	sup := supervisor.New(channels, tracker, blacklist, lookups)

	classifyCfg := classify.Config{MinBuySOL: cfg.MinBuyThreshold(), TimeWindow: cfg.TimeWindow()}
	classifier := classify.New(classifyCfg, whales, blacklist, state)

	var boundary *emission.Boundary
	if deps.Executor != nil {
		boundary = emission.New(deps.Executor, state, history)
	}

	wd := watchdog.New(sup, pool, tracker, state)

	var webhookSrv *webhook.Server
	for _, ch := range channels {
		if ws, ok := ch.(*webhook.Server); ok {
			webhookSrv = ws
			ws.SetHealthSnapshotFunc(wd.Snapshot)
		}
	}

	return &Pipeline{
		cfg:        cfg,
		pool:       pool,
		tracker:    tracker,
		whales:     whales,
		blacklist:  blacklist,
		state:      state,
		history:    history,
		classifier: classifier,
		resolver:   platform.Resolve,
		boundary:   boundary,
		supervisor: sup,
		watchdog:   wd,
		webhook:    webhookSrv,
	}, nil
}

func toEndpoints(providers []ProviderConfig) []ratelimit.Endpoint {
	out := make([]ratelimit.Endpoint, 0, len(providers))
	for _, p := range providers {
		out = append(out, ratelimit.Endpoint{
			Name:               p.Name,
			URL:                p.URL,
			Kind:               p.Kind,
			Weight:             p.Weight,
			RateLimitPerSecond: p.RateLimitPerSecond,
			Priority:           p.Priority,
		})
	}
	return out
}

func buildChannels(cfg Config, deps Deps) []ingress.Ingress {
	var channels []ingress.Ingress
	if cfg.WebhookPort > 0 {
		channels = append(channels, webhook.New(fmt.Sprintf(":%d", cfg.WebhookPort), nil))
	}
	channels = append(channels, deps.StreamChannels...)
	return channels
}

// Start launches every ingress channel, the Supervisor, the Watchdog, and
// the classify/resolve/emit worker pool. It returns once everything has
// been launched; it does not wait for any channel to actually connect.
func (p *Pipeline) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	if err := p.supervisor.Start(runCtx); err != nil {
		cancel()
		return fmt.Errorf("pipeline: starting supervisor: %w", err)
	}
	if err := p.watchdog.Start(runCtx); err != nil {
		cancel()
		return fmt.Errorf("pipeline: starting watchdog: %w", err)
	}

	for i := 0; i < classifyWorkers; i++ {
		p.wg.Add(1)
		go p.classifyLoop(runCtx)
	}

	return nil
}

// Stop cancels every long-lived task and waits, bounded to 15s, for the
// classify/resolve/emit workers to drain. It does not attempt to
// cancel an in-flight emission; the executor owns that.
func (p *Pipeline) Stop() error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(15 * time.Second):
		log.Warnf("pipeline: shutdown bound exceeded waiting for classify workers, proceeding")
	}

	// p.supervisor.Stop() already calls Stop() on every registered
	// channel, including the webhook server; no separate webhook.Stop()
	// call is needed here.
	var firstErr error
	if err := p.supervisor.Stop(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := p.watchdog.Stop(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func (p *Pipeline) classifyLoop(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case fwd, ok := <-p.supervisor.Output():
			if !ok {
				return
			}
			p.handle(ctx, fwd)
		case <-ctx.Done():
			return
		}
	}
}

func (p *Pipeline) handle(ctx context.Context, fwd *supervisor.Forwarded) {
	buy, ok, reason := p.classifier.Classify(fwd.Tx)
	if !ok {
		log.Debugf("pipeline: dropping signal from channel %q: %s", fwd.ChannelName, reason)
		return
	}

	intent := p.resolver(buy, fwd.Tx.InvokedProgramIDs, nil)
	if !p.cfg.PlatformAllowed(intent.Platform) {
		log.Debugf("pipeline: dropping %s signal for %s: platform filtered by config", intent.Platform, intent.TokenMint)
		_ = p.state.Release(intent.TokenMint, false)
		return
	}

	if p.boundary == nil {
		log.Warnf("pipeline: no trade executor wired in, dropping qualifying signal for %s", intent.TokenMint)
		_ = p.state.Release(intent.TokenMint, false)
		return
	}

	outcome, err := p.boundary.Emit(ctx, intent)
	if err != nil {
		log.Errorf("pipeline: emission for %s failed: %v", intent.TokenMint, err)
		return
	}
	if outcome.Bought {
		log.Infof("pipeline: emitted buy intent for %s (platform=%s, position=%s)",
			intent.TokenMint, intent.Platform, outcome.PositionHandle)
	}
}

// State exposes the shared registry state for callers (e.g. an admin
// reload hook) that need it outside the pipeline's own run loop.
func (p *Pipeline) State() *registry.State { return p.state }

// Whales exposes the whale registry so an operator-triggered reload can
// call Reload() on it directly.
func (p *Pipeline) Whales() *registry.WhaleRegistry { return p.whales }

