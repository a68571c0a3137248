// Command whalecopy is the entry point for the whale-copy signal pipeline:
// it loads configuration from the environment, wires the pipeline's
// collaborators, and runs until an interrupt or terminate signal arrives.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/btcsuite/btclog"
	"github.com/gagliardetto/solana-go"
	"google.golang.org/grpc"

	"github.com/agrozold/pumpfun-bonkfun-bot/internal/classify"
	"github.com/agrozold/pumpfun-bonkfun-bot/internal/dedup"
	"github.com/agrozold/pumpfun-bonkfun-bot/internal/emission"
	"github.com/agrozold/pumpfun-bonkfun-bot/internal/ingress"
	"github.com/agrozold/pumpfun-bonkfun-bot/internal/ingress/grpcstream"
	"github.com/agrozold/pumpfun-bonkfun-bot/internal/ingress/webhook"
	"github.com/agrozold/pumpfun-bonkfun-bot/internal/ingress/wsstream"
	"github.com/agrozold/pumpfun-bonkfun-bot/internal/pipeline"
	"github.com/agrozold/pumpfun-bonkfun-bot/internal/platform"
	"github.com/agrozold/pumpfun-bonkfun-bot/internal/ratelimit"
	"github.com/agrozold/pumpfun-bonkfun-bot/internal/registry"
	txsignal "github.com/agrozold/pumpfun-bonkfun-bot/internal/signal"
	"github.com/agrozold/pumpfun-bonkfun-bot/internal/solanatx"
	"github.com/agrozold/pumpfun-bonkfun-bot/internal/supervisor"
	"github.com/agrozold/pumpfun-bonkfun-bot/internal/watchdog"
)

const version = "0.1.0"

// Exit codes: 0 clean shutdown, 1 config error, 2 persisted-state error.
const (
	exitOK          = 0
	exitConfigError = 1
	exitStateError  = 2
)

var log = btclog.Disabled

func main() {
	backend := btclog.NewBackend(os.Stdout)
	log = backend.Logger("WHLC")
	log.SetLevel(btclog.LevelInfo)
	pipeline.UseLogger(backend.Logger("PIPE"))
	emission.UseLogger(backend.Logger("EMIT"))
	classify.UseLogger(backend.Logger("CLSF"))
	solanatx.UseLogger(backend.Logger("STXN"))
	platform.UseLogger(backend.Logger("PLAT"))
	registry.UseLogger(backend.Logger("REGY"))
	supervisor.UseLogger(backend.Logger("SPVR"))
	watchdog.UseLogger(backend.Logger("WDOG"))
	dedup.UseLogger(backend.Logger("DDUP"))
	ratelimit.UseLogger(backend.Logger("RLIM"))
	grpcstream.UseLogger(backend.Logger("GRPC"))
	wsstream.UseLogger(backend.Logger("WSKT"))
	webhook.UseLogger(backend.Logger("WHOK"))

	log.Infof("whalecopy %s starting", version)

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitConfigError)
	}
	if !cfg.Enabled {
		log.Infof("whale_copy.enabled is false, exiting without starting the pipeline")
		os.Exit(exitOK)
	}

	deps := pipeline.Deps{
		Executor:    unconfiguredExecutor{},
		ChainClient: unconfiguredChainClient{},
		StreamChannels: []ingress.Ingress{
			grpcstream.New("grpc-primary", cfg.GRPCStreamTarget.Target, unconfiguredSubscriber{}),
			wsstream.New("ws-secondary", cfg.WSStreamTarget.Target, unconfiguredDecoder{}),
		},
	}

	p, err := pipeline.New(cfg, deps)
	if err != nil {
		log.Errorf("failed to construct pipeline: %v", err)
		os.Exit(exitStateError)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := p.Start(ctx); err != nil {
		log.Errorf("failed to start pipeline: %v", err)
		os.Exit(exitStateError)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Infof("shutdown signal received, stopping pipeline")
	cancel()
	if err := p.Stop(); err != nil {
		log.Errorf("error during shutdown: %v", err)
	}

	log.Infof("whalecopy stopped")
	os.Exit(exitOK)
}

// loadConfig builds a pipeline.Config from environment variables. There is
// deliberately no YAML/file-based config loader: every recognized key has a
// WHALECOPY_-prefixed environment variable and a documented default.
func loadConfig() (pipeline.Config, error) {
	cfg := pipeline.Config{
		Enabled:           envBool("WHALECOPY_ENABLED", true),
		WalletsFile:       envString("WHALECOPY_WALLETS_FILE", "wallets.json"),
		MinBuyAmount:      envFloat("WHALECOPY_MIN_BUY_AMOUNT", classify.DefaultMinBuySOL),
		TimeWindowMinutes: envFloat("WHALECOPY_TIME_WINDOW_MINUTES", 5),
		TargetPlatform:    envString("WHALECOPY_TARGET_PLATFORM", ""),
		WhaleAllPlatforms: envBool("WHALECOPY_ALL_PLATFORMS", true),
		WebhookPort:       envInt("WHALECOPY_WEBHOOK_PORT", 8089),
		StateDir:          envString("WHALECOPY_STATE_DIR", "."),
		DedupSignatureCapacity:    envInt("WHALECOPY_DEDUP_SIGNATURE_CAPACITY", dedup.DefaultCapacity),
		DedupEmittedTokenCapacity: envInt("WHALECOPY_DEDUP_EMITTED_TOKEN_CAPACITY", registry.DefaultEmittedTokenCapacity),
		GRPCStreamTarget: pipeline.StreamTarget{
			Name:   "grpc-primary",
			Target: envString("WHALECOPY_GRPC_TARGET", ""),
		},
		WSStreamTarget: pipeline.StreamTarget{
			Name:   "ws-secondary",
			Target: envString("WHALECOPY_WS_TARGET", ""),
		},
	}

	blacklist, err := envPublicKeys("WHALECOPY_STABLECOIN_FILTER")
	if err != nil {
		return pipeline.Config{}, fmt.Errorf("whalecopy: parsing WHALECOPY_STABLECOIN_FILTER: %w", err)
	}
	cfg.StablecoinFilter = blacklist

	if url := envString("WHALECOPY_RPC_URL", ""); url != "" {
		cfg.Providers = []pipeline.ProviderConfig{{
			Name:               "primary",
			URL:                url,
			Kind:               ratelimit.Http,
			Weight:             1,
			RateLimitPerSecond: envFloat("WHALECOPY_RPC_RATE_LIMIT", 10),
			Priority:           0,
		}}
	}

	return cfg, nil
}

func envString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

// envPublicKeys parses a comma-separated list of base58 addresses.
func envPublicKeys(key string) ([]solana.PublicKey, error) {
	v := os.Getenv(key)
	if v == "" {
		return nil, nil
	}
	parts := strings.Split(v, ",")
	out := make([]solana.PublicKey, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		pk, err := solana.PublicKeyFromBase58(part)
		if err != nil {
			return nil, fmt.Errorf("invalid address %q: %w", part, err)
		}
		out = append(out, pk)
	}
	return out, nil
}

// unconfiguredSubscriber, unconfiguredDecoder, unconfiguredChainClient, and
// unconfiguredExecutor are the integration seams this module deliberately
// stops short of: the provider-specific wire protocol, the blockchain RPC
// client, and the trade executor are all out of scope (they belong to a
// provider SDK and a separate execution service, respectively). They exist
// so the pipeline is fully wired and runnable end to end against real
// ingress, decode, classify, and resolve logic; a deployment swaps these
// four types for real adapters without touching anything else.

type unconfiguredSubscriber struct{}

func (unconfiguredSubscriber) Subscribe(ctx context.Context, conn *grpc.ClientConn) (grpcstream.EnvelopeStream, error) {
	return nil, errUnconfigured
}

type unconfiguredDecoder struct{}

func (unconfiguredDecoder) Decode(message []byte) (*ingress.Candidate, error) {
	return nil, errUnconfigured
}

func (unconfiguredDecoder) IsResetStream(err error) bool { return false }

func (unconfiguredDecoder) SubscribeMessage() []byte { return nil }

type unconfiguredChainClient struct{}

func (unconfiguredChainClient) GetAddressLookupTable(ctx context.Context, endpoint string, table solana.PublicKey) ([]solana.PublicKey, []solana.PublicKey, error) {
	return nil, nil, errUnconfigured
}

type unconfiguredExecutor struct{}

func (unconfiguredExecutor) Execute(ctx context.Context, intent txsignal.BuyIntent) (txsignal.EmissionOutcome, error) {
	return txsignal.EmissionOutcome{}, errUnconfigured
}

var errUnconfigured = errors.New("whalecopy: no provider/executor adapter configured for this deployment")
