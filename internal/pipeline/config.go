package pipeline

import (
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/agrozold/pumpfun-bonkfun-bot/internal/classify"
	"github.com/agrozold/pumpfun-bonkfun-bot/internal/ratelimit"
	"github.com/agrozold/pumpfun-bonkfun-bot/internal/registry"
)

// ProviderConfig is one entry of the enumerated `rpc.providers[]` config
// key: a single rate-limited endpoint the pool may select for outbound RPC
// (address-lookup-table resolution is the only RPC this core issues).
type ProviderConfig struct {
	Name               string
	URL                string
	Kind               ratelimit.Kind
	Weight             int
	RateLimitPerSecond float64
	Priority           int
}

// StreamTarget is one Binary-Stream Ingress instance's dial target. The two
// configured instances point at independent providers.
type StreamTarget struct {
	Name   string
	Target string // gRPC dial target or WebSocket URL, depending on the variant
}

// Config holds every recognized key for the core, plus the small
// set of wiring details (stream dial targets, state file paths) the
// enumerated config table leaves to the deployment, the same way
// htlcswitch.Config carries both spec-level knobs and local wiring
// parameters side by side.
type Config struct {
	// whale_copy.enabled
	Enabled bool
	// whale_copy.wallets_file
	WalletsFile string
	// whale_copy.min_buy_amount
	MinBuyAmount float64
	// whale_copy.time_window_minutes
	TimeWindowMinutes float64
	// whale_copy.target_platform
	TargetPlatform string
	// whale_all_platforms
	WhaleAllPlatforms bool
	// stablecoin_filter
	StablecoinFilter []solana.PublicKey

	// rpc.providers[]
	Providers []ProviderConfig

	// webhook.port
	WebhookPort int

	// dedup.signature_capacity
	DedupSignatureCapacity int
	// dedup.emitted_token_capacity
	DedupEmittedTokenCapacity int

	// GRPCStreamTarget and WSStreamTarget are the two Binary-Stream Ingress
	// instances' dial targets. Not part of the enumerated config table
	// (which only covers rpc.providers[] for the rate-limited pool) since
	// the streaming subscription endpoints are a separate concern from
	// quota-gated request/response RPC.
	GRPCStreamTarget StreamTarget
	WSStreamTarget   StreamTarget

	// StateDir holds emitted_tokens.json and purchased_history.json.
	StateDir string
}

// MinBuyThreshold returns MinBuyAmount, defaulting if unset.
func (c Config) MinBuyThreshold() float64 {
	if c.MinBuyAmount <= 0 {
		return classify.DefaultMinBuySOL
	}
	return c.MinBuyAmount
}

// TimeWindow returns TimeWindowMinutes as a Duration, defaulting if unset.
func (c Config) TimeWindow() time.Duration {
	if c.TimeWindowMinutes <= 0 {
		return classify.DefaultTimeWindow
	}
	return time.Duration(c.TimeWindowMinutes * float64(time.Minute))
}

// SignatureCapacity returns DedupSignatureCapacity, defaulting if unset.
func (c Config) SignatureCapacity() int {
	if c.DedupSignatureCapacity <= 0 {
		return 5000
	}
	return c.DedupSignatureCapacity
}

// EmittedTokenCapacity returns DedupEmittedTokenCapacity, defaulting if unset.
func (c Config) EmittedTokenCapacity() int {
	if c.DedupEmittedTokenCapacity <= 0 {
		return registry.DefaultEmittedTokenCapacity
	}
	return c.DedupEmittedTokenCapacity
}

// PlatformAllowed reports whether tag passes the whale_copy.target_platform
// / whale_all_platforms gate.
func (c Config) PlatformAllowed(tag string) bool {
	if c.WhaleAllPlatforms || c.TargetPlatform == "" {
		return true
	}
	return c.TargetPlatform == tag
}
