package pipeline

import (
	"context"

	"github.com/gagliardetto/solana-go"

	"github.com/agrozold/pumpfun-bonkfun-bot/internal/ratelimit"
	"github.com/agrozold/pumpfun-bonkfun-bot/internal/solanatx"
)

// ChainClient is the abstract capability the pipeline depends on for the
// one piece of RPC the core itself issues: resolving an address-lookup
// table's stored addresses so the decoder can expand v0-message account
// keys. The blockchain protocol itself is assumed as a primitive available
// through an abstract ChainClient capability; this interface is
// deliberately narrow, covering only that one call, not a general-purpose
// RPC client.
type ChainClient interface {
	GetAddressLookupTable(ctx context.Context, endpoint string, table solana.PublicKey) (writable, readonly []solana.PublicKey, err error)
}

// rateLimitedLookupResolver adapts a ChainClient plus the rate-limited
// endpoint pool into solanatx.LookupTableResolver, so the decoder never
// talks to a provider directly: every lookup-table fetch goes through
// Select/ReportSuccess/ReportError like every other piece of outbound RPC
// this pipeline issues: the rate-limit pool is the only shared external-IO
// gatekeeper.
type rateLimitedLookupResolver struct {
	pool   *ratelimit.Pool
	client ChainClient
}

func newRateLimitedLookupResolver(pool *ratelimit.Pool, client ChainClient) *rateLimitedLookupResolver {
	return &rateLimitedLookupResolver{pool: pool, client: client}
}

// ResolveAddressLookupTable implements solanatx.LookupTableResolver. A
// ErrNoHealthyEndpoint from the pool surfaces as-is: it is non-fatal, and
// the decoder converts it into a MalformedTx drop for that one candidate.
func (r *rateLimitedLookupResolver) ResolveAddressLookupTable(table solana.PublicKey) (writable, readonly []solana.PublicKey, err error) {
	ep, err := r.pool.Select(ratelimit.Http)
	if err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), rpcTimeout)
	defer cancel()

	writable, readonly, err = r.client.GetAddressLookupTable(ctx, ep.URL, table)
	if err != nil {
		r.pool.ReportError(ep, classifyRPCError(err))
		return nil, nil, err
	}
	r.pool.ReportSuccess(ep)
	return writable, readonly, nil
}

var _ solanatx.LookupTableResolver = (*rateLimitedLookupResolver)(nil)

// classifyRPCError always reports ClassRetryable here: this pipeline has no
// visibility into the distinction between a transient network error and a
// non-retryable application error at this call site (ChainClient returns a
// plain error), so it errs toward counting every failure against the
// disable threshold rather than silently never tripping it.
func classifyRPCError(err error) ratelimit.ErrorClass {
	return ratelimit.ClassRetryable
}
