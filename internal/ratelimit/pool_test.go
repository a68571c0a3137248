package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestPool(endpoints []Endpoint) *Pool {
	return NewPool(endpoints, nil)
}

func TestSelectPrefersLowerPriority(t *testing.T) {
	p := newTestPool([]Endpoint{
		{Name: "low-prio", Kind: Http, Weight: 1, RateLimitPerSecond: 100, Priority: 5},
		{Name: "high-prio", Kind: Http, Weight: 1, RateLimitPerSecond: 100, Priority: 0},
	})

	ep, err := p.Select(Http)
	require.NoError(t, err)
	require.Equal(t, "high-prio", ep.Name)
}

func TestSelectIgnoresDisabledEndpoint(t *testing.T) {
	p := newTestPool([]Endpoint{
		{Name: "only", Kind: Http, Weight: 1, RateLimitPerSecond: 100, Priority: 0},
	})
	only := p.endpoints[0]

	fixed := time.Now()
	p.now = func() time.Time { return fixed }
	only.disabledUntil = fixed.Add(Cooldown)

	_, err := p.Select(Http)
	require.ErrorIs(t, err, ErrNoHealthyEndpoint)
}

func TestSelectFiltersByKind(t *testing.T) {
	p := newTestPool([]Endpoint{
		{Name: "ws", Kind: WebSocket, Weight: 1, RateLimitPerSecond: 100, Priority: 0},
	})

	_, err := p.Select(Http)
	require.ErrorIs(t, err, ErrNoHealthyEndpoint)

	ep, err := p.Select(WebSocket)
	require.NoError(t, err)
	require.Equal(t, "ws", ep.Name)
}

func TestWeightedRoundRobinMatchesConfiguredRatio(t *testing.T) {
	p := newTestPool([]Endpoint{
		{Name: "heavy", Kind: Http, Weight: 3, RateLimitPerSecond: 1000, Priority: 0},
		{Name: "light", Kind: Http, Weight: 1, RateLimitPerSecond: 1000, Priority: 0},
	})

	base := time.Now()
	counts := map[string]int{}
	for i := 0; i < 400; i++ {
		// Step the clock past both endpoints' 1 ms request spacing so every
		// round is decided by the weighted round robin, not the rate limit.
		at := base.Add(time.Duration(i) * 10 * time.Millisecond)
		p.now = func() time.Time { return at }
		ep, err := p.Select(Http)
		require.NoError(t, err)
		counts[ep.Name]++
	}

	// Across many rounds, smooth weighted round robin should land close to
	// the 3:1 configured ratio without batching identical picks together.
	ratio := float64(counts["heavy"]) / float64(counts["light"])
	require.InDelta(t, 3.0, ratio, 0.5)
}

func TestReportErrorDisablesAfterMaxConsecutiveErrors(t *testing.T) {
	p := newTestPool([]Endpoint{
		{Name: "flaky", Kind: Http, Weight: 1, RateLimitPerSecond: 1000, Priority: 0},
	})
	ep := p.endpoints[0]

	for i := 0; i < MaxConsecutiveErrors-1; i++ {
		p.ReportError(ep, ClassRetryable)
		require.False(t, p.now().Before(ep.disabledUntil) || ep.Disabled(p.now()))
	}
	p.ReportError(ep, ClassRetryable)
	require.True(t, ep.Disabled(p.now()))
}

func TestReportErrorApplicationClassNeverDisables(t *testing.T) {
	p := newTestPool([]Endpoint{
		{Name: "picky", Kind: Http, Weight: 1, RateLimitPerSecond: 1000, Priority: 0},
	})
	ep := p.endpoints[0]

	for i := 0; i < MaxConsecutiveErrors*3; i++ {
		p.ReportError(ep, ClassApplication)
	}
	require.False(t, ep.Disabled(p.now()))
}

func TestReportSuccessResetsConsecutiveErrors(t *testing.T) {
	p := newTestPool([]Endpoint{
		{Name: "recovering", Kind: Http, Weight: 1, RateLimitPerSecond: 1000, Priority: 0},
	})
	ep := p.endpoints[0]

	p.ReportError(ep, ClassRetryable)
	p.ReportError(ep, ClassRetryable)
	p.ReportSuccess(ep)
	require.Equal(t, 0, ep.consecutiveErrors)
}

func TestEndpointBecomesEligibleAfterCooldown(t *testing.T) {
	p := newTestPool([]Endpoint{
		{Name: "only", Kind: Http, Weight: 1, RateLimitPerSecond: 1000, Priority: 0},
	})
	ep := p.endpoints[0]

	base := time.Now()
	p.now = func() time.Time { return base }
	for i := 0; i < MaxConsecutiveErrors; i++ {
		p.ReportError(ep, ClassRetryable)
	}
	_, err := p.Select(Http)
	require.ErrorIs(t, err, ErrNoHealthyEndpoint)

	p.now = func() time.Time { return base.Add(Cooldown + time.Second) }
	winner, err := p.Select(Http)
	require.NoError(t, err)
	require.Equal(t, "only", winner.Name)
}

func TestRateLimitSpacingRespected(t *testing.T) {
	p := newTestPool([]Endpoint{
		{Name: "slow", Kind: Http, Weight: 1, RateLimitPerSecond: 1, Priority: 0},
	})
	base := time.Now()
	p.now = func() time.Time { return base }

	_, err := p.Select(Http)
	require.NoError(t, err)

	_, err = p.Select(Http)
	require.ErrorIs(t, err, ErrNoHealthyEndpoint, "a second selection within the same second should find no eligible endpoint")

	p.now = func() time.Time { return base.Add(1100 * time.Millisecond) }
	_, err = p.Select(Http)
	require.NoError(t, err)
}
