package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"github.com/agrozold/pumpfun-bonkfun-bot/internal/ingress"
	"github.com/agrozold/pumpfun-bonkfun-bot/internal/signal"
	"github.com/agrozold/pumpfun-bonkfun-bot/internal/solanatx"
)

// fakeChannel lets the test push candidates directly, the same double used
// by the supervisor's own tests.
type fakeChannel struct {
	sink chan<- *ingress.Candidate
}

func (f *fakeChannel) Start(ctx context.Context, sink chan<- *ingress.Candidate) error {
	f.sink = sink
	return nil
}

func (f *fakeChannel) Stop() error { return nil }

func (f *fakeChannel) Health() ingress.ChannelHealthRecord {
	return ingress.ChannelHealthRecord{Name: "fake"}
}

func (f *fakeChannel) push(c *ingress.Candidate) { f.sink <- c }

// fakeExecutor always reports a successful buy and hands back a recognizable
// position handle, mirroring emission's own test double.
type fakeExecutor struct {
	calls chan signal.BuyIntent
}

func (f *fakeExecutor) Execute(ctx context.Context, intent signal.BuyIntent) (signal.EmissionOutcome, error) {
	f.calls <- intent
	return signal.EmissionOutcome{Bought: true, PositionHandle: "pos-1"}, nil
}

var (
	whaleWallet = solana.MustPublicKeyFromBase58("9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM")
	tokenMint   = solana.MustPublicKeyFromBase58("DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263")
)

func buyTxFor(sigByte byte, blockTime int64) *solanatx.ParsedTx {
	var sig [64]byte
	sig[0] = sigByte
	return &solanatx.ParsedTx{
		Signature:   sig,
		BlockTime:   &blockTime,
		FeePayer:    whaleWallet,
		Succeeded:   true,
		LogMessages: []string{"Program log: Instruction: Buy"},
		InvokedProgramIDs: map[solana.PublicKey]struct{}{
			solanatx.ProgramPumpFun: {},
		},
		ReceivedMint:   &tokenMint,
		ReceivedAmount: 1000,
		AmountSOL:      1.5,
	}
}

func newTestPipeline(t *testing.T, exec *fakeExecutor, ch *fakeChannel) *Pipeline {
	t.Helper()
	dir := t.TempDir()

	walletsPath := filepath.Join(dir, "wallets.json")
	wallets := map[string]map[string]any{
		whaleWallet.String(): {"label": "whale-alpha", "win_rate": 0.7, "source": "test"},
	}
	raw, err := json.Marshal(wallets)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(walletsPath, raw, 0o600))

	cfg := Config{
		WalletsFile:       walletsPath,
		MinBuyAmount:      1.0,
		TimeWindowMinutes: 5,
		WhaleAllPlatforms: true,
		StateDir:          dir,
	}

	p, err := New(cfg, Deps{
		Executor:       exec,
		StreamChannels: []ingress.Ingress{ch},
	})
	require.NoError(t, err)
	return p
}

func TestPipelineEmitsOnceAndDropsLateDuplicate(t *testing.T) {
	ch := &fakeChannel{}
	exec := &fakeExecutor{calls: make(chan signal.BuyIntent, 2)}
	p := newTestPipeline(t, exec, ch)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, p.Start(ctx))
	defer p.Stop()

	now := time.Now().Unix()
	ch.push(&ingress.Candidate{Parsed: buyTxFor(1, now), ChannelName: "test"})

	select {
	case intent := <-exec.calls:
		require.Equal(t, tokenMint, intent.TokenMint)
		require.Equal(t, "pump_fun", intent.Platform)
		require.NotNil(t, intent.BondingCurve)
	case <-time.After(2 * time.Second):
		t.Fatal("expected exactly one buy intent to reach the executor")
	}

	// The same signature, arriving again (e.g. a second provider's replay
	// of the same payload), must never reach the executor a second time,
	// however late the copy arrives: dedup keys on (signature, mint),
	// and the mint is already committed to the emitted-token set besides.
	ch.push(&ingress.Candidate{Parsed: buyTxFor(1, now), ChannelName: "test"})

	select {
	case intent := <-exec.calls:
		t.Fatalf("unexpected second emission: %+v", intent)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestPipelineDropsBelowThresholdBuy(t *testing.T) {
	ch := &fakeChannel{}
	exec := &fakeExecutor{calls: make(chan signal.BuyIntent, 2)}
	p := newTestPipeline(t, exec, ch)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, p.Start(ctx))
	defer p.Stop()

	tx := buyTxFor(2, time.Now().Unix())
	tx.AmountSOL = 0.1 // below the 1.0 SOL threshold configured above

	ch.push(&ingress.Candidate{Parsed: tx, ChannelName: "test"})

	select {
	case intent := <-exec.calls:
		t.Fatalf("unexpected emission for below-threshold buy: %+v", intent)
	case <-time.After(300 * time.Millisecond):
	}

	// The mint must not have been left reserved: a later, qualifying signal
	// for the same mint should still be able to go through.
	require.True(t, p.State().TryReserve(tokenMint))
}
