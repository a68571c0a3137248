package solanatx

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
)

var (
	feePayer = solana.MustPublicKeyFromBase58("9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin")
	mintX    = solana.MustPublicKeyFromBase58("7dHbWXmci3dT8UFYWYZweBLXgycu7Y3iL6trKn1Y7ARj")
	usdc     = solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
)

type fakeBlacklist struct{ blocked map[solana.PublicKey]bool }

func (f fakeBlacklist) Contains(mint solana.PublicKey) bool { return f.blocked[mint] }

func baseEnvelope() *RawEnvelope {
	return &RawEnvelope{
		Signature:      [64]byte{1, 2, 3},
		MessageVersion: -1,
		AccountKeys:    []solana.PublicKey{feePayer, mintX},
		PreBalances:    []uint64{2_000_000_000, 0},
		PostBalances:   []uint64{1_500_000_000, 0},
		PreTokenBalances: []TokenBalance{
			{Owner: feePayer, Mint: mintX, UIAmount: 0},
		},
		PostTokenBalance: []TokenBalance{
			{Owner: feePayer, Mint: mintX, UIAmount: 1000},
		},
		LogMessages: []string{"Program log: Instruction: Buy"},
	}
}

func TestDecodeBalanceDiffHappyPath(t *testing.T) {
	parsed, err := Decode(baseEnvelope(), nil, nil)
	require.NoError(t, err)
	require.NotNil(t, parsed.ReceivedMint)
	require.Equal(t, mintX, *parsed.ReceivedMint)
	require.InDelta(t, 0.5, parsed.AmountSOL, 1e-9)
	require.True(t, parsed.Succeeded)
}

func TestDecodeIsDeterministic(t *testing.T) {
	env := baseEnvelope()
	first, err := Decode(env, nil, nil)
	require.NoError(t, err)
	second, err := Decode(env, nil, nil)
	require.NoError(t, err)

	require.Equal(t, first.AmountSOL, second.AmountSOL)
	require.Equal(t, *first.ReceivedMint, *second.ReceivedMint)
}

func TestDecodeFailedTxReturnsFailedTxError(t *testing.T) {
	env := baseEnvelope()
	env.ErrMessage = "custom program error: 0x1"

	_, err := Decode(env, nil, nil)
	require.True(t, IsDecodeError(err, ErrFailedTx))
}

func TestDecodeBlacklistedMintReturnsUninteresting(t *testing.T) {
	env := baseEnvelope()
	env.PreTokenBalances = []TokenBalance{{Owner: feePayer, Mint: usdc, UIAmount: 0}}
	env.PostTokenBalance = []TokenBalance{{Owner: feePayer, Mint: usdc, UIAmount: 500}}

	bl := fakeBlacklist{blocked: map[solana.PublicKey]bool{usdc: true}}
	_, err := Decode(env, nil, bl)
	require.True(t, IsDecodeError(err, ErrUninteresting))
}

func TestDecodeNoReceiptReturnsUninteresting(t *testing.T) {
	env := baseEnvelope()
	env.PreTokenBalances = nil
	env.PostTokenBalance = nil

	_, err := Decode(env, nil, nil)
	require.True(t, IsDecodeError(err, ErrUninteresting))
}

func TestDecodeMismatchedBalanceLengthsIsMalformed(t *testing.T) {
	env := baseEnvelope()
	env.PostBalances = []uint64{1_500_000_000}

	_, err := Decode(env, nil, nil)
	require.True(t, IsDecodeError(err, ErrMalformedTx))
}

func TestDecodeEmptyAccountKeysIsMalformed(t *testing.T) {
	env := baseEnvelope()
	env.AccountKeys = nil
	env.PreBalances = nil
	env.PostBalances = nil

	_, err := Decode(env, nil, nil)
	require.True(t, IsDecodeError(err, ErrMalformedTx))
}

func TestDecodeInvokedProgramIDsFromLogsAndInstructions(t *testing.T) {
	env := baseEnvelope()
	env.AccountKeys = append(env.AccountKeys, ProgramPumpFun)
	env.PreBalances = append(env.PreBalances, 0)
	env.PostBalances = append(env.PostBalances, 0)
	env.Instructions = []CompiledInstruction{{ProgramIDIndex: 2, AccountIndices: []int{0, 1}, Data: []byte{0, 0, 0, 0, 0, 0, 0, 0}}}
	env.LogMessages = append(env.LogMessages, "Program "+ProgramRaydiumAMM.String()+" invoke [1]")

	parsed, err := Decode(env, nil, nil)
	require.NoError(t, err)
	_, hasPumpFun := parsed.InvokedProgramIDs[ProgramPumpFun]
	_, hasRaydium := parsed.InvokedProgramIDs[ProgramRaydiumAMM]
	require.True(t, hasPumpFun)
	require.True(t, hasRaydium)
}

type stubLookups struct {
	writable, readonly []solana.PublicKey
}

func (s stubLookups) ResolveAddressLookupTable(table solana.PublicKey) ([]solana.PublicKey, []solana.PublicKey, error) {
	return s.writable, s.readonly, nil
}

func TestDecodeExpandsAddressLookupTables(t *testing.T) {
	extraWritable := solana.MustPublicKeyFromBase58("LanMV9sAd7wArD4vJFi2qDdfnVhFxYSUg6eADduJ3uj")
	env := baseEnvelope()
	env.MessageVersion = 0
	env.AddressLookups = []AddressLookup{{
		TableKey:        solana.MustPublicKeyFromBase58("dbcij3LWUppWqq96dh6gJWwBifmcGfLSB5D4DuSMaqN"),
		WritableIndexes: []uint8{0},
	}}
	// Receiving balance diffs only reference the first two static keys, so
	// pre/post balances must cover the expanded set too.
	env.PreBalances = append(env.PreBalances, 0)
	env.PostBalances = append(env.PostBalances, 0)

	lookups := stubLookups{writable: []solana.PublicKey{extraWritable}}
	parsed, err := Decode(env, lookups, nil)
	require.NoError(t, err)
	require.Contains(t, parsed.AccountKeys, extraWritable)
}

func TestDecodeV0MessageWithoutResolverIsMalformed(t *testing.T) {
	env := baseEnvelope()
	env.MessageVersion = 0
	env.AddressLookups = []AddressLookup{{TableKey: mintX, WritableIndexes: []uint8{0}}}

	_, err := Decode(env, nil, nil)
	require.True(t, IsDecodeError(err, ErrMalformedTx))
}

func TestDecodeDiscriminatorMethodTakesPrecedence(t *testing.T) {
	buyer := feePayer
	env := &RawEnvelope{
		Signature:      [64]byte{9},
		MessageVersion: -1,
		AccountKeys:    []solana.PublicKey{buyer, ProgramPumpFun, mintX, {}, {}, {}, buyer},
		PreBalances:    []uint64{2_000_000_000, 0, 0, 0, 0, 0, 0},
		PostBalances:   []uint64{1_500_000_000, 0, 0, 0, 0, 0, 0},
		Instructions: []CompiledInstruction{{
			ProgramIDIndex: 1,
			AccountIndices: []int{0, 0, 2, 0, 0, 0, 0},
			Data:           knownLaunchpads[0].BuyDiscriminator[:],
		}},
		// The balance-diff method alone would pick this other receipt.
		PostTokenBalance: []TokenBalance{{Owner: buyer, Mint: usdc, UIAmount: 500}},
		LogMessages:      []string{"Program log: Instruction: Buy"},
	}

	parsed, err := Decode(env, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, parsed.ReceivedMint)
	require.Equal(t, mintX, *parsed.ReceivedMint)
}
