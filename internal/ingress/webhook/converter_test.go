package webhook

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestToParsedTxHappyPath(t *testing.T) {
	tx := WebhookTx{
		Signature: "5eykt4UsFv8P8NJdTREpY1vzqKqZKvdpKuc147dw2N9d",
		Timestamp: 1700000000,
		FeePayer:  "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin",
		NativeTransfers: []NativeTransfer{
			{FromUserAccount: "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin", ToUserAccount: "other", Amount: 500000000},
		},
		TokenTransfers: []TokenTransfer{
			{ToUserAccount: "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin", Mint: "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P", TokenAmount: 1000},
		},
	}

	parsed, ok := toParsedTx(tx)
	require.True(t, ok)
	require.InDelta(t, 0.5, parsed.AmountSOL, 1e-9)
	require.NotNil(t, parsed.ReceivedMint)
	require.Equal(t, "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P", parsed.ReceivedMint.String())
}

func TestToParsedTxRejectsMissingFields(t *testing.T) {
	_, ok := toParsedTx(WebhookTx{})
	require.False(t, ok)

	_, ok = toParsedTx(WebhookTx{Signature: "abc"})
	require.False(t, ok)
}

func TestToParsedTxIgnoresTransfersToOtherAccounts(t *testing.T) {
	tx := WebhookTx{
		Signature: "5eykt4UsFv8P8NJdTREpY1vzqKqZKvdpKuc147dw2N9d",
		FeePayer:  "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin",
		TokenTransfers: []TokenTransfer{
			{ToUserAccount: "someone-else", Mint: "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P", TokenAmount: 1000},
		},
	}
	parsed, ok := toParsedTx(tx)
	require.True(t, ok)
	require.Nil(t, parsed.ReceivedMint)
}
