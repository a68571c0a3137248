// Package solanatx implements the local transaction decoder: it turns a
// provider-delivered transaction envelope into a neutral ParsedTx without
// ever making a network call.
package solanatx

import (
	"github.com/gagliardetto/solana-go"
)

// TokenBalance is one entry of a transaction's post-balance token set.
type TokenBalance struct {
	Owner    solana.PublicKey
	Mint     solana.PublicKey
	UIAmount float64
}

// CompiledInstruction mirrors the wire shape of a single instruction within
// a transaction message: a program index into AccountKeys, the account
// indices it touches, and its raw data (the first 8 bytes of which are the
// Anchor-style discriminator for programs that use one).
type CompiledInstruction struct {
	ProgramIDIndex int
	AccountIndices []int
	Data           []byte
}

// AddressLookup is one address-lookup-table reference carried by a v0
// message: the table account itself, plus the indices within that table's
// stored address list that this transaction pulls from (writable first,
// then readonly), per the Solana v0 message format.
type AddressLookup struct {
	TableKey        solana.PublicKey
	WritableIndexes []uint8
	ReadonlyIndexes []uint8
}

// LookupTableResolver expands the account-lookup-table references on a v0
// message into the concrete addresses they point at. This is itself a
// network-backed capability (lookup tables live on-chain) so it is injected
// rather than performed inline; the pipeline wires in an implementation
// that routes every call through the rate-limited endpoint pool. Results
// are not cached: each call is a fresh fetch.
type LookupTableResolver interface {
	ResolveAddressLookupTable(tableKey solana.PublicKey) (writable, readonly []solana.PublicKey, err error)
}

// RawEnvelope is the structured, provider-agnostic stand-in for the
// transaction-envelope protobuf a Geyser-style binary stream delivers:
// signature, slot, meta, and the compiled transaction message. The webhook
// variant never produces one; it hands over an already-built ParsedTx.
// Ingress implementations are responsible for turning whatever wire format
// their provider uses into this shape; the decoder itself never touches a
// socket.
type RawEnvelope struct {
	Signature      [64]byte
	Slot           uint64
	BlockTime      *int64
	MessageVersion int // 0 signals a v0 message with lookup table support; legacy is -1

	AccountKeys    []solana.PublicKey
	Instructions   []CompiledInstruction
	AddressLookups []AddressLookup

	PreBalances      []uint64 // lamports, aligned with AccountKeys
	PostBalances     []uint64
	PreTokenBalances []TokenBalance
	PostTokenBalance []TokenBalance

	LogMessages []string

	// ErrMessage is non-empty when the transaction's error field was set
	// on-chain (the transaction landed but its instructions failed).
	ErrMessage string
}

// ParsedTx is the neutral, decoder-produced view of a transaction used by
// everything downstream of ingress.
type ParsedTx struct {
	Signature         [64]byte
	BlockTime         *int64
	FeePayer          solana.PublicKey
	AccountKeys       []solana.PublicKey
	PreBalances       []uint64
	PostBalances      []uint64
	TokenPostBalances []TokenBalance
	LogMessages       []string
	Succeeded         bool
	InvokedProgramIDs map[solana.PublicKey]struct{}

	// ReceivedMint is populated by whichever of the decoder's two parsing
	// methods matched, so the classifier doesn't need to re-derive it; it
	// is nil if no interesting receipt was found (which should not happen
	// for a ParsedTx that escaped decode, but is kept explicit rather than
	// assumed).
	ReceivedMint *solana.PublicKey

	// ReceivedAmount is the received token's UI amount, as reported by the
	// balance-diff method (method 2). The discriminator method (method 1)
	// locates the mint from known account positions, not a token-amount
	// field, and leaves this at its zero value; nothing downstream reads
	// it today.
	ReceivedAmount float64

	// AmountSOL is (PreBalances[0]-PostBalances[0])/1e9: the gross
	// lamports debited from the fee payer, fee included. This is the
	// figure the whale actually paid and what classification thresholds
	// against.
	AmountSOL float64
}

// SignatureHex renders the signature the way logs and the dedup key want
// it: lowercase hex, since base58 is reserved for addresses in this
// codebase's log lines.
func (p *ParsedTx) SignatureHex() string {
	const hextable = "0123456789abcdef"
	buf := make([]byte, len(p.Signature)*2)
	for i, b := range p.Signature {
		buf[i*2] = hextable[b>>4]
		buf[i*2+1] = hextable[b&0x0f]
	}
	return string(buf)
}
