package webhook

import (
	"strings"

	"github.com/gagliardetto/solana-go"

	"github.com/agrozold/pumpfun-bonkfun-bot/internal/solanatx"
)

// toParsedTx normalizes a pre-enriched webhook transaction directly into a
// ParsedTx, skipping the local decoder entirely: this provider has already
// done the balance-diff work server-side. Returns false if the payload is
// too malformed to use (missing signature/feePayer), in which case the
// caller logs and drops it without surfacing an HTTP error.
func toParsedTx(tx WebhookTx) (*solanatx.ParsedTx, bool) {
	if tx.Signature == "" || tx.FeePayer == "" {
		return nil, false
	}
	feePayer, err := solana.PublicKeyFromBase58(tx.FeePayer)
	if err != nil {
		return nil, false
	}

	var sig [64]byte
	copy(sig[:], tx.Signature) // webhook signatures are opaque strings here; truncated/padded, never compared byte-for-byte against on-chain signature bytes

	blockTime := tx.Timestamp

	var amountSOL float64
	for _, nt := range tx.NativeTransfers {
		if nt.FromUserAccount == tx.FeePayer {
			amountSOL += float64(nt.Amount) / 1e9
		}
	}

	parsed := &solanatx.ParsedTx{
		Signature:         sig,
		BlockTime:         &blockTime,
		FeePayer:          feePayer,
		Succeeded:         true,
		InvokedProgramIDs: programHints(tx),
		AmountSOL:         amountSOL,
		LogMessages:       buyEvidenceLog(tx.Type),
	}

	for _, tt := range tx.TokenTransfers {
		if tt.ToUserAccount != tx.FeePayer || tt.TokenAmount <= 0 {
			continue
		}
		mint, err := solana.PublicKeyFromBase58(tt.Mint)
		if err != nil {
			continue
		}
		parsed.ReceivedMint = &mint
		parsed.ReceivedAmount = tt.TokenAmount
		break
	}

	return parsed, true
}

// buyEvidenceLog synthesizes the one log line classify.isBuy looks for when
// the provider's own classification of the transaction (tx.Type) says it's
// a swap or buy. This webhook variant never carries real program logs — the
// provider has already done enrichment server-side — so without this, a
// webhook-delivered AMM swap (no launchpad program hint to fall back on)
// would never clear the buy-detection rule.
func buyEvidenceLog(txType string) []string {
	switch strings.ToUpper(txType) {
	case "SWAP":
		return []string{"Program log: Instruction: swap"}
	case "BUY":
		return []string{"Program log: Instruction: Buy"}
	default:
		return nil
	}
}

// programHints extracts any program identifiers the provider's optional
// "events" hint block mentions, e.g. {"source": "PUMP_FUN"}.
func programHints(tx WebhookTx) map[solana.PublicKey]struct{} {
	set := make(map[solana.PublicKey]struct{})
	source, _ := tx.Events["source"].(string)
	switch strings.ToUpper(source) {
	case "PUMP_FUN":
		set[solanatx.ProgramPumpFun] = struct{}{}
	case "LETS_BONK", "BONKFUN":
		set[solanatx.ProgramLetsBonk] = struct{}{}
	case "BAGS":
		set[solanatx.ProgramBags] = struct{}{}
	}
	return set
}
