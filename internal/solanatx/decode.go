package solanatx

import (
	"strings"

	"github.com/gagliardetto/solana-go"
)

// Blacklist is the narrow read-only capability the decoder needs from the
// stablecoin blacklist (internal/registry.StablecoinBlacklist satisfies
// this) to short-circuit before any downstream work.
type Blacklist interface {
	Contains(mint solana.PublicKey) bool
}

// baseFeeLamportsPerSignature is the fixed Solana base fee used only for
// reporting, never for threshold comparison: the gross figure, fee
// included, is what gates classification.
const baseFeeLamportsPerSignature = 5000

// Decode turns a RawEnvelope into a ParsedTx. It is a pure function:
// identical RawEnvelope values produce byte-identical ParsedTx values, with
// no clock, no RNG, no environment access.
func Decode(raw *RawEnvelope, lookups LookupTableResolver, blacklist Blacklist) (*ParsedTx, error) {
	if raw.ErrMessage != "" {
		return nil, newFailedTx(raw.ErrMessage)
	}

	accountKeys, err := expandLookupTables(raw, lookups)
	if err != nil {
		return nil, newMalformed("address lookup table expansion: " + err.Error())
	}

	if len(raw.PreBalances) != len(accountKeys) || len(raw.PostBalances) != len(accountKeys) {
		return nil, newMalformed("pre/post balance length does not match account key count")
	}
	if len(accountKeys) == 0 {
		return nil, newMalformed("empty account key list")
	}

	invoked := invokedProgramIDs(raw, accountKeys)

	parsed := &ParsedTx{
		Signature:         raw.Signature,
		BlockTime:         raw.BlockTime,
		FeePayer:          accountKeys[0],
		AccountKeys:       accountKeys,
		PreBalances:       raw.PreBalances,
		PostBalances:      raw.PostBalances,
		TokenPostBalances: raw.PostTokenBalance,
		LogMessages:       raw.LogMessages,
		Succeeded:         true,
		InvokedProgramIDs: invoked,
		AmountSOL:         lamportsToSOL(raw.PreBalances[0], raw.PostBalances[0]),
	}

	// Method 1: instruction-discriminator match against a known launchpad.
	if mint, buyer, ok := decodeViaDiscriminator(raw, accountKeys); ok {
		parsed.ReceivedMint = &mint
		// The discriminator method locates the mint and buyer account
		// positions from the IDL, not a token-amount field, so it has no
		// received-token UI amount to report here; ReceivedAmount stays at
		// its zero value rather than being filled with an unrelated figure.
		// Method 2 below is the only path that populates it.
		_ = buyer // buyer is validated against fee_payer by the classifier, not here
	} else {
		// Method 2: universal balance-diff fallback.
		mint, amount, found := decodeViaBalanceDiff(parsed.FeePayer, raw.PreTokenBalances, raw.PostTokenBalance)
		if found {
			parsed.ReceivedMint = &mint
			parsed.ReceivedAmount = amount
		}
	}

	if parsed.ReceivedMint == nil {
		return nil, newUninteresting("no token receipt attributable to fee payer")
	}

	if blacklist != nil && blacklist.Contains(*parsed.ReceivedMint) {
		return nil, newUninteresting("received mint is blacklisted")
	}

	return parsed, nil
}

// expandLookupTables resolves v0-message address-lookup-table references
// into the full account key list before anything else touches indices —
// otherwise every subsequent index is off by a variable offset.
func expandLookupTables(raw *RawEnvelope, lookups LookupTableResolver) ([]solana.PublicKey, error) {
	if raw.MessageVersion < 0 || len(raw.AddressLookups) == 0 {
		return raw.AccountKeys, nil
	}
	if lookups == nil {
		return nil, errLookupResolverRequired
	}

	keys := make([]solana.PublicKey, len(raw.AccountKeys))
	copy(keys, raw.AccountKeys)

	// Per the v0 message format, all writable-looked-up addresses across
	// every table come first, in table order, followed by all
	// readonly-looked-up addresses, also in table order.
	var writable, readonly []solana.PublicKey
	for _, lut := range raw.AddressLookups {
		w, r, err := lookups.ResolveAddressLookupTable(lut.TableKey)
		if err != nil {
			return nil, err
		}
		for _, idx := range lut.WritableIndexes {
			if int(idx) >= len(w) {
				return nil, errLookupIndexOutOfRange
			}
			writable = append(writable, w[idx])
		}
		for _, idx := range lut.ReadonlyIndexes {
			if int(idx) >= len(r) {
				return nil, errLookupIndexOutOfRange
			}
			readonly = append(readonly, r[idx])
		}
	}

	keys = append(keys, writable...)
	keys = append(keys, readonly...)
	return keys, nil
}

// invokedProgramIDs derives the invoked-program set from both the log
// lines ("Program <id> invoke") and the instructions' program indices.
func invokedProgramIDs(raw *RawEnvelope, accountKeys []solana.PublicKey) map[solana.PublicKey]struct{} {
	set := make(map[solana.PublicKey]struct{})
	for _, ix := range raw.Instructions {
		if ix.ProgramIDIndex >= 0 && ix.ProgramIDIndex < len(accountKeys) {
			set[accountKeys[ix.ProgramIDIndex]] = struct{}{}
		}
	}
	for _, line := range raw.LogMessages {
		id, ok := parseInvokeLog(line)
		if ok {
			set[id] = struct{}{}
		}
	}
	return set
}

// parseInvokeLog extracts the program ID from a "Program <id> invoke [N]"
// log line.
func parseInvokeLog(line string) (solana.PublicKey, bool) {
	const prefix = "Program "
	const suffix = " invoke"
	if !strings.HasPrefix(line, prefix) {
		return solana.PublicKey{}, false
	}
	rest := line[len(prefix):]
	idx := strings.Index(rest, suffix)
	if idx < 0 {
		return solana.PublicKey{}, false
	}
	pk, err := solana.PublicKeyFromBase58(rest[:idx])
	if err != nil {
		return solana.PublicKey{}, false
	}
	return pk, true
}

// decodeViaDiscriminator is the first decode method: inspect the first
// instruction's program index and 8-byte discriminator prefix against the
// known-launchpad table.
func decodeViaDiscriminator(raw *RawEnvelope, accountKeys []solana.PublicKey) (mint, buyer solana.PublicKey, ok bool) {
	if len(raw.Instructions) == 0 {
		return mint, buyer, false
	}
	first := raw.Instructions[0]
	if first.ProgramIDIndex < 0 || first.ProgramIDIndex >= len(accountKeys) {
		return mint, buyer, false
	}
	programID := accountKeys[first.ProgramIDIndex]
	if len(first.Data) < 8 {
		return mint, buyer, false
	}
	var disc [8]byte
	copy(disc[:], first.Data[:8])

	for _, spec := range knownLaunchpads {
		if !spec.ProgramID.Equals(programID) || spec.BuyDiscriminator != disc {
			continue
		}
		if spec.MintAccountPos >= len(first.AccountIndices) ||
			spec.BuyerAccountPos >= len(first.AccountIndices) {
			return mint, buyer, false
		}
		mintIdx := first.AccountIndices[spec.MintAccountPos]
		buyerIdx := first.AccountIndices[spec.BuyerAccountPos]
		if mintIdx < 0 || mintIdx >= len(accountKeys) || buyerIdx < 0 || buyerIdx >= len(accountKeys) {
			return mint, buyer, false
		}
		return accountKeys[mintIdx], accountKeys[buyerIdx], true
	}
	return mint, buyer, false
}

// decodeViaBalanceDiff is the fallback decode method: any post-token-balance
// entry owned by the fee payer that was absent or zero pre-transaction is
// the candidate received token.
func decodeViaBalanceDiff(feePayer solana.PublicKey, pre, post []TokenBalance) (mint solana.PublicKey, amount float64, found bool) {
	preByKey := make(map[[2][32]byte]float64, len(pre))
	for _, tb := range pre {
		if !tb.Owner.Equals(feePayer) {
			continue
		}
		preByKey[tokenKey(tb.Owner, tb.Mint)] = tb.UIAmount
	}

	for _, tb := range post {
		if !tb.Owner.Equals(feePayer) {
			continue
		}
		preAmount, existed := preByKey[tokenKey(tb.Owner, tb.Mint)]
		if (!existed || preAmount == 0) && tb.UIAmount > 0 {
			return tb.Mint, tb.UIAmount, true
		}
	}
	return mint, 0, false
}

func tokenKey(owner, mint solana.PublicKey) [2][32]byte {
	return [2][32]byte{owner, mint}
}

// lamportsToSOL computes the gross amount the fee payer spent, fee
// included, matching WhaleBuy.AmountSOL downstream.
func lamportsToSOL(pre, post uint64) float64 {
	if post > pre {
		return 0
	}
	return float64(pre-post) / 1e9
}

// ReportedFeeLamports returns the estimated base fee for logging/reporting
// purposes only, never used in threshold comparison.
func ReportedFeeLamports(numSignatures int) uint64 {
	return uint64(numSignatures) * baseFeeLamportsPerSignature
}
