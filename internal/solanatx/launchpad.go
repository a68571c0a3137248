package solanatx

import "github.com/gagliardetto/solana-go"

// Canonical program IDs recognized by this pipeline.
var (
	ProgramPumpFun    = solana.MustPublicKeyFromBase58("6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P")
	ProgramLetsBonk   = solana.MustPublicKeyFromBase58("LanMV9sAd7wArD4vJFi2qDdfnVhFxYSUg6eADduJ3uj")
	ProgramBags       = solana.MustPublicKeyFromBase58("dbcij3LWUppWqq96dh6gJWwBifmcGfLSB5D4DuSMaqN")
	ProgramPumpswap   = solana.MustPublicKeyFromBase58("PSwapMdSai8tjrEXcxFeQth87xC4rRsa4VA5mhGhXkP")
	ProgramRaydiumAMM = solana.MustPublicKeyFromBase58("675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8")
	ProgramJupiter    = solana.MustPublicKeyFromBase58("JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV")
)

// launchpadSpec describes how to pull the buyer and mint addresses out of a
// known launchpad buy/swap instruction once its discriminator has matched.
// Discriminator and account-index values are a per-program IDL fact; a
// production deployment sources them from each launchpad's published IDL.
// Indices are positions into the instruction's AccountIndices, which
// themselves index into the (already lookup-table-expanded) AccountKeys
// slice.
type launchpadSpec struct {
	ProgramID          solana.PublicKey
	BuyDiscriminator   [8]byte
	MintAccountPos     int
	BuyerAccountPos    int
	IsLaunchpadProgram bool
}

// knownLaunchpads is checked in order; the first program-ID + discriminator
// match wins. Only launchpad programs are listed: a transaction whose first
// instruction is an AMM swap never matches here and falls through to the
// balance-diff method.
var knownLaunchpads = []launchpadSpec{
	{
		ProgramID:          ProgramPumpFun,
		BuyDiscriminator:   [8]byte{0x66, 0x06, 0x3d, 0x12, 0x01, 0xda, 0xeb, 0xea},
		MintAccountPos:     2,
		BuyerAccountPos:    6,
		IsLaunchpadProgram: true,
	},
	{
		ProgramID:          ProgramLetsBonk,
		BuyDiscriminator:   [8]byte{0xfa, 0xea, 0x0d, 0x7b, 0xd5, 0x9c, 0x13, 0xec},
		MintAccountPos:     1,
		BuyerAccountPos:    0,
		IsLaunchpadProgram: true,
	},
	{
		ProgramID:          ProgramBags,
		BuyDiscriminator:   [8]byte{0xe4, 0x45, 0xa5, 0x2e, 0x51, 0xcb, 0x9a, 0x1d},
		MintAccountPos:     1,
		BuyerAccountPos:    0,
		IsLaunchpadProgram: true,
	},
}

// IsLaunchpadProgram reports whether id is one of the known launchpad
// programs (pump_fun, lets_bonk, bags). Invocation of one of these programs
// is, on its own, sufficient evidence that a transaction is a buy: unlike
// AMM swaps, which also cover routine liquidity operations, a launchpad
// invocation on a token a whale didn't already hold is a first buy.
func IsLaunchpadProgram(id solana.PublicKey) bool {
	for _, spec := range knownLaunchpads {
		if spec.ProgramID == id {
			return true
		}
	}
	return false
}
