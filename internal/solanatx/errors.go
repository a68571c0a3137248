package solanatx

import "errors"

// DecodeErrorKind classifies why decode() did not produce a ParsedTx. None
// of these are fatal to the pipeline.
type DecodeErrorKind int

const (
	// ErrMalformedTx signals a structural violation of the envelope
	// (mismatched slice lengths, truncated instruction data, ...).
	ErrMalformedTx DecodeErrorKind = iota
	// ErrUninteresting signals the decoder understood the transaction
	// fine but it isn't something the pipeline cares about (received
	// mint is blacklisted, no receipt found at all, ...).
	ErrUninteresting
	// ErrFailedTx signals the transaction's on-chain error field was set.
	ErrFailedTx
)

func (k DecodeErrorKind) String() string {
	switch k {
	case ErrMalformedTx:
		return "malformed"
	case ErrUninteresting:
		return "uninteresting"
	case ErrFailedTx:
		return "failed"
	default:
		return "unknown"
	}
}

// DecodeError is returned by Decode. It is never wrapped in an error chain
// the caller is expected to propagate past the Supervisor: no ingress-path
// error ever escapes past it.
type DecodeError struct {
	Kind   DecodeErrorKind
	Reason string
}

func (e *DecodeError) Error() string {
	return e.Kind.String() + ": " + e.Reason
}

func newMalformed(reason string) error {
	return &DecodeError{Kind: ErrMalformedTx, Reason: reason}
}

func newUninteresting(reason string) error {
	return &DecodeError{Kind: ErrUninteresting, Reason: reason}
}

func newFailedTx(reason string) error {
	return &DecodeError{Kind: ErrFailedTx, Reason: reason}
}

var (
	errLookupResolverRequired = errors.New("transaction references address lookup tables but no resolver was supplied")
	errLookupIndexOutOfRange  = errors.New("address lookup table index out of range")
)

// IsDecodeError reports whether err is a *DecodeError of the given kind.
func IsDecodeError(err error, kind DecodeErrorKind) bool {
	var de *DecodeError
	if !errors.As(err, &de) {
		return false
	}
	return de.Kind == kind
}
