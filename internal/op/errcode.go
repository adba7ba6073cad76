package op

import "fmt"

// ErrorCode is the normalized, finite enumeration of domain failure kinds.
//
// Every code except ErrNone has a fixed numeric wire tag so failures
// round-trip through the opaque encodings the system under test emits.
// Both executors report failures in this space; the comparator never sees a
// raw system failure.
type ErrorCode int

const (
	// ErrNone marks a successful outcome.
	ErrNone ErrorCode = 0

	ErrWrongPeriod         ErrorCode = 1
	ErrDuplicateProposal   ErrorCode = 2
	ErrUnknownProposal     ErrorCode = 3
	ErrAlreadyVoted        ErrorCode = 4
	ErrNothingFrozen       ErrorCode = 5
	ErrBadAmount           ErrorCode = 6
	ErrUnauthorized        ErrorCode = 7
	ErrInsufficientBalance ErrorCode = 8
)

// wireCodes is the fixed numeric→code table used by Normalize. ErrNone has
// no wire tag: a successful call never surfaces through the failure path.
var wireCodes = map[int64]ErrorCode{
	1: ErrWrongPeriod,
	2: ErrDuplicateProposal,
	3: ErrUnknownProposal,
	4: ErrAlreadyVoted,
	5: ErrNothingFrozen,
	6: ErrBadAmount,
	7: ErrUnauthorized,
	8: ErrInsufficientBalance,
}

// Wire returns the code's numeric wire tag.
func (c ErrorCode) Wire() int64 { return int64(c) }

// String returns the code's name for traces and reports.
func (c ErrorCode) String() string {
	switch c {
	case ErrNone:
		return "ok"
	case ErrWrongPeriod:
		return "wrong_period"
	case ErrDuplicateProposal:
		return "duplicate_proposal"
	case ErrUnknownProposal:
		return "unknown_proposal"
	case ErrAlreadyVoted:
		return "already_voted"
	case ErrNothingFrozen:
		return "nothing_frozen"
	case ErrBadAmount:
		return "bad_amount"
	case ErrUnauthorized:
		return "unauthorized"
	case ErrInsufficientBalance:
		return "insufficient_balance"
	default:
		return fmt.Sprintf("errcode(%d)", int(c))
	}
}

// NormalizeError is the fatal fault raised when a raw failure payload does
// not match any documented shape. It is never coerced to a default code:
// doing so would mask real divergences, so the whole run aborts instead.
type NormalizeError struct {
	Raw    any
	Reason string
}

func (e *NormalizeError) Error() string {
	return fmt.Sprintf("unexpected failure shape: %s (raw %#v)", e.Reason, e.Raw)
}

// Normalize maps a system-level failure payload into the ErrorCode space.
//
// Rules, in priority order:
//  1. A bare numeric code maps directly through the wire table.
//  2. A pair/tuple is normalized by its first element via rule 1.
//  3. Any other shape, including numerics absent from the table, is a
//     *NormalizeError: the normalizer is out of date with the system's
//     error encoding and the run must abort.
func Normalize(raw any) (ErrorCode, error) {
	if n, ok := numericCode(raw); ok {
		code, known := wireCodes[n]
		if !known {
			return ErrNone, &NormalizeError{Raw: raw, Reason: fmt.Sprintf("numeric code %d not in wire table", n)}
		}
		return code, nil
	}
	if pair, ok := raw.([]any); ok {
		if len(pair) == 0 {
			return ErrNone, &NormalizeError{Raw: raw, Reason: "empty tuple"}
		}
		n, ok := numericCode(pair[0])
		if !ok {
			return ErrNone, &NormalizeError{Raw: raw, Reason: "tuple head is not numeric"}
		}
		code, known := wireCodes[n]
		if !known {
			return ErrNone, &NormalizeError{Raw: raw, Reason: fmt.Sprintf("numeric code %d not in wire table", n)}
		}
		return code, nil
	}
	return ErrNone, &NormalizeError{Raw: raw, Reason: fmt.Sprintf("unsupported type %T", raw)}
}

// numericCode extracts an integral code from the numeric representations a
// transport decoder can plausibly hand back.
func numericCode(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint64:
		return int64(n), true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
		return 0, false
	default:
		return 0, false
	}
}
