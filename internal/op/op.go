package op

import "fmt"

// Sender identifies the account an operation is submitted from.
type Sender string

// Handle is the stable identifier of an auxiliary entity tracked by a run.
type Handle string

// Kind tags the payload variants of the operation union.
type Kind int

const (
	KindPropose Kind = iota
	KindVote
	KindFreeze
	KindTransfer
	KindCustom
)

// String returns the lowercase kind name used in traces and reports.
func (k Kind) String() string {
	switch k {
	case KindPropose:
		return "propose"
	case KindVote:
		return "vote"
	case KindFreeze:
		return "freeze"
	case KindTransfer:
		return "transfer"
	case KindCustom:
		return "custom"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Payload is the closed union of operation payloads.
//
// The private marker method seals the union: only the variants in this
// package implement it, so type switches over Payload are exhaustive.
type Payload interface {
	Kind() Kind
	payload()
}

// Propose submits a new proposal for the current round.
type Propose struct {
	Proposal string
}

// Vote casts a weighted ballot on an existing proposal.
type Vote struct {
	Proposal string
	Ballot   Ballot
}

// Freeze locks stake from the sender into the contract, granting vote weight.
type Freeze struct {
	Amount int64
}

// Transfer moves funds from the contract balance to an auxiliary entity.
// Only the guardian may transfer.
type Transfer struct {
	To     Handle
	Amount int64
}

// Custom invokes a domain-specific entrypoint. Dispatch is polymorphic over
// an injectable capability; entrypoints the capability does not define are
// handled according to the run's unknown-entrypoint policy.
type Custom struct {
	Entrypoint string
	Args       map[string]any
}

func (Propose) Kind() Kind  { return KindPropose }
func (Vote) Kind() Kind     { return KindVote }
func (Freeze) Kind() Kind   { return KindFreeze }
func (Transfer) Kind() Kind { return KindTransfer }
func (Custom) Kind() Kind   { return KindCustom }

func (Propose) payload()  {}
func (Vote) payload()     {}
func (Freeze) payload()   {}
func (Transfer) payload() {}
func (Custom) payload()   {}

// Ballot is the vote choice.
type Ballot int

const (
	BallotYay Ballot = iota
	BallotNay
	BallotPass
)

// String returns the ballot name used in storage maps and traces.
func (b Ballot) String() string {
	switch b {
	case BallotYay:
		return "yay"
	case BallotNay:
		return "nay"
	case BallotPass:
		return "pass"
	default:
		return fmt.Sprintf("ballot(%d)", int(b))
	}
}

// ParseBallot maps a ballot name back to its value.
func ParseBallot(s string) (Ballot, error) {
	switch s {
	case "yay":
		return BallotYay, nil
	case "nay":
		return BallotNay, nil
	case "pass":
		return BallotPass, nil
	default:
		return 0, fmt.Errorf("unknown ballot %q", s)
	}
}

// Operation is one generated action to apply to both systems in a step.
// Immutable once generated.
type Operation struct {
	Sender Sender
	// Advance moves the shared logical clock forward by this many levels
	// before the payload is evaluated. Zero means no advance.
	Advance int64
	Payload Payload
}

// Environment holds the handles of the auxiliary entities a run tracks.
// Produced once per run by the sequence generator; read-only thereafter.
type Environment struct {
	Token    Handle
	Consumer Handle
	Guardian Handle
}

// Handles returns the tracked handles in a fixed, deterministic order.
func (e Environment) Handles() []Handle {
	return []Handle{e.Consumer, e.Guardian, e.Token}
}

// Sequence is the ordered list of operations for one run, together with the
// environment the generator referenced while building payloads.
type Sequence struct {
	Env Environment
	Ops []Operation
}
