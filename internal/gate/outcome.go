package gate

import (
	"fmt"
	"strings"
)

// Outcome is the result of one emit cycle.
type Outcome int32

const (
	// Waiting is the reset value of every cycle; it is never terminal.
	Waiting Outcome = iota
	Success
	Failure
)

func (o Outcome) String() string {
	switch o {
	case Waiting:
		return "waiting"
	case Success:
		return "success"
	case Failure:
		return "failure"
	default:
		return fmt.Sprintf("outcome(%d)", int32(o))
	}
}

// Resolvable reports whether o may be passed to Resolve.
func (o Outcome) Resolvable() bool { return o == Success || o == Failure }

// ParseOutcome parses the resolvable forms "success" and "failure".
func ParseOutcome(s string) (Outcome, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "success":
		return Success, nil
	case "failure":
		return Failure, nil
	default:
		return Waiting, fmt.Errorf("%w: %q", ErrInvalidOutcome, s)
	}
}
