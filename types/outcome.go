package types

// OutcomeKind is the result class of a predicate invocation or a
// tree evaluation.
type OutcomeKind uint8

const (
	// OutcomeTrue is a deliberate positive result.
	OutcomeTrue OutcomeKind = 1
	// OutcomeFalse is a deliberate negative result. It is never
	// conflated with a fault.
	OutcomeFalse OutcomeKind = 2
	// OutcomeTrap is an execution failure: budget exceeded, illegal
	// operation, or a malformed return value. A trap always fails the
	// enclosing evaluation, regardless of boolean structure.
	OutcomeTrap OutcomeKind = 3
)

// Outcome is the tri-state result of sandboxed evaluation.
type Outcome struct {
	Kind OutcomeKind `cramberry:"1"`
	// Reason describes the fault for OutcomeTrap. Human-readable,
	// not part of consensus.
	Reason string `cramberry:"2"`
}

// True returns a positive outcome.
func True() Outcome { return Outcome{Kind: OutcomeTrue} }

// False returns a negative outcome.
func False() Outcome { return Outcome{Kind: OutcomeFalse} }

// Trapped returns a fault outcome with the given reason.
func Trapped(reason string) Outcome {
	return Outcome{Kind: OutcomeTrap, Reason: reason}
}

// Bool returns an outcome for a deliberate boolean result.
func Bool(v bool) Outcome {
	if v {
		return True()
	}
	return False()
}

func (o Outcome) IsTrue() bool  { return o.Kind == OutcomeTrue }
func (o Outcome) IsFalse() bool { return o.Kind == OutcomeFalse }
func (o Outcome) IsTrap() bool  { return o.Kind == OutcomeTrap }

func (o Outcome) String() string {
	switch o.Kind {
	case OutcomeTrue:
		return "true"
	case OutcomeFalse:
		return "false"
	case OutcomeTrap:
		return "trap(" + o.Reason + ")"
	default:
		return "invalid"
	}
}

// Negate flips True/False and propagates traps unchanged: negation
// of a failure is still a failure.
func (o Outcome) Negate() Outcome {
	switch o.Kind {
	case OutcomeTrue:
		return False()
	case OutcomeFalse:
		return True()
	default:
		return o
	}
}
