package indicator

import "fmt"

// TriState is the outcome of one indicator for one patient.
type TriState int

const (
	Fail TriState = iota
	Pass
	// NotApplicable means the indicator does not pertain to the patient. It is
	// excluded from both the numerator and the denominator.
	NotApplicable
)

// FromBool maps a plain boolean to Pass or Fail.
func FromBool(b bool) TriState {
	if b {
		return Pass
	}
	return Fail
}

// And combines a tri-state with a further condition. NotApplicable and Fail
// short-circuit; Pass yields the condition.
func (t TriState) And(cond bool) TriState {
	if t != Pass {
		return t
	}
	return FromBool(cond)
}

// Counted reports whether the result contributes to the denominator.
func (t TriState) Counted() bool {
	return t == Pass || t == Fail
}

func (t TriState) String() string {
	switch t {
	case Pass:
		return "pass"
	case Fail:
		return "fail"
	case NotApplicable:
		return "n/a"
	}
	return "unknown"
}

// MarshalText renders the state as its string form for JSON output.
func (t TriState) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText accepts the forms MarshalText produces.
func (t *TriState) UnmarshalText(b []byte) error {
	switch string(b) {
	case "pass":
		*t = Pass
	case "fail":
		*t = Fail
	case "n/a":
		*t = NotApplicable
	default:
		return fmt.Errorf("unknown outcome %q", b)
	}
	return nil
}
