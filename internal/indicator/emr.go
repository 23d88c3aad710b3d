package indicator

import (
	"fmt"
	"strings"
)

// EMR identifies the electronic medical record system that produced an export.
// Some predicates branch on it because coding conventions differ.
type EMR string

const (
	PSS    EMR = "PSS"
	Oscar  EMR = "Oscar"
	Accuro EMR = "Accuro"
)

// DefaultEMR is the format assumed until a user selects another.
const DefaultEMR = PSS

// EMRs lists every supported format in display order.
var EMRs = []EMR{PSS, Oscar, Accuro}

// ParseEMR resolves a format name case-insensitively.
func ParseEMR(s string) (EMR, error) {
	for _, e := range EMRs {
		if strings.EqualFold(string(e), strings.TrimSpace(s)) {
			return e, nil
		}
	}
	return "", fmt.Errorf("unknown EMR %q", s)
}

// Env is the per-dataset evaluation context handed to predicates alongside
// their parameters.
type Env struct {
	EMR EMR
	// FilteredPatients holds patient numbers pre-selected by the EMR query,
	// used by Oscar exports that cannot filter inside the report itself.
	FilteredPatients map[string]bool
}

func (e Env) IsPSS() bool    { return e.EMR == PSS }
func (e Env) IsOscar() bool  { return e.EMR == Oscar }
func (e Env) IsAccuro() bool { return e.EMR == Accuro }
