package descriptor

import (
	"fmt"
	"strings"
)

// Offender is one declaration that does not resolve against the slice.
type Offender struct {
	Name     string
	LinkName string
	// Reason is empty when the symbol is missing from the binary.
	Reason string
}

// Missing reports whether the binary lacks the symbol entirely.
func (o Offender) Missing() bool { return o.Reason == "" }

func (o Offender) String() string {
	name := o.Name
	if o.LinkName != o.Name {
		name = fmt.Sprintf("%s (links to %s)", o.Name, o.LinkName)
	}
	if o.Missing() {
		return name + ": not in the binary symbol table"
	}
	return name + ": " + o.Reason
}

// SymbolMismatchError lists every declaration of a module that is missing
// from the slice or whose signature is incompatible with the binary's.
type SymbolMismatchError struct {
	Module    string
	Slice     string
	Offenders []Offender
}

func (e *SymbolMismatchError) Error() string {
	lines := make([]string, len(e.Offenders))
	for i, o := range e.Offenders {
		lines[i] = o.String()
	}
	return fmt.Sprintf("module %s: %d symbol(s) do not match slice %s:\n- %s",
		e.Module, len(e.Offenders), e.Slice, strings.Join(lines, "\n- "))
}

// Symbols returns the offending declaration names in report order.
func (e *SymbolMismatchError) Symbols() []string {
	out := make([]string, len(e.Offenders))
	for i, o := range e.Offenders {
		out[i] = o.Name
	}
	return out
}
