package abi

import (
	"fmt"
	"strings"
)

// Signature is the callable shape of a symbol.
//
// The textual form is `[convention:] result(param, param, ...)`, for
// example `int(Dav1dContext*, Dav1dData*)` or `stdcall: void(void)`.
type Signature struct {
	Convention Convention
	Result     Type
	Params     []Type
	Variadic   bool
}

// ParseSignature parses the textual form of a signature.
func ParseSignature(text string) (Signature, error) {
	var sig Signature
	body := strings.TrimSpace(text)
	if body == "" {
		return sig, fmt.Errorf("empty signature")
	}

	if i := strings.Index(body, ":"); i >= 0 && !strings.Contains(body[:i], "(") {
		conv, ok := conventionAliases[strings.ToLower(strings.TrimSpace(body[:i]))]
		if !ok {
			return sig, fmt.Errorf("signature %q: unknown calling convention %q", text, body[:i])
		}
		sig.Convention = conv
		body = strings.TrimSpace(body[i+1:])
	} else {
		sig.Convention = ConventionC
	}

	open := strings.Index(body, "(")
	if open < 0 || !strings.HasSuffix(body, ")") {
		return sig, fmt.Errorf("signature %q: expected result(params)", text)
	}

	result, err := ParseType(body[:open])
	if err != nil {
		return sig, fmt.Errorf("signature %q: result: %w", text, err)
	}
	sig.Result = result

	params := strings.TrimSpace(body[open+1 : len(body)-1])
	if params == "" || params == "void" {
		return sig, nil
	}
	for i, p := range splitParams(params) {
		p = strings.TrimSpace(p)
		if p == "..." {
			sig.Variadic = true
			continue
		}
		if sig.Variadic {
			return sig, fmt.Errorf("signature %q: parameters after '...'", text)
		}
		pt, err := ParseType(p)
		if err != nil {
			return sig, fmt.Errorf("signature %q: param %d: %w", text, i, err)
		}
		if pt.Layout.Class == ClassVoid {
			return sig, fmt.Errorf("signature %q: param %d has void type", text, i)
		}
		sig.Params = append(sig.Params, pt)
	}
	return sig, nil
}

// splitParams splits a parameter list on the commas outside nested
// parentheses, so function pointer parameters stay whole.
func splitParams(params string) []string {
	var out []string
	depth, start := 0, 0
	for i, r := range params {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, params[start:i])
				start = i + 1
			}
		}
	}
	return append(out, params[start:])
}

// MustParseSignature is ParseSignature for literals known to be valid.
func MustParseSignature(text string) Signature {
	sig, err := ParseSignature(text)
	if err != nil {
		panic(err)
	}
	return sig
}

// IsZero reports whether the signature was never set. An unset signature
// on a declaration means "any signature", used when the header only names
// the symbol.
func (s Signature) IsZero() bool {
	return s.Convention == "" && s.Result.Spelling == "" && len(s.Params) == 0 && !s.Variadic
}

// Compatible reports whether two signatures can be called interchangeably.
func (s Signature) Compatible(other Signature) bool {
	return s.Mismatch(other) == ""
}

// Mismatch describes the first incompatibility between s (the declared
// side) and other (the binary side), or returns "" when they agree.
func (s Signature) Mismatch(other Signature) string {
	if s.Convention != other.Convention {
		return fmt.Sprintf("calling convention %s, binary has %s", s.Convention, other.Convention)
	}
	if s.Result.Layout != other.Result.Layout {
		return fmt.Sprintf("result %s, binary has %s", s.Result.Layout, other.Result.Layout)
	}
	if len(s.Params) != len(other.Params) {
		return fmt.Sprintf("%d params, binary has %d", len(s.Params), len(other.Params))
	}
	for i := range s.Params {
		if s.Params[i].Layout != other.Params[i].Layout {
			return fmt.Sprintf("param %d is %s, binary has %s", i, s.Params[i].Layout, other.Params[i].Layout)
		}
	}
	if s.Variadic != other.Variadic {
		return fmt.Sprintf("variadic=%t, binary has variadic=%t", s.Variadic, other.Variadic)
	}
	return ""
}

// Canonical is the spelling-independent form, stable across equivalent
// declarations. It feeds hashes and encoded descriptors.
func (s Signature) Canonical() string {
	if s.IsZero() {
		return ""
	}
	var b strings.Builder
	b.WriteString(string(s.Convention))
	b.WriteString(":")
	b.WriteString(s.Result.Layout.String())
	b.WriteString("(")
	for i, p := range s.Params {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(p.Layout.String())
	}
	if s.Variadic {
		if len(s.Params) > 0 {
			b.WriteString(",")
		}
		b.WriteString("...")
	}
	b.WriteString(")")
	return b.String()
}

// String returns the declared spelling.
func (s Signature) String() string {
	if s.IsZero() {
		return ""
	}
	parts := make([]string, 0, len(s.Params)+1)
	for _, p := range s.Params {
		parts = append(parts, p.Spelling)
	}
	if s.Variadic {
		parts = append(parts, "...")
	}
	prefix := ""
	if s.Convention != ConventionC {
		prefix = string(s.Convention) + ": "
	}
	return fmt.Sprintf("%s%s(%s)", prefix, s.Result.Spelling, strings.Join(parts, ", "))
}

// MarshalText implements encoding.TextMarshaler.
func (s Signature) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Signature) UnmarshalText(text []byte) error {
	if len(strings.TrimSpace(string(text))) == 0 {
		*s = Signature{}
		return nil
	}
	parsed, err := ParseSignature(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Symbol is one entry of a binary's symbol table.
type Symbol struct {
	Name      string    `json:"name"`
	Signature Signature `json:"signature"`
}
