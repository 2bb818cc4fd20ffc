// Package abi models the part of a native symbol's binary interface that a
// binding layer can check without disassembling the library: its calling
// convention and the storage layout of its result and arguments.
//
// Two signatures are compatible when they agree on convention, arity,
// variadic-ness and every layout. Spellings are irrelevant, so `int` and
// `int32_t` are interchangeable while `int` and `int64_t` are not.
package abi

import (
	"fmt"
	"regexp"
	"strings"
)

// Convention is a calling convention.
type Convention string

const (
	ConventionC          Convention = "c"
	ConventionStdcall    Convention = "stdcall"
	ConventionFastcall   Convention = "fastcall"
	ConventionVectorcall Convention = "vectorcall"
	ConventionSwift      Convention = "swift"
)

var conventionAliases = map[string]Convention{
	"":           ConventionC,
	"c":          ConventionC,
	"cdecl":      ConventionC,
	"stdcall":    ConventionStdcall,
	"fastcall":   ConventionFastcall,
	"vectorcall": ConventionVectorcall,
	"swift":      ConventionSwift,
	"swiftcall":  ConventionSwift,
}

// Class is the storage class of a value as the calling convention sees it.
type Class string

const (
	ClassVoid    Class = "void"
	ClassInt     Class = "int"
	ClassWord    Class = "word"
	ClassFloat   Class = "float"
	ClassPointer Class = "ptr"
	ClassOpaque  Class = "opaque"
)

// Layout is the convention-relevant shape of a type. Word-sized integers
// carry Size 0 because their width depends on the target architecture.
// Opaque layouts (structs passed by value, unknown typedefs) compare by Name.
type Layout struct {
	Class Class
	Size  int
	Name  string
}

func (l Layout) String() string {
	switch l.Class {
	case ClassVoid, ClassWord, ClassPointer:
		return string(l.Class)
	case ClassOpaque:
		return "opaque(" + l.Name + ")"
	case ClassInt:
		return fmt.Sprintf("i%d", l.Size*8)
	case ClassFloat:
		return fmt.Sprintf("f%d", l.Size*8)
	}
	return string(l.Class)
}

// Type is a declared type with its original spelling kept for diagnostics.
type Type struct {
	Spelling string
	Layout   Layout
}

var builtinLayouts = map[string]Layout{
	"void": {Class: ClassVoid},

	"bool": {Class: ClassInt, Size: 1}, "_Bool": {Class: ClassInt, Size: 1},
	"char": {Class: ClassInt, Size: 1}, "signed char": {Class: ClassInt, Size: 1},
	"unsigned char": {Class: ClassInt, Size: 1},
	"int8_t": {Class: ClassInt, Size: 1}, "uint8_t": {Class: ClassInt, Size: 1},
	"i8": {Class: ClassInt, Size: 1}, "u8": {Class: ClassInt, Size: 1},

	"short": {Class: ClassInt, Size: 2}, "unsigned short": {Class: ClassInt, Size: 2},
	"int16_t": {Class: ClassInt, Size: 2}, "uint16_t": {Class: ClassInt, Size: 2},
	"i16": {Class: ClassInt, Size: 2}, "u16": {Class: ClassInt, Size: 2},

	"int": {Class: ClassInt, Size: 4}, "unsigned": {Class: ClassInt, Size: 4},
	"unsigned int": {Class: ClassInt, Size: 4},
	"int32_t": {Class: ClassInt, Size: 4}, "uint32_t": {Class: ClassInt, Size: 4},
	"i32": {Class: ClassInt, Size: 4}, "u32": {Class: ClassInt, Size: 4},

	"short int": {Class: ClassInt, Size: 2}, "unsigned short int": {Class: ClassInt, Size: 2},

	"long long": {Class: ClassInt, Size: 8}, "unsigned long long": {Class: ClassInt, Size: 8},
	"long long int": {Class: ClassInt, Size: 8}, "unsigned long long int": {Class: ClassInt, Size: 8},
	"int64_t": {Class: ClassInt, Size: 8}, "uint64_t": {Class: ClassInt, Size: 8},
	"i64": {Class: ClassInt, Size: 8}, "u64": {Class: ClassInt, Size: 8},

	"long": {Class: ClassWord}, "unsigned long": {Class: ClassWord},
	"long int": {Class: ClassWord}, "unsigned long int": {Class: ClassWord},
	"size_t": {Class: ClassWord}, "ssize_t": {Class: ClassWord},
	"ptrdiff_t": {Class: ClassWord}, "intptr_t": {Class: ClassWord},
	"uintptr_t": {Class: ClassWord}, "word": {Class: ClassWord},
	"isize": {Class: ClassWord}, "usize": {Class: ClassWord},

	"float": {Class: ClassFloat, Size: 4}, "f32": {Class: ClassFloat, Size: 4},
	"double": {Class: ClassFloat, Size: 8}, "f64": {Class: ClassFloat, Size: 8},
	"long double": {Class: ClassFloat, Size: 16},

	"ptr": {Class: ClassPointer},
}

// funcPointer matches `result (*name)(params)`; the name is optional and
// `^` covers block pointers.
var funcPointer = regexp.MustCompile(`^(.*?)\(\s*[*^]\s*(?:[A-Za-z_][A-Za-z0-9_]*)?\s*\)\s*\((.*)\)$`)

// ParseType classifies a C-like type spelling as written in a header.
// Qualifiers and a trailing parameter name are ignored. Anything ending
// in `*`, an array or a function pointer is a pointer, `enum X` is a
// 32-bit int and any other unknown spelling becomes an opaque layout
// named after it.
func ParseType(spelling string) (Type, error) {
	raw := strings.TrimSpace(spelling)
	s := normalizeSpaces(raw)
	if s == "" {
		return Type{}, fmt.Errorf("empty type")
	}
	t := Type{Spelling: s}

	if m := funcPointer.FindStringSubmatch(raw); m != nil {
		if _, err := ParseSignature(m[1] + "(" + m[2] + ")"); err != nil {
			return Type{}, fmt.Errorf("function pointer %q: %w", spelling, err)
		}
		t.Layout = Layout{Class: ClassPointer}
		return t, nil
	}

	decl := s
	if strings.HasSuffix(decl, "]") {
		open := strings.LastIndex(decl, "[")
		if open < 0 {
			return Type{}, fmt.Errorf("malformed type %q", spelling)
		}
		decl = strings.TrimSpace(decl[:open])
		if decl == "" {
			return Type{}, fmt.Errorf("malformed type %q", spelling)
		}
		t.Layout = Layout{Class: ClassPointer}
		return t, nil
	}

	decl = dropDeclarator(decl)
	if strings.HasSuffix(decl, "*") {
		t.Layout = Layout{Class: ClassPointer}
		return t, nil
	}

	bare := stripQualifiers(decl)
	if l, ok := builtinLayouts[bare]; ok {
		t.Layout = l
		return t, nil
	}
	if strings.HasPrefix(bare, "enum ") {
		t.Layout = Layout{Class: ClassInt, Size: 4}
		return t, nil
	}
	name := strings.TrimPrefix(bare, "struct ")
	if !isIdentifier(name) {
		return Type{}, fmt.Errorf("malformed type %q", spelling)
	}
	t.Layout = Layout{Class: ClassOpaque, Name: name}
	return t, nil
}

var qualifiers = map[string]bool{"const": true, "volatile": true, "restrict": true, "__restrict": true}

// typeWords can never be a parameter name.
var typeWords = map[string]bool{
	"void": true, "bool": true, "_Bool": true, "char": true, "short": true,
	"int": true, "long": true, "signed": true, "unsigned": true,
	"float": true, "double": true,
}

// dropDeclarator removes trailing qualifiers and a trailing parameter
// name from a normalized spelling: `const char* const name` becomes
// `const char*`.
func dropDeclarator(s string) string {
	fields := strings.Fields(s)
	trim := func() {
		for len(fields) > 1 && qualifiers[fields[len(fields)-1]] {
			fields = fields[:len(fields)-1]
		}
	}
	trim()

	last := fields[len(fields)-1]
	if len(fields) > 1 && isIdentifier(last) && !typeWords[last] {
		var prefix []string
		for _, f := range fields[:len(fields)-1] {
			if !qualifiers[f] {
				prefix = append(prefix, f)
			}
		}
		if n := len(prefix); n > 0 && prefix[n-1] != "struct" && prefix[n-1] != "enum" && prefix[n-1] != "union" {
			fields = fields[:len(fields)-1]
			trim()
		}
	}
	return strings.Join(fields, " ")
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

func stripQualifiers(s string) string {
	fields := strings.Fields(s)
	kept := fields[:0]
	for _, f := range fields {
		switch f {
		case "const", "volatile", "restrict", "signed":
			if f == "signed" && len(fields) == 2 && fields[1] == "char" {
				kept = append(kept, f)
			}
			continue
		}
		kept = append(kept, f)
	}
	if len(kept) == 0 {
		// "signed" alone means int.
		return "int"
	}
	return strings.Join(kept, " ")
}

func normalizeSpaces(s string) string {
	s = strings.ReplaceAll(s, "*", " * ")
	s = strings.Join(strings.Fields(s), " ")
	return strings.ReplaceAll(s, " *", "*")
}
