package manifest

import (
	"fmt"
	"sort"
	"strings"
)

// SchemaReason distinguishes a manifest written for a newer resolver from
// one that is simply wrong.
type SchemaReason string

const (
	ReasonTooNew    SchemaReason = "too-new"
	ReasonMalformed SchemaReason = "malformed"
)

// SchemaEvolutionError reports a manifest the resolver cannot interpret.
type SchemaEvolutionError struct {
	Reason   SchemaReason
	Schema   string
	Module   string
	Strategy string
	Detail   string
}

func (e *SchemaEvolutionError) Error() string {
	if e.Reason == ReasonTooNew {
		return fmt.Sprintf("unknown strategy %q in module %s: manifest schema %s is newer than supported schema %d",
			e.Strategy, e.Module, e.Schema, CurrentSchema)
	}
	return "malformed manifest: " + e.Detail
}

// TooNew reports whether upgrading the resolver could fix the manifest.
func (e *SchemaEvolutionError) TooNew() bool { return e.Reason == ReasonTooNew }

// MixedStrategyError reports a binary wired with more than one strategy
// in the same manifest.
type MixedStrategyError struct {
	Binary string
	// Modules maps each strategy keyword to the modules using it.
	Modules map[string][]string
}

func (e *MixedStrategyError) Error() string {
	keys := make([]string, 0, len(e.Modules))
	for k := range e.Modules {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s (%s)", k, strings.Join(e.Modules[k], ", "))
	}
	return fmt.Sprintf("binary %s is wired with more than one strategy: %s", e.Binary, strings.Join(parts, ", "))
}

// CheckStrategies returns a MixedStrategyError for the first binary, by
// name, that modules wire in different ways.
func (m *Manifest) CheckStrategies() error {
	byBinary := make(map[string]map[string][]string)
	for _, mod := range m.Modules {
		if byBinary[mod.Binary] == nil {
			byBinary[mod.Binary] = make(map[string][]string)
		}
		byBinary[mod.Binary][mod.Strategy] = append(byBinary[mod.Binary][mod.Strategy], mod.Name)
	}
	names := make([]string, 0, len(byBinary))
	for name := range byBinary {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if len(byBinary[name]) > 1 {
			for _, mods := range byBinary[name] {
				sort.Strings(mods)
			}
			return &MixedStrategyError{Binary: name, Modules: byBinary[name]}
		}
	}
	return nil
}
