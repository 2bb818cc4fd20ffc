package resolver

import (
	"errors"
	"fmt"

	"github.com/specialistvlad/nativebind/internal/artifact"
	"github.com/specialistvlad/nativebind/internal/descriptor"
	"github.com/specialistvlad/nativebind/internal/platform"
)

// State is a step of one target's resolution.
type State int

const (
	Unresolved State = iota
	ArtifactSelected
	SurfaceValidated
	Published
	Failed
)

func (s State) String() string {
	switch s {
	case Unresolved:
		return "unresolved"
	case ArtifactSelected:
		return "artifact-selected"
	case SurfaceValidated:
		return "surface-validated"
	case Published:
		return "published"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool { return s == Published || s == Failed }

// TransitionError reports an attempt to skip a state or to leave a
// terminal one. It is a programming error, never a manifest problem.
type TransitionError struct {
	From State
	To   State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("resolver: invalid transition from %s to %s", e.From, e.To)
}

// errAborted fails targets that were validated when another target failed,
// so nothing is published.
var errAborted = errors.New("aborted: another target failed")

// TargetError is the reason a target's build failed, with the state it
// had reached.
type TargetError struct {
	Target platform.Target
	State  State
	Err    error
}

func (e *TargetError) Error() string {
	return fmt.Sprintf("target %s (%s): %v", e.Target, e.State, e.Err)
}

func (e *TargetError) Unwrap() error { return e.Err }

// build is the state machine of one target. It is owned by a single
// goroutine until the commit phase.
type build struct {
	target      platform.Target
	state       State
	reason      *TargetError
	slices      map[string]*artifact.Slice // by binary name
	descriptors []*descriptor.Descriptor   // in module order
}

func newBuild(target platform.Target) *build {
	return &build{
		target: target,
		state:  Unresolved,
		slices: make(map[string]*artifact.Slice),
	}
}

// advance moves to the next state. Only the immediate successor is allowed.
func (b *build) advance(to State) error {
	if b.state.Terminal() || to != b.state+1 || to == Failed {
		return &TransitionError{From: b.state, To: to}
	}
	b.state = to
	return nil
}

// fail moves to Failed and records why. Failing a terminal build is a
// transition error.
func (b *build) fail(err error) error {
	if b.state.Terminal() {
		return &TransitionError{From: b.state, To: Failed}
	}
	b.reason = &TargetError{Target: b.target, State: b.state, Err: err}
	b.state = Failed
	return b.reason
}

// Err returns the failure reason, or nil.
func (b *build) Err() error {
	if b.reason == nil {
		return nil
	}
	return b.reason
}
