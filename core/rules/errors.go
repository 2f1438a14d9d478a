package rules

import (
	"errors"
	"fmt"
)

// Sentinel errors for the structural failure modes surfaced while resolving
// rules. Concrete error types wrap these so callers can test with errors.Is.
var (
	ErrPatternMismatch = errors.New("pattern mismatch")
	ErrUnboundWildcard = errors.New("unbound wildcard")
	ErrNoProducer      = errors.New("no producing rule")
	ErrAmbiguousOutput = errors.New("ambiguous output")
)

// MismatchError reports a concrete path that does not align with a pattern.
type MismatchError struct {
	Pattern string
	Path    string
	Reason  string
}

func (e *MismatchError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("path %q does not match pattern %q: %s", e.Path, e.Pattern, e.Reason)
	}
	return fmt.Sprintf("path %q does not match pattern %q", e.Path, e.Pattern)
}

func (e *MismatchError) Unwrap() error { return ErrPatternMismatch }

// UnboundError reports a wildcard referenced by a pattern but absent from
// the binding it is rendered under.
type UnboundError struct {
	Pattern string
	Name    string
}

func (e *UnboundError) Error() string {
	return fmt.Sprintf("wildcard %q not bound while rendering %q", e.Name, e.Pattern)
}

func (e *UnboundError) Unwrap() error { return ErrUnboundWildcard }

// NoProducerError reports a path that no registered rule can produce.
type NoProducerError struct{ Path string }

func (e *NoProducerError) Error() string { return fmt.Sprintf("no rule produces %q", e.Path) }

func (e *NoProducerError) Unwrap() error { return ErrNoProducer }

// AmbiguityError reports two rules claiming overlapping concrete outputs.
type AmbiguityError struct {
	Rule            string
	Pattern         string
	Existing        string
	ExistingPattern string
}

func (e *AmbiguityError) Error() string {
	return fmt.Sprintf("output %q of rule %s overlaps output %q of rule %s",
		e.Pattern, e.Rule, e.ExistingPattern, e.Existing)
}

func (e *AmbiguityError) Unwrap() error { return ErrAmbiguousOutput }

// DerivationError reports a derivation function failure, carrying the
// function name and the binding it was invoked with.
type DerivationError struct {
	Fn      string
	Binding Binding
	Err     error
}

func (e *DerivationError) Error() string {
	return fmt.Sprintf("derivation %s(%s): %v", e.Fn, e.Binding.Key(), e.Err)
}

func (e *DerivationError) Unwrap() error { return e.Err }
