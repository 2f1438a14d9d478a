package rules

import "fmt"

// ValidatorFunc checks a wildcard value extracted during match.
type ValidatorFunc func(value string) error

// OutputRef is a named output pattern of a rule.
type OutputRef struct {
	Name    string
	Pattern *Pattern
}

// Output builds an OutputRef from a raw pattern string.
func Output(name, raw string) OutputRef {
	return OutputRef{Name: name, Pattern: MustPattern(raw)}
}

// InputRef is a named input of a rule: either a literal pattern rendered
// under the task binding, or a named derivation function applied to it.
type InputRef struct {
	Name    string
	Pattern *Pattern // literal input when non-nil
	Derive  string   // derivation function name when Pattern is nil
}

// LiteralInput builds an InputRef from a raw pattern string.
func LiteralInput(name, raw string) InputRef {
	return InputRef{Name: name, Pattern: MustPattern(raw)}
}

// DerivedInput builds an InputRef resolved through a registered derivation.
func DerivedInput(name, fn string) InputRef {
	return InputRef{Name: name, Derive: fn}
}

// RuleTemplate describes how one family of output files is produced: the
// output patterns that identify it, the inputs it consumes, the memory it
// reserves while running, and the collaborator script that does the work.
type RuleTemplate struct {
	Name       string
	Outputs    []OutputRef
	Inputs     []InputRef
	MemoryMB   int
	Script     string
	Log        *Pattern
	Validators map[string]ValidatorFunc
}

// MatchOutput tries the template's output patterns in order and returns the
// binding of the first one matching the path. A wildcard validator rejecting
// a value is treated like a literal mismatch.
func (t *RuleTemplate) MatchOutput(path string) (Binding, bool) {
	for _, out := range t.Outputs {
		b, err := out.Pattern.Match(path)
		if err != nil {
			continue
		}
		if t.validate(b) != nil {
			continue
		}
		return b, true
	}
	return nil, false
}

func (t *RuleTemplate) validate(b Binding) error {
	for name, v := range b {
		fn, ok := t.Validators[name]
		if !ok {
			continue
		}
		if err := fn(v); err != nil {
			return fmt.Errorf("wildcard %s=%q: %w", name, v, err)
		}
	}
	return nil
}

// RenderOutputs renders every output pattern under the binding.
func (t *RuleTemplate) RenderOutputs(b Binding) ([]string, error) {
	paths := make([]string, len(t.Outputs))
	for i, out := range t.Outputs {
		p, err := out.Pattern.Render(b)
		if err != nil {
			return nil, fmt.Errorf("rule %s output %s: %w", t.Name, out.Name, err)
		}
		paths[i] = p
	}
	return paths, nil
}

// RenderLog renders the log destination, or "" when the rule declares none.
func (t *RuleTemplate) RenderLog(b Binding) (string, error) {
	if t.Log == nil {
		return "", nil
	}
	p, err := t.Log.Render(b)
	if err != nil {
		return "", fmt.Errorf("rule %s log: %w", t.Name, err)
	}
	return p, nil
}
