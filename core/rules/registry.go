// Package rules holds the declarative side of the build engine: wildcard
// path patterns, rule templates, derivation functions, and the registry the
// dependency graph builder resolves concrete paths against.
package rules

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry holds the rule templates and derivation functions of a pipeline.
// It is constructed once at startup and passed by reference into the graph
// builder; nothing resolves through global state.
type Registry struct {
	mu        sync.RWMutex
	templates []*RuleTemplate
	byName    map[string]*RuleTemplate
	derives   map[string]DeriveFunc
}

// NewRegistry returns an empty rule registry.
func NewRegistry() *Registry {
	return &Registry{
		byName:  make(map[string]*RuleTemplate),
		derives: make(map[string]DeriveFunc),
	}
}

// Register validates and adds a rule template. Registration order matters:
// Lookup scans templates in this order and graph construction follows it, so
// callers must register deterministically.
func (r *Registry) Register(t *RuleTemplate) error {
	if t == nil || t.Name == "" {
		return fmt.Errorf("rule template must carry a name")
	}
	if len(t.Outputs) == 0 {
		return fmt.Errorf("rule %s declares no outputs", t.Name)
	}
	if t.MemoryMB <= 0 {
		return fmt.Errorf("rule %s: memory ceiling must be positive, got %d", t.Name, t.MemoryMB)
	}
	set := wildcardSet(t.Outputs[0].Pattern)
	for _, out := range t.Outputs[1:] {
		if other := wildcardSet(out.Pattern); other != set {
			return fmt.Errorf("rule %s: outputs bind different wildcards (%q vs %q)", t.Name, set, other)
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[t.Name]; ok {
		return fmt.Errorf("rule %s already registered", t.Name)
	}
	for i, out := range t.Outputs {
		// outputs of one rule must not shadow each other either,
		// otherwise a concrete path cannot be inverted uniquely
		for _, sib := range t.Outputs[i+1:] {
			if out.Pattern.Overlaps(sib.Pattern) {
				return &AmbiguityError{
					Rule:            t.Name,
					Pattern:         out.Pattern.String(),
					Existing:        t.Name,
					ExistingPattern: sib.Pattern.String(),
				}
			}
		}
		for _, ex := range r.templates {
			for _, exOut := range ex.Outputs {
				if out.Pattern.Overlaps(exOut.Pattern) {
					return &AmbiguityError{
						Rule:            t.Name,
						Pattern:         out.Pattern.String(),
						Existing:        ex.Name,
						ExistingPattern: exOut.Pattern.String(),
					}
				}
			}
		}
	}
	r.templates = append(r.templates, t)
	r.byName[t.Name] = t
	return nil
}

// RegisterDerivation adds a named derivation function.
func (r *Registry) RegisterDerivation(name string, fn DeriveFunc) error {
	if name == "" || fn == nil {
		return fmt.Errorf("derivation must carry a name and a function")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.derives[name]; ok {
		return fmt.Errorf("derivation %s already registered", name)
	}
	r.derives[name] = fn
	return nil
}

// Lookup returns the unique template producing the concrete path together
// with the wildcard binding extracted from it.
func (r *Registry) Lookup(path string) (*RuleTemplate, Binding, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.templates {
		if b, ok := t.MatchOutput(path); ok {
			return t, b, nil
		}
	}
	return nil, nil, &NoProducerError{Path: path}
}

// ResolveInput renders one input reference under a binding, invoking the
// named derivation function for derived inputs.
func (r *Registry) ResolveInput(ref InputRef, b Binding) (string, *FallbackNote, error) {
	if ref.Derive == "" {
		p, err := ref.Pattern.Render(b)
		return p, nil, err
	}
	r.mu.RLock()
	fn, ok := r.derives[ref.Derive]
	r.mu.RUnlock()
	if !ok {
		return "", nil, &DerivationError{Fn: ref.Derive, Binding: b, Err: fmt.Errorf("derivation not registered")}
	}
	p, note, err := fn(b)
	if err != nil {
		var derr *DerivationError
		if errors.As(err, &derr) {
			return "", nil, err
		}
		return "", nil, &DerivationError{Fn: ref.Derive, Binding: b, Err: err}
	}
	if note != nil {
		note.Fn = ref.Derive
	}
	return p, note, nil
}

// Template returns the registered rule with the given name.
func (r *Registry) Template(name string) (*RuleTemplate, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byName[name]
	return t, ok
}

// Templates returns the registered rules in registration order.
func (r *Registry) Templates() []*RuleTemplate {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*RuleTemplate(nil), r.templates...)
}

// Derivations returns the registered derivation names, sorted.
func (r *Registry) Derivations() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.derives))
	for n := range r.derives {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func wildcardSet(p *Pattern) string {
	names := append([]string(nil), p.Wildcards()...)
	sort.Strings(names)
	return strings.Join(names, ",")
}
