package rules

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Binding maps wildcard names to the concrete values extracted from a
// requested path or propagated from a parent task.
type Binding map[string]string

// Clone returns a copy of the binding.
func (b Binding) Clone() Binding {
	c := make(Binding, len(b))
	for k, v := range b {
		c[k] = v
	}
	return c
}

// Key returns a canonical representation of the binding. Names are sorted so
// the key is independent of map iteration order; it is used together with the
// rule name as task identity.
func (b Binding) Key() string {
	names := make([]string, 0, len(b))
	for n := range b {
		names = append(names, n)
	}
	sort.Strings(names)
	var sb strings.Builder
	for i, n := range names {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(n)
		sb.WriteByte('=')
		sb.WriteString(b[n])
	}
	return sb.String()
}

type token struct {
	lit  string // literal text, empty for wildcard tokens
	wild string // wildcard name, empty for literal tokens
}

// Pattern is a path pattern with {name} wildcard placeholders. A wildcard
// matches one or more characters within a single path segment; it never
// spans '/'.
type Pattern struct {
	raw    string
	tokens []token
	re     *regexp.Regexp
	names  []string // wildcard names in appearance order, repeats included
}

var wildName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ParsePattern compiles a raw pattern string.
func ParsePattern(raw string) (*Pattern, error) {
	if raw == "" {
		return nil, fmt.Errorf("empty pattern")
	}
	p := &Pattern{raw: raw}
	var re strings.Builder
	re.WriteByte('^')
	rest := raw
	for len(rest) > 0 {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			if strings.IndexByte(rest, '}') >= 0 {
				return nil, fmt.Errorf("pattern %q: unmatched '}'", raw)
			}
			p.tokens = append(p.tokens, token{lit: rest})
			re.WriteString(regexp.QuoteMeta(rest))
			break
		}
		if open > 0 {
			lit := rest[:open]
			if strings.IndexByte(lit, '}') >= 0 {
				return nil, fmt.Errorf("pattern %q: unmatched '}'", raw)
			}
			p.tokens = append(p.tokens, token{lit: lit})
			re.WriteString(regexp.QuoteMeta(lit))
		}
		rest = rest[open+1:]
		end := strings.IndexByte(rest, '}')
		if end < 0 {
			return nil, fmt.Errorf("pattern %q: unmatched '{'", raw)
		}
		name := rest[:end]
		if !wildName.MatchString(name) {
			return nil, fmt.Errorf("pattern %q: invalid wildcard name %q", raw, name)
		}
		p.tokens = append(p.tokens, token{wild: name})
		p.names = append(p.names, name)
		re.WriteString(`([^/]+)`)
		rest = rest[end+1:]
	}
	re.WriteByte('$')
	compiled, err := regexp.Compile(re.String())
	if err != nil {
		return nil, fmt.Errorf("pattern %q: %w", raw, err)
	}
	p.re = compiled
	return p, nil
}

// MustPattern is ParsePattern panicking on error; for built-in rule tables.
func MustPattern(raw string) *Pattern {
	p, err := ParsePattern(raw)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the raw pattern text.
func (p *Pattern) String() string { return p.raw }

// Wildcards returns the distinct wildcard names in order of first appearance.
func (p *Pattern) Wildcards() []string {
	seen := make(map[string]bool, len(p.names))
	out := make([]string, 0, len(p.names))
	for _, n := range p.names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}

// Match extracts a wildcard binding from a concrete path. A wildcard
// appearing more than once must bind the same value at every occurrence.
func (p *Pattern) Match(path string) (Binding, error) {
	m := p.re.FindStringSubmatch(path)
	if m == nil {
		return nil, &MismatchError{Pattern: p.raw, Path: path}
	}
	b := make(Binding, len(p.names))
	for i, name := range p.names {
		v := m[i+1]
		if prev, ok := b[name]; ok && prev != v {
			return nil, &MismatchError{
				Pattern: p.raw,
				Path:    path,
				Reason:  fmt.Sprintf("wildcard %s bound to both %q and %q", name, prev, v),
			}
		}
		b[name] = v
	}
	return b, nil
}

// Render substitutes bound values into the pattern.
func (p *Pattern) Render(b Binding) (string, error) {
	var sb strings.Builder
	for _, tk := range p.tokens {
		if tk.wild == "" {
			sb.WriteString(tk.lit)
			continue
		}
		v, ok := b[tk.wild]
		if !ok {
			return "", &UnboundError{Pattern: p.raw, Name: tk.wild}
		}
		sb.WriteString(v)
	}
	return sb.String(), nil
}

// Overlaps reports whether some concrete path could be matched by both
// patterns. Wildcards never span '/', so patterns with different segment
// counts cannot collide and each segment pair is decided independently.
func (p *Pattern) Overlaps(o *Pattern) bool {
	a := strings.Split(p.raw, "/")
	b := strings.Split(o.raw, "/")
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !segmentsOverlap(a[i], b[i]) {
			return false
		}
	}
	return true
}

// item is one atom of a segment pattern: a literal byte, or a wildcard
// standing for one or more arbitrary non-slash bytes.
type item struct {
	ch   byte
	wild bool
}

func segmentItems(seg string) []item {
	items := make([]item, 0, len(seg))
	for i := 0; i < len(seg); i++ {
		if seg[i] == '{' {
			// braces are balanced in a parsed pattern
			items = append(items, item{wild: true})
			i += strings.IndexByte(seg[i:], '}')
			continue
		}
		items = append(items, item{ch: seg[i]})
	}
	return items
}

// segmentsOverlap decides whether two segment patterns can generate a common
// string. ok[i][j] holds whether the suffixes a[i:] and b[j:] share one.
func segmentsOverlap(sa, sb string) bool {
	a, b := segmentItems(sa), segmentItems(sb)
	la, lb := len(a), len(b)
	ok := make([][]bool, la+1)
	for i := range ok {
		ok[i] = make([]bool, lb+1)
	}
	ok[la][lb] = true
	for i := la; i >= 0; i-- {
		for j := lb; j >= 0; j-- {
			if i == la || j == lb {
				continue // only the both-empty corner holds
			}
			switch {
			case !a[i].wild && !b[j].wild:
				ok[i][j] = a[i].ch == b[j].ch && ok[i+1][j+1]
			case a[i].wild && !b[j].wild:
				ok[i][j] = ok[i+1][j+1] || ok[i][j+1]
			case !a[i].wild && b[j].wild:
				ok[i][j] = ok[i+1][j+1] || ok[i+1][j]
			default:
				ok[i][j] = ok[i+1][j+1] || ok[i][j+1] || ok[i+1][j]
			}
		}
	}
	return ok[0][0]
}
