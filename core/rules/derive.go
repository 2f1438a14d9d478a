package rules

// DeriveFunc computes an input path from a wildcard binding. Implementations
// must be deterministic and side-effect free: the same binding always yields
// the same path. A non-nil FallbackNote reports a policy-driven substitution
// for the audit trail.
type DeriveFunc func(b Binding) (string, *FallbackNote, error)

// FallbackNote records a wildcard value replaced under an explicit fallback
// policy, keeping stale-data substitutions visible in reports and logs.
type FallbackNote struct {
	Rule        string // rule whose input triggered the derivation; set by the builder
	Fn          string
	Wildcard    string
	Requested   string
	Substituted string
}
