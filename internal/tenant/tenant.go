// Package tenant maps untrusted client-supplied tenant tokens to
// validated storage namespaces.
package tenant

// Resolver validates tenant tokens against a configured allow-list. It is
// the only component that performs tenant validation; everything
// downstream treats the resolved namespace as trusted.
type Resolver struct {
	allowed  map[string]struct{}
	fallback string
}

// NewResolver builds a Resolver from the allow-list and the fallback
// namespace used for absent or unrecognized tokens.
func NewResolver(allowed []string, fallback string) *Resolver {
	m := make(map[string]struct{}, len(allowed))
	for _, t := range allowed {
		m[t] = struct{}{}
	}
	return &Resolver{allowed: m, fallback: fallback}
}

// Resolve returns the validated namespace for a client token. Unknown or
// empty tokens silently map to the fallback namespace: availability wins
// over strict tenant enforcement, a request is never rejected for a bad
// tenant.
func (r *Resolver) Resolve(token string) string {
	if _, ok := r.allowed[token]; ok {
		return token
	}
	return r.fallback
}

// Fallback returns the default namespace.
func (r *Resolver) Fallback() string { return r.fallback }
