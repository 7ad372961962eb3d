package domain

import "fmt"

// Scopes gate what a token may do against the API. Read covers status and
// output queries, control covers lifecycle commands and stdin, admin covers
// everything including client management.
const (
	ScopeProcsRead    = "procs:read"
	ScopeProcsControl = "procs:control"
	ScopeAdmin        = "admin"
)

var knownScopes = map[string]bool{
	ScopeProcsRead:    true,
	ScopeProcsControl: true,
	ScopeAdmin:        true,
}

// ValidateScopes rejects scope names the API does not know.
func ValidateScopes(scopes []string) error {
	for _, s := range scopes {
		if !knownScopes[s] {
			return fmt.Errorf("unknown scope: %s", s)
		}
	}
	return nil
}

// ScopesAllow reports whether the granted set covers the required scope.
// Admin covers every scope.
func ScopesAllow(granted []string, required string) bool {
	for _, s := range granted {
		if s == required || s == ScopeAdmin {
			return true
		}
	}
	return false
}

// SubsetOf reports whether every requested scope is present in granted.
func SubsetOf(requested, granted []string) bool {
	for _, want := range requested {
		if !ScopesAllow(granted, want) {
			return false
		}
	}
	return true
}
