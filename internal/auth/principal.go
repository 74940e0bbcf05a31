// Package auth issues and verifies the two classes of Barrel bearer tokens
// and defines the authenticated principal attached to requests.
package auth

import "strings"

// Principal is an authenticated user for the duration of one request:
// the directory username plus the role names populated from the user's
// group memberships. Immutable after construction.
type Principal struct {
	Name        string   `json:"name"`
	Authorities []string `json:"authorities"`
}

// HasAuthority reports whether the principal carries the given role.
// Comparison is case-insensitive, matching directory attribute semantics.
func (p *Principal) HasAuthority(role string) bool {
	for _, a := range p.Authorities {
		if strings.EqualFold(a, role) {
			return true
		}
	}
	return false
}
