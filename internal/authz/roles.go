// Package authz maps configured directory group names onto the application
// roles and evaluates per-endpoint role requirements against a principal's
// authority set. A plain set-membership check, no expression language.
package authz

import "github.com/org/barrel/internal/auth"

// RoleMap names the directory groups that carry each application role.
type RoleMap struct {
	MemberAccess    string `yaml:"member_access"`
	MemberManager   string `yaml:"member_manager"`
	RegisterAccess  string `yaml:"register_access"`
	RegisterManager string `yaml:"register_manager"`
	Archive         string `yaml:"archive"`
}

// DefaultRoleMap returns the role names used when none are configured.
func DefaultRoleMap() RoleMap {
	return RoleMap{
		MemberAccess:    "MITGLIEDVALIDIERER",
		MemberManager:   "MITGLIEDVERWALTER",
		RegisterAccess:  "REGISTERVALIDIERER",
		RegisterManager: "REGISTERVERWALTER",
		Archive:         "ARCHIVAR",
	}
}

// Allowed reports whether the principal carries the required role. A nil
// principal (anonymous request) is never allowed.
func Allowed(p *auth.Principal, role string) bool {
	if p == nil {
		return false
	}
	return p.HasAuthority(role)
}
