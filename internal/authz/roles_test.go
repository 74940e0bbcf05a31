package authz

import (
	"testing"

	"github.com/org/barrel/internal/auth"
)

func TestAllowed(t *testing.T) {
	p := &auth.Principal{Name: "oli", Authorities: []string{"MITGLIEDVALIDIERER"}}

	if !Allowed(p, "MITGLIEDVALIDIERER") {
		t.Error("carried role must be allowed")
	}
	if !Allowed(p, "mitgliedvalidierer") {
		t.Error("role comparison must be case-insensitive")
	}
	if Allowed(p, "ARCHIVAR") {
		t.Error("missing role must not be allowed")
	}
	if Allowed(nil, "MITGLIEDVALIDIERER") {
		t.Error("anonymous must never be allowed")
	}
	if Allowed(&auth.Principal{Name: "leer"}, "MITGLIEDVALIDIERER") {
		t.Error("principal without authorities must not be allowed")
	}
}

func TestDefaultRoleMap(t *testing.T) {
	m := DefaultRoleMap()
	want := RoleMap{
		MemberAccess:    "MITGLIEDVALIDIERER",
		MemberManager:   "MITGLIEDVERWALTER",
		RegisterAccess:  "REGISTERVALIDIERER",
		RegisterManager: "REGISTERVERWALTER",
		Archive:         "ARCHIVAR",
	}
	if m != want {
		t.Errorf("DefaultRoleMap() = %+v", m)
	}
}
