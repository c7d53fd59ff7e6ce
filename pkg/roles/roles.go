package roles

import (
	"github.com/umodzirx/auth-relay/pkg/staffdir"
)

// Role of an application session.
type Role string

const (
	Admin      Role = "admin"
	Doctor     Role = "doctor"
	Pharmacist Role = "pharmacist"
	Patient    Role = "patient"
)

// DefaultRole applies when neither the staff directory nor a bootstrap
// override knows the user.
const DefaultRole = Patient

func Canonical() []Role {
	return []Role{Admin, Doctor, Pharmacist, Patient}
}

func IsCanonical(role string) bool {
	switch Role(role) {
	case Admin, Doctor, Pharmacist, Patient:
		return true
	}
	return false
}

// Bootstrap accounts for the demo seed path. Not a security mechanism.
var bootstrapOverrides = map[string]Role{
	"admin@gmail.com":      Admin,
	"doctor@gmail.com":     Doctor,
	"pharmacist@gmail.com": Pharmacist,
}

// Resolve maps the claimed identity and the optional staff directory entry
// to the session role. A directory entry with a non-empty role wins
// unconditionally over any email-based signal. Directory roles outside the
// canonical set pass through unchanged.
func Resolve(email string, entry *staffdir.Entry) Role {
	role := DefaultRole
	if override, ok := bootstrapOverrides[email]; ok {
		role = override
	}
	if entry != nil && entry.Role != "" {
		role = Role(entry.Role)
	}
	return role
}
