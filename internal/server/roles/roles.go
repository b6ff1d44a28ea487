// Package roles defines the participant role hierarchy and the visibility
// rules documents are gated by.
package roles

import (
	"errors"
	"fmt"
)

// Role orders participants from least to most privileged. The ordering is
// monotonic: anything a lower role may do, a higher role may do as well.
type Role int

const (
	Guest Role = iota
	Viewer
	Buyer
	Admin
)

// NDA is the pseudo-role a document's visibility list uses to mark the
// document as NDA-gated. It never names an actual participant role.
const NDA = "nda"

// ErrUnknownRole is returned when parsing a string that names no role.
var ErrUnknownRole = errors.New("unknown role")

var roleNames = map[Role]string{
	Guest:  "guest",
	Viewer: "viewer",
	Buyer:  "buyer",
	Admin:  "admin",
}

var rolesByName = map[string]Role{
	"guest":  Guest,
	"viewer": Viewer,
	"buyer":  Buyer,
	"admin":  Admin,
}

// Parse maps a role name to its Role. The NDA pseudo-role is not a
// participant role and is rejected here.
func Parse(s string) (Role, error) {
	role, ok := rolesByName[s]
	if !ok {
		return Guest, fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
	return role, nil
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("role(%d)", int(r))
}

// Valid reports whether r is one of the defined roles.
func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

// Permits reports whether r is at least as privileged as required.
func (r Role) Permits(required Role) bool {
	return r >= required
}

// ExemptFromNDA reports whether r bypasses NDA gating entirely.
func (r Role) ExemptFromNDA() bool {
	return r == Admin
}

// MarshalText implements encoding.TextMarshaler so roles serialize as their
// lowercase names in JSON payloads.
func (r Role) MarshalText() ([]byte, error) {
	name, ok := roleNames[r]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownRole, int(r))
	}
	return []byte(name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Role) UnmarshalText(text []byte) error {
	role, err := Parse(string(text))
	if err != nil {
		return err
	}
	*r = role
	return nil
}

// Allowed reports whether a caller with role r may see a document with the
// given visibility list. A document is visible when the list names any role
// the caller's role covers. The NDA pseudo-role is gating metadata, not a
// grant, and is skipped here. Admins see every document.
func Allowed(r Role, visibility []string) bool {
	if r == Admin {
		return true
	}
	for _, name := range visibility {
		if name == NDA {
			continue
		}
		listed, err := Parse(name)
		if err != nil {
			continue
		}
		if r.Permits(listed) {
			return true
		}
	}
	return false
}

// RequiresNDA reports whether the visibility list carries the NDA
// pseudo-role.
func RequiresNDA(visibility []string) bool {
	for _, name := range visibility {
		if name == NDA {
			return true
		}
	}
	return false
}
