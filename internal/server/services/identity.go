// Package services contains the server-side business logic of the data room:
// the NDA signing ledger, the append-only audit trail, and the document
// disclosure gateway that authorizes and serves every content request.
package services

import "github.com/avendale/dataroom/internal/server/roles"

// Identity is the already-authenticated caller of a gated operation. The
// session collaborator verifies credentials; the engine only consumes the
// resulting claims. SourceIP and UserAgent are request attributes carried
// along for the audit trail and the signing ledger.
type Identity struct {
	UserID    string
	Name      string
	Email     string
	Role      roles.Role
	SourceIP  string
	UserAgent string
}

// Authenticated reports whether the request carried a resolved identity.
func (i Identity) Authenticated() bool {
	return i.UserID != ""
}
