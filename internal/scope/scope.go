package scope

import (
	"github.com/google/uuid"
)

type Role string

const (
	RoleSuperAdmin Role = "SUPER_ADMIN"
	RoleAdmin      Role = "ADMIN"
	RoleLibrarian  Role = "LIBRARIAN"
)

// Scope is the branch-visibility context of the acting user, resolved by the
// upstream auth layer and consumed here as-is.
type Scope struct {
	ActorID  uuid.UUID `json:"actor_id"`
	Role     Role      `json:"role"`
	BranchID uuid.UUID `json:"branch_id"`
}

// BranchFilter returns the branch restriction to apply to queries: nil for a
// super admin (all branches), the actor's own branch for everyone else.
func (s Scope) BranchFilter() *uuid.UUID {
	if s.Role == RoleSuperAdmin {
		return nil
	}
	b := s.BranchID
	return &b
}
