package authz

import (
	"errors"

	"coachly/internal/domain"
)

// ErrForbidden signals an authorization failure. It is never substituted for
// a missing-resource error: callers report the two distinctly.
var ErrForbidden = errors.New("forbidden")

type Action string

const (
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Policy decides whether an actor may act on an appointment owned by an
// instructor. Implementations are pure and stateless.
//
// For list queries the policy narrows scope instead of denying: OwnerScope
// reports the instructor id the query must be restricted to, or restricted =
// false for unrestricted access.
type Policy interface {
	CanAccess(actorID, ownerID string, action Action) bool
	OwnerScope(actorID string) (ownerID string, restricted bool)
}

// AdminPolicy allows everything.
type AdminPolicy struct{}

func (AdminPolicy) CanAccess(_, _ string, _ Action) bool { return true }

func (AdminPolicy) OwnerScope(string) (string, bool) { return "", false }

// OwnerScopedPolicy restricts an actor to appointments it owns.
type OwnerScopedPolicy struct{}

func (OwnerScopedPolicy) CanAccess(actorID, ownerID string, _ Action) bool {
	return actorID != "" && actorID == ownerID
}

func (OwnerScopedPolicy) OwnerScope(actorID string) (string, bool) {
	return actorID, true
}

// PolicyFor selects the policy variant for a role. Every role other than
// admin is owner-scoped.
func PolicyFor(role domain.Role) Policy {
	if role == domain.RoleAdmin {
		return AdminPolicy{}
	}
	return OwnerScopedPolicy{}
}
