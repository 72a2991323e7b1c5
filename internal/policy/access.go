package policy

import "github.com/zulandar/netlog/internal/models"

// Role is an actor's coarse permission level.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// ParseRole maps a header or flag value to a Role. Unknown values map to the
// empty (anonymous) role.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleAdmin:
		return RoleAdmin
	case RoleUser:
		return RoleUser
	}
	return ""
}

// Actor is the caller of a mutating operation. The zero value is anonymous.
type Actor struct {
	ID   string
	Role Role
}

// Anonymous reports whether the actor has no recognized role.
func (a Actor) Anonymous() bool {
	return a.Role != RoleAdmin && a.Role != RoleUser
}

// Action is a kind of record mutation.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// CanMutate reports whether actor may perform action on the records of session.
//
// Any authenticated actor may log into any session. Updates are limited to
// admins and the owning controller. Deletes are admin-only: the owner may
// edit a record but not remove it.
func CanMutate(actor Actor, session *models.Session, action Action) bool {
	if session == nil {
		return false
	}
	switch action {
	case ActionCreate:
		return !actor.Anonymous()
	case ActionUpdate:
		if actor.Role == RoleAdmin {
			return true
		}
		return actor.Role == RoleUser && actor.ID != "" && actor.ID == session.ControllerID
	case ActionDelete:
		return actor.Role == RoleAdmin
	}
	return false
}
