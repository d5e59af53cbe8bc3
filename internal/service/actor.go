package service

import "github.com/inkwell/internal/db"

// Actor is the already-authenticated caller of a service operation.
type Actor struct {
	ID   string
	Role db.Role
}

// IsAdmin reports whether the actor holds the ADMIN role.
func (a Actor) IsAdmin() bool {
	return a.Role == db.RoleAdmin
}

// HasRole reports whether the actor's role is in roles.
func (a Actor) HasRole(roles ...db.Role) bool {
	for _, role := range roles {
		if a.Role == role {
			return true
		}
	}
	return false
}

// authorize 是统一的授权判断：资源所有者，或拥有 roles 中任一角色的操作者放行。
// ownerID 为空表示资源没有所有者，此时只看角色。
func authorize(actor Actor, ownerID string, roles ...db.Role) error {
	if actor.ID == "" {
		return ErrNotAuthorized
	}
	if ownerID != "" && actor.ID == ownerID {
		return nil
	}
	if actor.HasRole(roles...) {
		return nil
	}
	return ErrNotAuthorized
}
