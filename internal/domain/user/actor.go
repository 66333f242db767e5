package user

import "github.com/google/uuid"

// Actor is the authenticated principal behind a request, as established by
// the auth gateway from token claims.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

func (a Actor) CanManageUsers() bool {
	return a.Role.CanManageUsers()
}

func (a Actor) Owns(id uuid.UUID) bool {
	return a.ID == id
}
