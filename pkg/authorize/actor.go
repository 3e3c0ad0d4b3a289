package authorize

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// ActorRole is the role a caller acts in for a single operation.
type ActorRole string

const (
	ActorClient    ActorRole = "client"
	ActorTherapist ActorRole = "therapist"
	ActorAdmin     ActorRole = "admin"
	ActorSystem    ActorRole = "system"
)

func (r ActorRole) Valid() bool {
	switch r {
	case ActorClient, ActorTherapist, ActorAdmin, ActorSystem:
		return true
	}
	return false
}

// Actor is the resolved identity behind a call into the booking core.
type Actor struct {
	ID   uuid.UUID
	Role ActorRole
}

func (a Actor) IsAdmin() bool  { return a.Role == ActorAdmin }
func (a Actor) IsSystem() bool { return a.Role == ActorSystem }

// Is reports whether the actor is the principal with the given id.
func (a Actor) Is(id uuid.UUID) bool { return id != uuid.Nil && a.ID == id }

func (a Actor) String() string { return fmt.Sprintf("%s:%s", a.Role, a.ID) }

// SystemActor is used for calls that originate from trusted collaborators,
// for example the payment gateway.
func SystemActor() Actor { return Actor{ID: uuid.Nil, Role: ActorSystem} }

// rolePrecedence orders casbin roles from strongest to weakest.
var rolePrecedence = []struct {
	role  Role
	actor ActorRole
}{
	{RoleAdmin, ActorAdmin},
	{RoleSystem, ActorSystem},
	{RoleTherapist, ActorTherapist},
	{RoleClient, ActorClient},
}

// ResolveActor maps a user's grouping policies in the sys domain to the
// strongest actor role. Users without any role act as clients.
func ResolveActor(ctx context.Context, auth IAuthorization, userID uuid.UUID) (Actor, error) {
	if userID == uuid.Nil {
		return Actor{}, fmt.Errorf("%w: user id is nil", ErrInvalidArgs)
	}

	roles, err := auth.GetRolesForUserInDomain(ctx, GroupSubject(userID.String()), DomainSys)
	if err != nil {
		return Actor{}, fmt.Errorf("resolve roles: %w", err)
	}

	held := make(map[Role]struct{}, len(roles))
	for _, r := range roles {
		held[r] = struct{}{}
	}
	for _, p := range rolePrecedence {
		if _, ok := held[p.role]; ok {
			return Actor{ID: userID, Role: p.actor}, nil
		}
	}
	return Actor{ID: userID, Role: ActorClient}, nil
}

// RoleForActor returns the casbin role that grants an actor role.
func RoleForActor(r ActorRole) (Role, bool) {
	for _, p := range rolePrecedence {
		if p.actor == r {
			return p.role, true
		}
	}
	return "", false
}
