package authorize

import (
	"context"
	"fmt"
	"log/slog"
)

// DefaultPolicies is the baseline RBAC table for the booking API. Ownership
// checks (the session's own client or therapist) happen in the services;
// these rows only gate which role may reach an operation at all.
func DefaultPolicies() []PermissionPolicy {
	return []PermissionPolicy{
		// Admin: everything
		{RoleAdmin, DomainSys, WildcardResource, WildcardAction, EffectAllow},

		// Therapist: own availability and sessions
		{RoleTherapist, DomainSys, ResourceAvailability, ActionCreate, EffectAllow},
		{RoleTherapist, DomainSys, ResourceAvailability, ActionRead, EffectAllow},
		{RoleTherapist, DomainSys, ResourceAvailability, ActionUpdate, EffectAllow},
		{RoleTherapist, DomainSys, ResourceAvailability, ActionList, EffectAllow},
		{RoleTherapist, DomainSys, ResourceBlockedDate, ActionCreate, EffectAllow},
		{RoleTherapist, DomainSys, ResourceBlockedDate, ActionDelete, EffectAllow},
		{RoleTherapist, DomainSys, ResourceBlockedDate, ActionList, EffectAllow},
		{RoleTherapist, DomainSys, ResourceSlot, ActionRead, EffectAllow},
		{RoleTherapist, DomainSys, ResourceSession, ActionRead, EffectAllow},
		{RoleTherapist, DomainSys, ResourceSession, ActionList, EffectAllow},
		{RoleTherapist, DomainSys, ResourceSession, ActionApprove, EffectAllow},
		{RoleTherapist, DomainSys, ResourceSession, ActionVerify, EffectAllow},
		{RoleTherapist, DomainSys, ResourceSession, ActionAttend, EffectAllow},
		{RoleTherapist, DomainSys, ResourceSession, ActionCancel, EffectAllow},
		{RoleTherapist, DomainSys, ResourcePaymentProof, ActionRead, EffectAllow},

		// Client: browse and book
		{RoleClient, DomainSys, ResourceAvailability, ActionRead, EffectAllow},
		{RoleClient, DomainSys, ResourceAvailability, ActionList, EffectAllow},
		{RoleClient, DomainSys, ResourceBlockedDate, ActionList, EffectAllow},
		{RoleClient, DomainSys, ResourceSlot, ActionRead, EffectAllow},
		{RoleClient, DomainSys, ResourceSession, ActionCreate, EffectAllow},
		{RoleClient, DomainSys, ResourceSession, ActionRead, EffectAllow},
		{RoleClient, DomainSys, ResourceSession, ActionList, EffectAllow},
		{RoleClient, DomainSys, ResourceSession, ActionPay, EffectAllow},
		{RoleClient, DomainSys, ResourceSession, ActionAttend, EffectAllow},
		{RoleClient, DomainSys, ResourceSession, ActionCancel, EffectAllow},
		{RoleClient, DomainSys, ResourcePaymentProof, ActionCreate, EffectAllow},

		// System principals: payment confirmation only
		{RoleSystem, DomainSys, ResourceSession, ActionVerify, EffectAllow},
	}
}

// SeedDefaultPolicies sets up the baseline RBAC policies for the system.
func SeedDefaultPolicies(ctx context.Context, auth IAuthorization) error {
	logger := slog.Default()

	policies := DefaultPolicies()
	for _, p := range policies {
		added, err := auth.AddPermission(ctx, p.Subject, p.Domain, p.Object, p.Action, p.Effect)
		if err != nil {
			logger.Error("failed to add policy", "policy", p, "error", err)
			return err
		}
		if added {
			logger.Debug("added policy", "role", p.Subject, "resource", p.Object, "action", p.Action)
		}
	}

	logger.Info("seeded default RBAC policies", "count", len(policies))
	return nil
}

// AssignRole grants a sys-domain role to a user.
func AssignRole(ctx context.Context, auth IAuthorization, userID string, role Role) error {
	if _, ok := KnownRoles[role]; !ok {
		return fmt.Errorf("%w: unknown role: %q", ErrInvalidArgs, role)
	}
	_, err := auth.AddRoleForUserInDomain(ctx, GroupSubject(userID), role, DomainSys)
	return err
}

// RemoveRole revokes a sys-domain role from a user.
func RemoveRole(ctx context.Context, auth IAuthorization, userID string, role Role) error {
	_, err := auth.RemoveRoleForUserInDomain(ctx, GroupSubject(userID), role, DomainSys)
	return err
}
