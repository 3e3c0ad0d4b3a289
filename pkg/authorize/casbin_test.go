package authorize

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	casbin "github.com/casbin/casbin/v2"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"
)

const testModel = `[request_definition]
r = sub, dom, obj, act

[policy_definition]
p = sub, dom, obj, act, eft

[role_definition]
g = _, _, _
g2 = _, _

[policy_effect]
e = some(where (p.eft == allow)) && !some(where (p.eft == deny))

[matchers]
m = (g(r.sub, p.sub, r.dom) || g2(r.sub, p.sub)) && (p.dom == "*" || p.dom == r.dom) && (p.obj == "*" || keyMatch2(r.obj, p.obj)) && (p.act == "*" || keyMatch(r.act, p.act))
`

// createTestEnforcer creates a file-backed Casbin enforcer for testing
func createTestEnforcer(t *testing.T) *casbin.DistributedEnforcer {
	t.Helper()

	tmpDir := t.TempDir()

	modelPath := filepath.Join(tmpDir, "model.conf")
	if err := os.WriteFile(modelPath, []byte(testModel), 0644); err != nil {
		t.Fatalf("failed to write model file: %v", err)
	}

	policyPath := filepath.Join(tmpDir, "policy.csv")
	if err := os.WriteFile(policyPath, []byte(""), 0644); err != nil {
		t.Fatalf("failed to write policy file: %v", err)
	}

	e, err := casbin.NewDistributedEnforcer(modelPath, fileadapter.NewAdapter(policyPath))
	if err != nil {
		t.Fatalf("failed to create enforcer: %v", err)
	}

	e.EnableAutoSave(false)
	e.EnableEnforce(true)

	return e
}

func newTestAuthorization(t *testing.T, opts ...Option) IAuthorization {
	t.Helper()
	auth, err := NewAuthorization(createTestEnforcer(t), opts...)
	if err != nil {
		t.Fatalf("NewAuthorization: %v", err)
	}
	return auth
}

func TestNewAuthorization(t *testing.T) {
	t.Run("returns error for nil enforcer", func(t *testing.T) {
		_, err := NewAuthorization(nil)
		if !errors.Is(err, ErrInvalidArgs) {
			t.Errorf("expected ErrInvalidArgs, got %v", err)
		}
	})

	t.Run("succeeds with valid enforcer", func(t *testing.T) {
		auth, err := NewAuthorization(createTestEnforcer(t))
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if auth == nil {
			t.Error("expected non-nil authorization")
		}
	})
}

func TestEnforce(t *testing.T) {
	auth := newTestAuthorization(t)
	ctx := context.Background()

	therapist := GroupSubject("therapist-123")
	if _, err := auth.AddRoleForUserInDomain(ctx, therapist, RoleTherapist, DomainSys); err != nil {
		t.Fatalf("failed to add role: %v", err)
	}
	if _, err := auth.AddPermission(ctx, RoleTherapist, DomainSys, ResourceSession, ActionApprove, EffectAllow); err != nil {
		t.Fatalf("failed to add permission: %v", err)
	}

	tests := []struct {
		name     string
		subject  GroupSubject
		domain   Domain
		resource Resource
		action   Action
		want     bool
		wantErr  bool
	}{
		{"allowed when permission exists", therapist, DomainSys, ResourceSession, ActionApprove, true, false},
		{"denied when no permission", therapist, DomainSys, ResourceAudit, ActionRead, false, false},
		{"denied for unknown subject", "someone-else", DomainSys, ResourceSession, ActionApprove, false, false},
		{"error for empty subject", "", DomainSys, ResourceSession, ActionRead, false, true},
		{"error for invalid domain", therapist, Domain("clinic:1"), ResourceSession, ActionRead, false, true},
		{"error for unknown resource", therapist, DomainSys, Resource("unknown"), ActionRead, false, true},
		{"error for unknown action", therapist, DomainSys, ResourceSession, Action("unknown"), false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := auth.Enforce(ctx, tt.subject, tt.domain, tt.resource, tt.action)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error but got nil")
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Enforce() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMustEnforce(t *testing.T) {
	auth := newTestAuthorization(t)
	ctx := context.Background()

	client := GroupSubject("client-456")
	auth.AddRoleForUserInDomain(ctx, client, RoleClient, DomainSys)
	auth.AddPermission(ctx, RoleClient, DomainSys, ResourceSession, ActionCreate, EffectAllow)

	t.Run("returns nil when allowed", func(t *testing.T) {
		if err := auth.MustEnforce(ctx, client, DomainSys, ResourceSession, ActionCreate); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("returns ErrForbidden when denied", func(t *testing.T) {
		err := auth.MustEnforce(ctx, client, DomainSys, ResourceSession, ActionVerify)
		if err != ErrForbidden {
			t.Errorf("expected ErrForbidden, got %v", err)
		}
	})
}

func TestAdminBypass(t *testing.T) {
	ctx := context.Background()
	admin := GroupSubject("admin-id")

	t.Run("enabled", func(t *testing.T) {
		auth := newTestAuthorization(t, WithAdminBypass(true))
		auth.AddRoleForUserInDomain(ctx, admin, RoleAdmin, DomainSys)

		allowed, err := auth.Enforce(ctx, admin, DomainSys, ResourceAudit, ActionExecute)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !allowed {
			t.Error("expected admin to bypass policy checks")
		}
	})

	t.Run("disabled", func(t *testing.T) {
		auth := newTestAuthorization(t, WithAdminBypass(false))
		auth.AddRoleForUserInDomain(ctx, admin, RoleAdmin, DomainSys)

		allowed, err := auth.Enforce(ctx, admin, DomainSys, ResourceAudit, ActionExecute)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if allowed {
			t.Error("expected admin without policy rows to be denied")
		}
	})
}

func TestRoleManagement(t *testing.T) {
	auth := newTestAuthorization(t)
	ctx := context.Background()
	user := GroupSubject("user-789")

	t.Run("add and get roles", func(t *testing.T) {
		added, err := auth.AddRoleForUserInDomain(ctx, user, RoleTherapist, DomainSys)
		if err != nil {
			t.Fatalf("failed to add role: %v", err)
		}
		if !added {
			t.Error("expected role to be added")
		}

		roles, err := auth.GetRolesForUserInDomain(ctx, user, DomainSys)
		if err != nil {
			t.Fatalf("failed to get roles: %v", err)
		}
		if len(roles) != 1 || roles[0] != RoleTherapist {
			t.Errorf("roles = %v, want [%s]", roles, RoleTherapist)
		}
	})

	t.Run("remove role", func(t *testing.T) {
		removed, err := auth.RemoveRoleForUserInDomain(ctx, user, RoleTherapist, DomainSys)
		if err != nil {
			t.Fatalf("failed to remove role: %v", err)
		}
		if !removed {
			t.Error("expected role to be removed")
		}

		roles, _ := auth.GetRolesForUserInDomain(ctx, user, DomainSys)
		if len(roles) != 0 {
			t.Errorf("expected 0 roles after removal, got %d", len(roles))
		}
	})

	t.Run("error for invalid role", func(t *testing.T) {
		_, err := auth.AddRoleForUserInDomain(ctx, user, Role("invalid-role"), DomainSys)
		if err == nil {
			t.Error("expected error for invalid role")
		}
	})
}

func TestPermissionManagement(t *testing.T) {
	auth := newTestAuthorization(t)
	ctx := context.Background()

	t.Run("add and remove permission", func(t *testing.T) {
		added, err := auth.AddPermission(ctx, RoleSystem, DomainSys, ResourceSession, ActionVerify, EffectAllow)
		if err != nil {
			t.Fatalf("failed to add permission: %v", err)
		}
		if !added {
			t.Error("expected permission to be added")
		}

		removed, err := auth.RemovePermission(ctx, RoleSystem, DomainSys, ResourceSession, ActionVerify, EffectAllow)
		if err != nil {
			t.Fatalf("failed to remove permission: %v", err)
		}
		if !removed {
			t.Error("expected permission to be removed")
		}
	})

	t.Run("error for invalid effect", func(t *testing.T) {
		_, err := auth.AddPermission(ctx, RoleAdmin, DomainSys, ResourceSession, ActionRead, PolicyEffect("invalid"))
		if err == nil {
			t.Error("expected error for invalid effect")
		}
	})
}

func TestSeedDefaultPolicies(t *testing.T) {
	auth := newTestAuthorization(t)
	ctx := context.Background()

	if err := SeedDefaultPolicies(ctx, auth); err != nil {
		t.Fatalf("SeedDefaultPolicies: %v", err)
	}

	therapist, client, gateway := "t-1", "c-1", "gw-1"
	if err := AssignRole(ctx, auth, therapist, RoleTherapist); err != nil {
		t.Fatal(err)
	}
	if err := AssignRole(ctx, auth, client, RoleClient); err != nil {
		t.Fatal(err)
	}
	if err := AssignRole(ctx, auth, gateway, RoleSystem); err != nil {
		t.Fatal(err)
	}
	if err := AssignRole(ctx, auth, client, Role("role:owner")); !errors.Is(err, ErrInvalidArgs) {
		t.Errorf("expected ErrInvalidArgs for unknown role, got %v", err)
	}

	tests := []struct {
		subject  string
		resource Resource
		action   Action
		want     bool
	}{
		{therapist, ResourceAvailability, ActionCreate, true},
		{therapist, ResourceSession, ActionApprove, true},
		{therapist, ResourceSession, ActionPay, false},
		{client, ResourceSession, ActionCreate, true},
		{client, ResourceSession, ActionPay, true},
		{client, ResourceSession, ActionApprove, false},
		{client, ResourceAvailability, ActionCreate, false},
		{gateway, ResourceSession, ActionVerify, true},
		{gateway, ResourceSession, ActionCancel, false},
	}

	for _, tt := range tests {
		t.Run(tt.subject+"/"+string(tt.resource)+"/"+string(tt.action), func(t *testing.T) {
			got, err := auth.Enforce(ctx, GroupSubject(tt.subject), DomainSys, tt.resource, tt.action)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Enforce() = %v, want %v", got, tt.want)
			}
		})
	}
}
