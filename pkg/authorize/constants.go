package authorize

type Action string
type Resource string
type Role string
type Domain string

// ----------------------------
// Actions
// ----------------------------

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionList   Action = "list"

	// Power actions
	ActionManage  Action = "manage"  // CRUD + list
	ActionExecute Action = "execute" // verify chain, run jobs

	// Session lifecycle actions
	ActionApprove Action = "approve" // approve / decline
	ActionPay     Action = "pay"     // submit payment proof
	ActionVerify  Action = "verify"  // confirm payment
	ActionAttend  Action = "attend"  // start / end call
	ActionCancel  Action = "cancel"

	// RBAC-specific actions
	ActionGrant  Action = "grant"
	ActionRevoke Action = "revoke"
)

const (
	WildcardAction Action = "*"
)

var KnownActions = map[Action]struct{}{
	ActionCreate: {}, ActionRead: {}, ActionUpdate: {}, ActionDelete: {}, ActionList: {},
	ActionManage: {}, ActionExecute: {},
	ActionApprove: {}, ActionPay: {}, ActionVerify: {}, ActionAttend: {}, ActionCancel: {},
	ActionGrant: {}, ActionRevoke: {},
}

// ----------------------------
// Resources
// ----------------------------

const (
	WildcardResource Resource = "*"

	ResourceAvailability Resource = "availability"
	ResourceBlockedDate  Resource = "blocked_date"
	ResourceSlot         Resource = "slot"
	ResourceSession      Resource = "session"
	ResourcePaymentProof Resource = "payment_proof"

	ResourceAudit  Resource = "audit"
	ResourceRBAC   Resource = "rbac"
	ResourceSystem Resource = "system"
)

var KnownResources = map[Resource]struct{}{
	ResourceAvailability: {}, ResourceBlockedDate: {}, ResourceSlot: {},
	ResourceSession: {}, ResourcePaymentProof: {},
	ResourceAudit: {}, ResourceRBAC: {}, ResourceSystem: {},
}

// ----------------------------
// Roles
// ----------------------------
//
// These are the "policy subjects" we assign to users via grouping policies.
// Every role lives in the sys domain.

const (
	WildcardRole Role = "*"

	RoleAdmin     Role = "role:admin"
	RoleTherapist Role = "role:therapist"
	RoleClient    Role = "role:client"

	// RoleSystem is held by service principals such as the payment gateway.
	RoleSystem Role = "role:system"
)

var KnownRoles = map[Role]struct{}{
	RoleAdmin:     {},
	RoleTherapist: {},
	RoleClient:    {},
	RoleSystem:    {},
}

// ----------------------------
// Domains
// ----------------------------

const (
	DomainSys Domain = "sys"

	WildcardDomain Domain = "*"
)

// IsValidDomain checks whether d is a recognised domain string.
func IsValidDomain(d Domain) bool {
	return d == DomainSys || d == WildcardDomain
}

// ----------------------------
// Casbin tuple helpers
// ----------------------------

type PolicyEffect string

const (
	EffectAllow PolicyEffect = "allow"
	EffectDeny  PolicyEffect = "deny"
)

// GroupSubject is the g.sub in Casbin: a concrete principal id (user_id or service_id).
type GroupSubject string

// Grouping rows: g, user_id, role, domain
type GroupingPolicy struct {
	Subject GroupSubject
	Role    Role
	Domain  Domain
}

// Permission rows: p, role, domain, resource, action, eft
type PermissionPolicy struct {
	Subject Role
	Domain  Domain
	Object  Resource
	Action  Action
	Effect  PolicyEffect
}
