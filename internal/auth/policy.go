// Package auth implements role-based access control for queue operations.
// Bearer tokens are verified by an external identity service; the role it
// returns is checked against a static operation policy.
package auth

// Role is a principal's role as reported by the identity service.
type Role string

const (
	RoleAdministrator Role = "administrator"
	RoleAgent         Role = "agent"
	RoleSecretary     Role = "secretary"
)

// Operation names a protected endpoint.
type Operation string

const (
	OpPush      Operation = "push"
	OpPushBatch Operation = "push-n"
	OpPull      Operation = "pull"
	OpPullBatch Operation = "pull-n"
	OpList      Operation = "list"
	OpCreate    Operation = "create"
	OpDelete    Operation = "delete"
	OpAudit     Operation = "audit"
)

// Policy maps each protected operation to the roles allowed to invoke it.
// Operations absent from the policy are unprotected.
type Policy map[Operation][]Role

// DefaultPolicy returns the access policy for the queue endpoints.
func DefaultPolicy() Policy {
	return Policy{
		OpPush:      {RoleAgent, RoleAdministrator},
		OpPushBatch: {RoleAgent, RoleAdministrator},
		OpPull:      {RoleAgent, RoleAdministrator},
		OpPullBatch: {RoleAgent, RoleAdministrator},
		OpList:      {RoleAgent, RoleAdministrator},
		OpCreate:    {RoleAdministrator},
		OpDelete:    {RoleAdministrator},
		OpAudit:     {RoleAdministrator},
	}
}

// Protected reports whether op requires a verified principal.
func (p Policy) Protected(op Operation) bool {
	_, ok := p[op]
	return ok
}

// Allows reports whether role may invoke op.
func (p Policy) Allows(op Operation, role Role) bool {
	for _, r := range p[op] {
		if r == role {
			return true
		}
	}
	return false
}
