package domain

// Role identifies the part an actor plays in the approval workflow.
type Role string

const (
	RoleRequester Role = "REQUESTER"
	RoleDept      Role = "DEPT_HEAD"
	RoleTreasury  Role = "TREASURY"
	RoleSystem    Role = "SYSTEM"
)

// RoleBindings maps the fixed approver identities to their roles.
// Every other sender is a requester.
type RoleBindings struct {
	DeptHeadID string
	TreasuryID string
}

// RoleOf resolves the role bound to a sender identity.
func (b RoleBindings) RoleOf(senderID string) Role {
	switch {
	case senderID == "":
		return RoleRequester
	case senderID == b.DeptHeadID:
		return RoleDept
	case senderID == b.TreasuryID:
		return RoleTreasury
	default:
		return RoleRequester
	}
}

// RecipientFor returns the identity that receives messages addressed to role.
// Requester recipients are per-ticket and are resolved by the caller.
func (b RoleBindings) RecipientFor(role Role) string {
	switch role {
	case RoleDept:
		return b.DeptHeadID
	case RoleTreasury:
		return b.TreasuryID
	}
	return ""
}
