// Package authz maps caller roles onto capabilities so handlers ask one
// question, Requires(caller, capability), instead of comparing role strings.
package authz

import (
	"fmt"

	"outreach/internal/apperr"
)

// Role is the role string carried in a caller's token.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Capability names an action a caller may perform.
type Capability string

const (
	ExportAudience      Capability = "audience:export"
	ManageAudiences     Capability = "audience:manage"
	ActAsAdmin          Capability = "admin:act"
	MergeConversations  Capability = "conversation:merge"
	ManageConversations Capability = "conversation:manage"
	SendMessage         Capability = "conversation:send"
)

var grants = map[Role]map[Capability]bool{
	RoleMember: {
		ExportAudience:  true,
		ManageAudiences: true,
		SendMessage:     true,
	},
	RoleAdmin: {
		ExportAudience:      true,
		ManageAudiences:     true,
		ActAsAdmin:          true,
		MergeConversations:  true,
		ManageConversations: true,
		SendMessage:         true,
	},
}

// Caller is an already authenticated identity.
type Caller struct {
	UserID string
	Role   Role
}

// Authenticated reports whether the caller carries an identity.
func (c Caller) Authenticated() bool {
	return c.UserID != ""
}

// Decision is the outcome of a capability check.
type Decision struct {
	Allowed bool
	Reason  error
}

// Err returns nil when allowed, otherwise an error wrapping
// apperr.ErrUnauthorized or apperr.ErrForbidden.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return d.Reason
}

// Requires decides whether caller holds capability.
func Requires(caller Caller, capability Capability) Decision {
	if !caller.Authenticated() {
		return Decision{Reason: apperr.ErrUnauthorized}
	}
	if grants[caller.Role][capability] {
		return Decision{Allowed: true}
	}
	return Decision{Reason: fmt.Errorf("%w: role %q lacks %s", apperr.ErrForbidden, caller.Role, capability)}
}

// Can is shorthand for Requires(caller, capability).Allowed.
func Can(caller Caller, capability Capability) bool {
	return Requires(caller, capability).Allowed
}
