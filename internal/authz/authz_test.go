package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"outreach/internal/apperr"
)

func TestRequires(t *testing.T) {
	admin := Caller{UserID: "u-admin", Role: RoleAdmin}
	member := Caller{UserID: "u-member", Role: RoleMember}
	odd := Caller{UserID: "u-odd", Role: "billing"}

	assert.True(t, Requires(admin, MergeConversations).Allowed)
	assert.True(t, Requires(admin, ActAsAdmin).Allowed)
	assert.True(t, Requires(member, ExportAudience).Allowed)

	d := Requires(member, MergeConversations)
	assert.False(t, d.Allowed)
	assert.ErrorIs(t, d.Err(), apperr.ErrForbidden)

	assert.ErrorIs(t, Requires(odd, ExportAudience).Err(), apperr.ErrForbidden)
	assert.ErrorIs(t, Requires(Caller{}, ExportAudience).Err(), apperr.ErrUnauthorized)
	assert.NoError(t, Requires(admin, ManageConversations).Err())
}

func TestCan(t *testing.T) {
	assert.False(t, Can(Caller{UserID: "u", Role: RoleMember}, ActAsAdmin))
	assert.True(t, Can(Caller{UserID: "u", Role: RoleAdmin}, ActAsAdmin))
}
