package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleRank(t *testing.T) {
	assert.Greater(t, RoleRank(RoleAdministrator), RoleRank(RoleStaff))
	assert.Greater(t, RoleRank(RoleStaff), RoleRank(RoleStudent))
	assert.Equal(t, 0, RoleRank(Role("teacher")))
}

func TestRoleAtLeast(t *testing.T) {
	assert.True(t, RoleAtLeast(RoleAdministrator, RoleStaff))
	assert.True(t, RoleAtLeast(RoleStaff, RoleStaff))
	assert.False(t, RoleAtLeast(RoleStudent, RoleStaff))
	// Unknown roles never satisfy any requirement.
	assert.False(t, RoleAtLeast(Role("teacher"), RoleStudent))
}

func TestValidateRole(t *testing.T) {
	assert.NoError(t, ValidateRole(RoleStudent))
	assert.NoError(t, ValidateRole(RoleStaff))
	assert.NoError(t, ValidateRole(RoleAdministrator))
	assert.Error(t, ValidateRole(Role("superuser")))
	assert.Error(t, ValidateRole(Role("")))
}

func TestPromotedRole(t *testing.T) {
	next, err := PromotedRole(RoleStudent)
	require.NoError(t, err)
	assert.Equal(t, RoleStaff, next)

	next, err = PromotedRole(RoleStaff)
	require.NoError(t, err)
	assert.Equal(t, RoleAdministrator, next)

	_, err = PromotedRole(RoleAdministrator)
	assert.Error(t, err)

	_, err = PromotedRole(Role("teacher"))
	assert.Error(t, err)
}

func TestValidateUserID(t *testing.T) {
	valid := []string{"alice", "user@school.test", "a.b-c_d", "U123"}
	for _, id := range valid {
		assert.NoError(t, ValidateUserID(id), id)
	}

	invalid := []string{"", "has space", "semi;colon", "slash/y"}
	for _, id := range invalid {
		assert.Error(t, ValidateUserID(id), id)
	}
}
