package businessflow

import (
	"testing"

	"github.com/amirphl/Kitsune/app/dto"
	"github.com/amirphl/Kitsune/models"
	testingutil "github.com/amirphl/Kitsune/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestCreateStaffUser(t *testing.T) {
	env := newFlowEnv(t)
	flow := NewUserFlow(env.userRepo, 4)
	admin := env.admin(t)

	info, err := flow.CreateStaffUser(env.ctx, admin, &dto.CreateStaffUserRequest{
		Username: " analyst ",
		Email:    "Analyst@Example.com",
		Password: testingutil.TestPassword,
		Role:     "operations",
	})
	require.NoError(t, err)
	assert.Equal(t, "analyst", info.Username)
	assert.Equal(t, "analyst@example.com", info.Email)
	assert.Equal(t, "operations", info.Role)
	assert.Nil(t, info.AffiliateID)

	stored, err := env.userRepo.ByUsername(env.ctx, "analyst")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, models.UserRoleOperations, stored.Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte(testingutil.TestPassword)))

	t.Run("duplicate email", func(t *testing.T) {
		_, err := flow.CreateStaffUser(env.ctx, admin, &dto.CreateStaffUserRequest{
			Username: "analyst2",
			Email:    "analyst@example.com",
			Password: testingutil.TestPassword,
			Role:     "admin",
		})
		assert.True(t, IsUsernameTaken(err))
	})

	t.Run("affiliate role is refused", func(t *testing.T) {
		_, err := flow.CreateStaffUser(env.ctx, admin, &dto.CreateStaffUserRequest{
			Username: "partner",
			Email:    "partner@example.com",
			Password: testingutil.TestPassword,
			Role:     "affiliate",
		})
		assert.True(t, IsValidation(err))
	})
}

func TestListUsersByRole(t *testing.T) {
	env := newFlowEnv(t)
	flow := NewUserFlow(env.userRepo, 4)
	admin := env.admin(t)
	_, err := env.fixtures.CreateTestUser(models.UserRoleOperations)
	require.NoError(t, err)
	_, err = env.fixtures.CreateTestAffiliate("LISTED")
	require.NoError(t, err)

	all, err := flow.ListUsers(env.ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	admins, err := flow.ListUsers(env.ctx, "admin")
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, admin.UserID, admins[0].ID)

	_, err = flow.ListUsers(env.ctx, "root")
	assert.True(t, IsValidation(err))
}
