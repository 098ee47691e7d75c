package users

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memtensor/memos-users/pkg/config"
	"github.com/memtensor/memos-users/pkg/errors"
)

func testConfig(t *testing.T) *config.BackendConfig {
	t.Helper()

	cfg := config.Default()
	cfg.SQLite.DBPath = filepath.Join(t.TempDir(), "memos_users.db")
	return cfg
}

func setupTestManager(t *testing.T) *Manager {
	t.Helper()

	manager, err := NewManager(testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() {
		manager.Close()
	})
	return manager
}

func TestNewManager_RootUserCreated(t *testing.T) {
	manager := setupTestManager(t)

	root, err := manager.GetUser("root")
	require.NoError(t, err)
	require.NotNil(t, root)
	assert.Equal(t, "root", root.UserName)
	assert.Equal(t, RoleRoot, root.Role)
	assert.True(t, root.IsActive)
}

func TestNewManager_RootUserInitIdempotent(t *testing.T) {
	cfg := testConfig(t)

	manager, err := NewManager(cfg)
	require.NoError(t, err)
	require.NoError(t, manager.Close())

	// Reopening against the same database must not fail or duplicate root
	manager, err = NewManager(cfg)
	require.NoError(t, err)
	defer manager.Close()

	users, err := manager.ListUsers()
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestManager_CreateUser(t *testing.T) {
	manager := setupTestManager(t)

	userID, err := manager.CreateUser("alice", RoleAdmin, "")
	require.NoError(t, err)
	assert.NotEmpty(t, userID)

	user, err := manager.GetUser(userID)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "alice", user.UserName)
	assert.Equal(t, RoleAdmin, user.Role)
	assert.True(t, user.IsActive)
	assert.False(t, user.CreatedAt.IsZero())
	assert.False(t, user.UpdatedAt.IsZero())
}

func TestManager_CreateUser_ExistingNameReturnsSameID(t *testing.T) {
	manager := setupTestManager(t)

	first, err := manager.CreateUser("alice", RoleUser, "")
	require.NoError(t, err)

	second, err := manager.CreateUser("alice", RoleUser, "")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	users, err := manager.ListUsers()
	require.NoError(t, err)
	assert.Len(t, users, 2) // root + alice
}

func TestManager_CreateUser_ExplicitID(t *testing.T) {
	manager := setupTestManager(t)

	userID, err := manager.CreateUser("alice", RoleUser, "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", userID)
}

func TestManager_CreateUser_Validation(t *testing.T) {
	manager := setupTestManager(t)

	_, err := manager.CreateUser("", RoleUser, "")
	assert.True(t, errors.IsValidation(err))

	_, err = manager.CreateUser("bob", UserRole("superuser"), "")
	assert.True(t, errors.IsValidation(err))
}

func TestManager_CreateUser_DefaultRole(t *testing.T) {
	manager := setupTestManager(t)

	userID, err := manager.CreateUser("alice", "", "")
	require.NoError(t, err)

	user, err := manager.GetUser(userID)
	require.NoError(t, err)
	assert.Equal(t, RoleUser, user.Role)
}

func TestManager_GetUserByName(t *testing.T) {
	manager := setupTestManager(t)

	userID, err := manager.CreateUser("alice", RoleUser, "")
	require.NoError(t, err)

	user, err := manager.GetUserByName("alice")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, userID, user.UserID)

	missing, err := manager.GetUserByName("nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestManager_UpdateUserName(t *testing.T) {
	manager := setupTestManager(t)

	userID, err := manager.CreateUser("alice", RoleUser, "")
	require.NoError(t, err)

	require.NoError(t, manager.UpdateUserName(userID, "alice-renamed"))

	user, err := manager.GetUser(userID)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "alice-renamed", user.UserName)

	// The old name no longer resolves
	user, err = manager.GetUserByName("alice")
	require.NoError(t, err)
	assert.Nil(t, user)

	// Renaming to the current name is a no-op
	require.NoError(t, manager.UpdateUserName(userID, "alice-renamed"))
}

func TestManager_UpdateUserName_Validation(t *testing.T) {
	manager := setupTestManager(t)

	aliceID, err := manager.CreateUser("alice", RoleUser, "")
	require.NoError(t, err)
	_, err = manager.CreateUser("bob", RoleUser, "")
	require.NoError(t, err)

	err = manager.UpdateUserName(aliceID, "")
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))

	err = manager.UpdateUserName(aliceID, "bob")
	require.Error(t, err)
	assert.True(t, errors.IsAlreadyExists(err))

	err = manager.UpdateUserName("missing", "carol")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestManager_DeleteUser(t *testing.T) {
	manager := setupTestManager(t)

	userID, err := manager.CreateUser("alice", RoleUser, "")
	require.NoError(t, err)

	require.NoError(t, manager.DeleteUser(userID))

	user, err := manager.GetUser(userID)
	require.NoError(t, err)
	assert.Nil(t, user)

	valid, err := manager.ValidateUser(userID)
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestManager_DeleteUser_RootProtected(t *testing.T) {
	manager := setupTestManager(t)

	err := manager.DeleteUser("root")
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestManager_CreateCube(t *testing.T) {
	manager := setupTestManager(t)

	ownerID, err := manager.CreateUser("alice", RoleUser, "")
	require.NoError(t, err)

	cubeID, err := manager.CreateCube("alice-notes", ownerID, "/data/cubes/alice", "")
	require.NoError(t, err)
	assert.NotEmpty(t, cubeID)

	cube, err := manager.GetCube(cubeID)
	require.NoError(t, err)
	require.NotNil(t, cube)
	assert.Equal(t, "alice-notes", cube.CubeName)
	assert.Equal(t, "/data/cubes/alice", cube.CubePath)
	assert.Equal(t, ownerID, cube.OwnerID)

	// Creating a cube grants the owner access
	access, err := manager.ValidateUserCubeAccess(ownerID, cubeID)
	require.NoError(t, err)
	assert.True(t, access)
}

func TestManager_CreateCube_OwnerMustExist(t *testing.T) {
	manager := setupTestManager(t)

	_, err := manager.CreateCube("orphan", "missing-user", "", "")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestManager_CubeSharing(t *testing.T) {
	manager := setupTestManager(t)

	ownerID, err := manager.CreateUser("alice", RoleUser, "")
	require.NoError(t, err)
	guestID, err := manager.CreateUser("bob", RoleUser, "")
	require.NoError(t, err)

	cubeID, err := manager.CreateCube("shared-notes", ownerID, "", "")
	require.NoError(t, err)

	access, err := manager.ValidateUserCubeAccess(guestID, cubeID)
	require.NoError(t, err)
	assert.False(t, access)

	require.NoError(t, manager.AddUserToCube(guestID, cubeID))

	access, err = manager.ValidateUserCubeAccess(guestID, cubeID)
	require.NoError(t, err)
	assert.True(t, access)

	// Granting twice is a no-op
	require.NoError(t, manager.AddUserToCube(guestID, cubeID))

	cubes, err := manager.GetUserCubes(guestID)
	require.NoError(t, err)
	require.Len(t, cubes, 1)
	assert.Equal(t, cubeID, cubes[0].CubeID)

	require.NoError(t, manager.RemoveUserFromCube(guestID, cubeID))

	access, err = manager.ValidateUserCubeAccess(guestID, cubeID)
	require.NoError(t, err)
	assert.False(t, access)
}

func TestManager_RemoveUserFromCube_OwnerProtected(t *testing.T) {
	manager := setupTestManager(t)

	ownerID, err := manager.CreateUser("alice", RoleUser, "")
	require.NoError(t, err)
	cubeID, err := manager.CreateCube("notes", ownerID, "", "")
	require.NoError(t, err)

	err = manager.RemoveUserFromCube(ownerID, cubeID)
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestManager_GetCubesByOwner(t *testing.T) {
	manager := setupTestManager(t)

	aliceID, err := manager.CreateUser("alice", RoleUser, "")
	require.NoError(t, err)
	bobID, err := manager.CreateUser("bob", RoleUser, "")
	require.NoError(t, err)

	_, err = manager.CreateCube("alice-1", aliceID, "", "")
	require.NoError(t, err)
	_, err = manager.CreateCube("alice-2", aliceID, "", "")
	require.NoError(t, err)
	_, err = manager.CreateCube("bob-1", bobID, "", "")
	require.NoError(t, err)

	cubes, err := manager.GetCubesByOwner(aliceID)
	require.NoError(t, err)
	assert.Len(t, cubes, 2)

	cubes, err = manager.GetCubesByOwner(bobID)
	require.NoError(t, err)
	assert.Len(t, cubes, 1)
}

func TestManager_DeleteCube(t *testing.T) {
	manager := setupTestManager(t)

	ownerID, err := manager.CreateUser("alice", RoleUser, "")
	require.NoError(t, err)
	cubeID, err := manager.CreateCube("notes", ownerID, "", "")
	require.NoError(t, err)

	require.NoError(t, manager.DeleteCube(cubeID))

	cube, err := manager.GetCube(cubeID)
	require.NoError(t, err)
	assert.Nil(t, cube)

	err = manager.DeleteCube(cubeID)
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

// The full lifecycle: create rows, re-run the bootstrap by reopening the
// manager, and verify both rows and schema objects survive unchanged.
func TestManager_BootstrapRerunPreservesData(t *testing.T) {
	cfg := testConfig(t)

	manager, err := NewManager(cfg)
	require.NoError(t, err)

	u1, err := manager.CreateUser("alice", RoleUser, "u1")
	require.NoError(t, err)
	c1, err := manager.CreateCube("alice-notes", u1, "", "c1")
	require.NoError(t, err)
	require.NoError(t, manager.Close())

	// Reopen: NewManager runs Bootstrap again against the same database
	manager, err = NewManager(cfg)
	require.NoError(t, err)
	defer manager.Close()

	user, err := manager.GetUser(u1)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "alice", user.UserName)

	cube, err := manager.GetCube(c1)
	require.NoError(t, err)
	require.NotNil(t, cube)
	assert.Equal(t, u1, cube.OwnerID)

	access, err := manager.ValidateUserCubeAccess(u1, c1)
	require.NoError(t, err)
	assert.True(t, access)
}

func TestManager_HealthCheck(t *testing.T) {
	manager := setupTestManager(t)
	assert.NoError(t, manager.HealthCheck())
}
