package users

import (
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/memtensor/memos-users/pkg/config"
	"github.com/memtensor/memos-users/pkg/errors"
)

// Manager is the user management service. Constructing one bootstraps the
// schema and seeds the root user, so row operations always find their
// container in place.
type Manager struct {
	cfg        *config.BackendConfig
	repository *Repository
	logger     *slog.Logger
}

// NewManager opens the configured backend, bootstraps the schema, and
// initializes the root user. The MOS_USER_MANAGER environment variable (or
// its legacy alias) overrides the configured backend.
func NewManager(cfg *config.BackendConfig) (*Manager, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	cfg, err := resolveBackend(cfg)
	if err != nil {
		return nil, err
	}

	db, err := Open(cfg)
	if err != nil {
		return nil, err
	}

	return NewManagerWithDB(cfg, db)
}

// NewManagerWithDB builds a manager over an already opened database handle
func NewManagerWithDB(cfg *config.BackendConfig, db *gorm.DB) (*Manager, error) {
	schemaName := ""
	if cfg.Backend == config.BackendPostgres {
		schemaName = cfg.Postgres.Schema
	}

	if err := Bootstrap(db, schemaName); err != nil {
		return nil, err
	}

	m := &Manager{
		cfg:        cfg,
		repository: NewRepository(db),
		logger:     slog.Default().With("component", "users"),
	}

	if err := m.initRootUser(cfg.UserID()); err != nil {
		return nil, err
	}

	m.logger.Info("user manager initialized", "backend", cfg.Backend)
	return m, nil
}

// initRootUser seeds the root user when absent
func (m *Manager) initRootUser(userID string) error {
	existing, err := m.repository.GetUser(userID)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	root := &User{
		UserID:   userID,
		UserName: userID,
		Role:     RoleRoot,
		IsActive: true,
	}
	if _, err := m.repository.CreateUser(root); err != nil {
		// A concurrent initialization already created it
		if errors.IsAlreadyExists(err) {
			return nil
		}
		return err
	}
	m.logger.Info("root user created", "user_id", userID)
	return nil
}

// User operations

// CreateUser creates a new user and returns its ID. When a user with the
// same name already exists, the existing user's ID is returned.
func (m *Manager) CreateUser(userName string, role UserRole, userID string) (string, error) {
	if userName == "" {
		return "", errors.NewValidationError("user_name is required")
	}
	if role == "" {
		role = RoleUser
	}
	if !role.IsValid() {
		return "", errors.NewValidationError(fmt.Sprintf("invalid role: %s", role))
	}

	existing, err := m.repository.GetUserByName(userName)
	if err != nil {
		return "", err
	}
	if existing != nil {
		m.logger.Warn("user already exists", "user_name", userName)
		return existing.UserID, nil
	}

	user := &User{
		UserID:   userID,
		UserName: userName,
		Role:     role,
		IsActive: true,
	}
	created, err := m.repository.CreateUser(user)
	if err != nil {
		return "", err
	}
	return created.UserID, nil
}

// GetUser retrieves a user by ID
func (m *Manager) GetUser(userID string) (*User, error) {
	return m.repository.GetUser(userID)
}

// GetUserByName retrieves a user by username
func (m *Manager) GetUserByName(userName string) (*User, error) {
	return m.repository.GetUserByName(userName)
}

// UpdateUserName renames a user. Renaming to the user's current name is a
// no-op; renaming to another user's name fails.
func (m *Manager) UpdateUserName(userID, userName string) error {
	if userName == "" {
		return errors.NewValidationError("user_name is required")
	}

	user, err := m.repository.GetUser(userID)
	if err != nil {
		return err
	}
	if user == nil {
		return errors.NewNotFoundError("user not found")
	}
	if user.UserName == userName {
		return nil
	}
	return m.repository.UpdateUserName(userID, userName)
}

// ValidateUser checks if a user exists and is active
func (m *Manager) ValidateUser(userID string) (bool, error) {
	return m.repository.ValidateUser(userID)
}

// ListUsers returns all active users
func (m *Manager) ListUsers() ([]User, error) {
	return m.repository.ListUsers()
}

// DeleteUser soft deletes a user and revokes their cube associations. The
// root user cannot be deleted.
func (m *Manager) DeleteUser(userID string) error {
	user, err := m.repository.GetUser(userID)
	if err != nil {
		return err
	}
	if user == nil {
		return errors.NewNotFoundError("user not found")
	}
	if user.Role == RoleRoot {
		return errors.NewValidationError("cannot delete root user")
	}
	return m.repository.DeactivateUser(userID)
}

// Cube operations

// CreateCube creates a new cube owned by ownerID and returns its ID. The
// owner must exist and be active.
func (m *Manager) CreateCube(cubeName, ownerID, cubePath, cubeID string) (string, error) {
	if cubeName == "" {
		return "", errors.NewValidationError("cube_name is required")
	}
	if ownerID == "" {
		return "", errors.NewValidationError("owner_id is required")
	}

	owner, err := m.repository.GetUser(ownerID)
	if err != nil {
		return "", err
	}
	if owner == nil {
		return "", errors.NewNotFoundError(fmt.Sprintf("owner user %s not found", ownerID))
	}

	cube := &Cube{
		CubeID:   cubeID,
		CubeName: cubeName,
		CubePath: cubePath,
		OwnerID:  ownerID,
		IsActive: true,
	}
	created, err := m.repository.CreateCube(cube)
	if err != nil {
		return "", err
	}
	return created.CubeID, nil
}

// GetCube retrieves a cube by ID
func (m *Manager) GetCube(cubeID string) (*Cube, error) {
	return m.repository.GetCube(cubeID)
}

// GetCubesByOwner returns all active cubes owned by a user
func (m *Manager) GetCubesByOwner(ownerID string) ([]Cube, error) {
	return m.repository.GetCubesByOwner(ownerID)
}

// GetUserCubes returns all cubes accessible by a user
func (m *Manager) GetUserCubes(userID string) ([]Cube, error) {
	valid, err := m.repository.ValidateUser(userID)
	if err != nil {
		return nil, err
	}
	if !valid {
		return nil, errors.NewNotFoundError("user not found or inactive")
	}
	return m.repository.GetUserCubes(userID)
}

// ValidateUserCubeAccess checks if a user has access to a cube
func (m *Manager) ValidateUserCubeAccess(userID, cubeID string) (bool, error) {
	return m.repository.ValidateUserCubeAccess(userID, cubeID)
}

// AddUserToCube grants a user access to a cube
func (m *Manager) AddUserToCube(userID, cubeID string) error {
	user, err := m.repository.GetUser(userID)
	if err != nil {
		return err
	}
	if user == nil {
		return errors.NewNotFoundError("user not found")
	}

	cube, err := m.repository.GetCube(cubeID)
	if err != nil {
		return err
	}
	if cube == nil {
		return errors.NewNotFoundError("cube not found")
	}

	return m.repository.AddUserToCube(userID, cubeID)
}

// RemoveUserFromCube revokes a user's access to a cube. The owner's access
// cannot be revoked.
func (m *Manager) RemoveUserFromCube(userID, cubeID string) error {
	cube, err := m.repository.GetCube(cubeID)
	if err != nil {
		return err
	}
	if cube == nil {
		return errors.NewNotFoundError("cube not found")
	}
	if cube.OwnerID == userID {
		return errors.NewValidationError("cannot remove owner from cube")
	}
	return m.repository.RemoveUserFromCube(userID, cubeID)
}

// DeleteCube soft deletes a cube
func (m *Manager) DeleteCube(cubeID string) error {
	cube, err := m.repository.GetCube(cubeID)
	if err != nil {
		return err
	}
	if cube == nil {
		return errors.NewNotFoundError("cube not found")
	}
	return m.repository.DeactivateCube(cubeID)
}

// HealthCheck performs a connectivity check against the backend
func (m *Manager) HealthCheck() error {
	return m.repository.HealthCheck()
}

// Close closes the manager and its database connection
func (m *Manager) Close() error {
	return m.repository.Close()
}

// Config returns the resolved configuration
func (m *Manager) Config() *config.BackendConfig {
	return m.cfg
}
