package users

import (
	stderrors "errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/memtensor/memos-users/pkg/errors"
)

// Repository provides data access for users, cubes, and their associations
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a repository over an opened database handle
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// User operations

// CreateUser inserts a new user row
func (r *Repository) CreateUser(user *User) (*User, error) {
	if err := r.db.Create(user).Error; err != nil {
		return nil, translateError(err, fmt.Sprintf("failed to create user %s", user.UserName))
	}
	return user, nil
}

// GetUser retrieves an active user by ID, returning nil when absent
func (r *Repository) GetUser(userID string) (*User, error) {
	var user User
	if err := r.db.Where("user_id = ? AND is_active = ?", userID, true).First(&user).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, translateError(err, "failed to get user")
	}
	return &user, nil
}

// GetUserByName retrieves an active user by username, returning nil when absent
func (r *Repository) GetUserByName(userName string) (*User, error) {
	var user User
	if err := r.db.Where("user_name = ? AND is_active = ?", userName, true).First(&user).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, translateError(err, "failed to get user by name")
	}
	return &user, nil
}

// ListUsers returns all active users
func (r *Repository) ListUsers() ([]User, error) {
	var users []User
	if err := r.db.Where("is_active = ?", true).Order("created_at").Find(&users).Error; err != nil {
		return nil, translateError(err, "failed to list users")
	}
	return users, nil
}

// UpdateUserName renames an active user. The new name must not collide with
// another user's name.
func (r *Repository) UpdateUserName(userID, userName string) error {
	result := r.db.Model(&User{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Update("user_name", userName)
	if result.Error != nil {
		return translateError(result.Error, fmt.Sprintf("failed to rename user to %s", userName))
	}
	if result.RowsAffected == 0 {
		return errors.NewNotFoundError("user not found")
	}
	return nil
}

// ValidateUser checks if a user exists and is active
func (r *Repository) ValidateUser(userID string) (bool, error) {
	var count int64
	if err := r.db.Model(&User{}).Where("user_id = ? AND is_active = ?", userID, true).Count(&count).Error; err != nil {
		return false, translateError(err, "failed to validate user")
	}
	return count > 0, nil
}

// DeactivateUser soft deletes a user. The root user is protected.
func (r *Repository) DeactivateUser(userID string) error {
	result := r.db.Model(&User{}).
		Where("user_id = ? AND role != ?", userID, RoleRoot).
		Update("is_active", false)
	if result.Error != nil {
		return translateError(result.Error, "failed to delete user")
	}
	if result.RowsAffected == 0 {
		return errors.NewNotFoundError("user not found or cannot delete root user")
	}
	return nil
}

// Cube operations

// CreateCube inserts a cube and grants the owner access in one transaction
func (r *Repository) CreateCube(cube *Cube) (*Cube, error) {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(cube).Error; err != nil {
			return err
		}
		association := UserCubeAssociation{
			UserID: cube.OwnerID,
			CubeID: cube.CubeID,
		}
		return tx.Create(&association).Error
	})
	if err != nil {
		return nil, translateError(err, fmt.Sprintf("failed to create cube %s", cube.CubeName))
	}
	return cube, nil
}

// GetCube retrieves an active cube by ID, returning nil when absent
func (r *Repository) GetCube(cubeID string) (*Cube, error) {
	var cube Cube
	if err := r.db.Where("cube_id = ? AND is_active = ?", cubeID, true).First(&cube).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, translateError(err, "failed to get cube")
	}
	return &cube, nil
}

// GetCubesByOwner returns all active cubes owned by a user
func (r *Repository) GetCubesByOwner(ownerID string) ([]Cube, error) {
	var cubes []Cube
	if err := r.db.Where("owner_id = ? AND is_active = ?", ownerID, true).
		Order("created_at DESC").
		Find(&cubes).Error; err != nil {
		return nil, translateError(err, "failed to get cubes by owner")
	}
	return cubes, nil
}

// GetUserCubes returns all active cubes a user has access to, owned or shared
func (r *Repository) GetUserCubes(userID string) ([]Cube, error) {
	var cubes []Cube
	if err := r.db.Joins("JOIN user_cube_association ON cubes.cube_id = user_cube_association.cube_id").
		Where("user_cube_association.user_id = ? AND cubes.is_active = ?", userID, true).
		Order("cubes.created_at DESC").
		Find(&cubes).Error; err != nil {
		return nil, translateError(err, "failed to get user cubes")
	}
	return cubes, nil
}

// DeactivateCube soft deletes a cube
func (r *Repository) DeactivateCube(cubeID string) error {
	result := r.db.Model(&Cube{}).Where("cube_id = ?", cubeID).Update("is_active", false)
	if result.Error != nil {
		return translateError(result.Error, "failed to delete cube")
	}
	if result.RowsAffected == 0 {
		return errors.NewNotFoundError("cube not found")
	}
	return nil
}

// Association operations

// AddUserToCube grants a user access to a cube. Adding an existing
// association is a no-op.
func (r *Repository) AddUserToCube(userID, cubeID string) error {
	var existing UserCubeAssociation
	err := r.db.Where("user_id = ? AND cube_id = ?", userID, cubeID).First(&existing).Error
	if err == nil {
		return nil
	}
	if !stderrors.Is(err, gorm.ErrRecordNotFound) {
		return translateError(err, "failed to check existing association")
	}

	association := UserCubeAssociation{
		UserID: userID,
		CubeID: cubeID,
	}
	if err := r.db.Create(&association).Error; err != nil {
		// A concurrent grant is equivalent to success
		if stderrors.Is(err, gorm.ErrDuplicatedKey) {
			return nil
		}
		return translateError(err, "failed to add user to cube")
	}
	return nil
}

// RemoveUserFromCube revokes a user's access to a cube
func (r *Repository) RemoveUserFromCube(userID, cubeID string) error {
	result := r.db.Where("user_id = ? AND cube_id = ?", userID, cubeID).Delete(&UserCubeAssociation{})
	if result.Error != nil {
		return translateError(result.Error, "failed to remove user from cube")
	}
	return nil
}

// ValidateUserCubeAccess checks if a user has access to a cube
func (r *Repository) ValidateUserCubeAccess(userID, cubeID string) (bool, error) {
	valid, err := r.ValidateUser(userID)
	if err != nil {
		return false, err
	}
	if !valid {
		return false, nil
	}

	cube, err := r.GetCube(cubeID)
	if err != nil {
		return false, err
	}
	if cube == nil {
		return false, nil
	}

	if cube.OwnerID == userID {
		return true, nil
	}

	var count int64
	if err := r.db.Model(&UserCubeAssociation{}).
		Where("user_id = ? AND cube_id = ?", userID, cubeID).
		Count(&count).Error; err != nil {
		return false, translateError(err, "failed to validate cube access")
	}
	return count > 0, nil
}

// HealthCheck performs a database connectivity check
func (r *Repository) HealthCheck() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return errors.NewInternalError("failed to get database instance", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return errors.NewConnectivityError("database ping failed", err)
	}
	return nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return errors.NewInternalError("failed to get database instance", err)
	}
	return sqlDB.Close()
}

// translateError maps GORM's portable error sentinels into the package's
// error taxonomy.
func translateError(err error, message string) error {
	switch {
	case stderrors.Is(err, gorm.ErrDuplicatedKey):
		return errors.NewAlreadyExistsError(message, err)
	case stderrors.Is(err, gorm.ErrForeignKeyViolated):
		return errors.NewConstraintViolationError(message, err)
	case stderrors.Is(err, gorm.ErrCheckConstraintViolated):
		return errors.NewConstraintViolationError(message, err)
	default:
		return errors.NewInternalError(message, err)
	}
}
