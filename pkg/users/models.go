package users

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserRole represents the different roles a user can have in the system
type UserRole string

const (
	RoleRoot  UserRole = "root"  // Root user, cannot be deleted
	RoleAdmin UserRole = "admin" // Admin user with management permissions
	RoleUser  UserRole = "USER"  // Regular user, the column default
	RoleGuest UserRole = "guest" // Guest user with limited permissions
)

// String returns the string representation of UserRole
func (r UserRole) String() string {
	return string(r)
}

// IsValid checks if the UserRole is a valid role
func (r UserRole) IsValid() bool {
	switch r {
	case RoleRoot, RoleAdmin, RoleUser, RoleGuest:
		return true
	default:
		return false
	}
}

// User represents a user in the system
type User struct {
	UserID    string    `gorm:"primaryKey;type:varchar(255)" json:"user_id"`
	UserName  string    `gorm:"type:varchar(255);not null;unique;index:idx_users_user_name" json:"user_name"`
	Role      UserRole  `gorm:"type:varchar(20);not null;default:'USER'" json:"role"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
	IsActive  bool      `gorm:"not null;default:true" json:"is_active"`

	// Relationships
	OwnedCubes []Cube `gorm:"foreignKey:OwnerID;references:UserID" json:"owned_cubes,omitempty"`
}

// TableName overrides the default table name
func (User) TableName() string {
	return "users"
}

// BeforeCreate hook for User model
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.UserID == "" {
		u.UserID = uuid.New().String()
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	now := time.Now()
	u.CreatedAt = now
	u.UpdatedAt = now
	return nil
}

// BeforeUpdate hook for User model
func (u *User) BeforeUpdate(tx *gorm.DB) error {
	u.UpdatedAt = time.Now()
	return nil
}

// Cube represents a memory cube that can be owned and shared
type Cube struct {
	CubeID    string    `gorm:"primaryKey;type:varchar(255)" json:"cube_id"`
	CubeName  string    `gorm:"type:varchar(255);not null" json:"cube_name"`
	CubePath  string    `gorm:"type:varchar(1024)" json:"cube_path,omitempty"` // Local path or remote repo
	OwnerID   string    `gorm:"type:varchar(255);not null;index:idx_cubes_owner_id" json:"owner_id"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
	IsActive  bool      `gorm:"not null;default:true" json:"is_active"`

	// Relationships
	Owner User `gorm:"foreignKey:OwnerID;references:UserID" json:"owner,omitempty"`
}

// TableName overrides the default table name
func (Cube) TableName() string {
	return "cubes"
}

// BeforeCreate hook for Cube model
func (c *Cube) BeforeCreate(tx *gorm.DB) error {
	if c.CubeID == "" {
		c.CubeID = uuid.New().String()
	}
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now
	return nil
}

// BeforeUpdate hook for Cube model
func (c *Cube) BeforeUpdate(tx *gorm.DB) error {
	c.UpdatedAt = time.Now()
	return nil
}

// UserCubeAssociation represents the many-to-many relationship between users
// and cubes, keyed by the (user_id, cube_id) pair.
type UserCubeAssociation struct {
	UserID    string    `gorm:"primaryKey;type:varchar(255)" json:"user_id"`
	CubeID    string    `gorm:"primaryKey;type:varchar(255)" json:"cube_id"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`

	// Relationships
	User User `gorm:"foreignKey:UserID;references:UserID" json:"-"`
	Cube Cube `gorm:"foreignKey:CubeID;references:CubeID" json:"-"`
}

// TableName overrides GORM's pluralized default to match the original schema
func (UserCubeAssociation) TableName() string {
	return "user_cube_association"
}

// BeforeCreate hook for UserCubeAssociation
func (uca *UserCubeAssociation) BeforeCreate(tx *gorm.DB) error {
	uca.CreatedAt = time.Now()
	return nil
}
