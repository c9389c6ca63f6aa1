package models

import "time"

// Role names used by the route guards.
const (
	RoleAdministrator = "administrator"
	RoleAmil          = "amil"
	RoleViewer        = "viewer"
)

// Role represents user roles with numeric primary key
type Role struct {
	ID          uint `gorm:"primaryKey"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Name        string `gorm:"size:32;uniqueIndex;not null"`
	Description string `gorm:"size:255"`
}

// DefaultRoles is the seeded master list.
var DefaultRoles = []Role{
	{Name: RoleAdministrator, Description: "full access"},
	{Name: RoleAmil, Description: "records penerimaan and distribusi"},
	{Name: RoleViewer, Description: "read-only access"},
}
