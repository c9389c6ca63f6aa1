package models

import (
	"time"
)

// User is a back-office operator (amil or administrator). Every ledger
// mutation is attributed to the user that issued it.
type User struct {
	ID             uint `gorm:"primaryKey" json:"id"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      *time.Time `gorm:"index" json:"-"`
	Username       string     `gorm:"size:255;not null;unique" json:"username"`
	FullName       string     `gorm:"size:255" json:"full_name"`
	HashedPassword []byte     `gorm:"not null" json:"-"`
	RoleID         *uint      `gorm:"index" json:"role_id"`
	Role           Role       `gorm:"foreignKey:RoleID;references:ID" json:"-"`
}
