package model

import (
	"time"

	"gorm.io/gorm"
)

// User roles. Token issuance lives in the external login service; the API only
// reads the role claim and mirrors known users for statistics.
const (
	RoleCitizen  = "citizen"
	RoleOperator = "operator"
)

// User represents a system user. Users are owned by the external auth
// collaborator and referenced by id everywhere else.
type User struct {
	ID        string         `json:"id" gorm:"primaryKey;size:36"`
	Name      string         `json:"name" gorm:"size:100"`
	Email     string         `json:"email" gorm:"uniqueIndex;size:100"`
	Phone     string         `json:"phone" gorm:"size:20"`
	Role      string         `json:"role" gorm:"size:20;default:'citizen'"` // citizen, operator
	Active    bool           `json:"active" gorm:"default:true"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}
