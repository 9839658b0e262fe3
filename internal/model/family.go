package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	RoleParent = "parent"
	RoleChild  = "child"
)

type Family struct {
	ID                     int64     `json:"id"`
	Name                   string    `json:"name"`
	FamilyCode             string    `json:"family_code"`
	LastAssignedChildIndex int       `json:"last_assigned_child_index"`
	IsActive               bool      `json:"is_active"`
	CreatedAt              time.Time `json:"created_at"`
}

type User struct {
	ID        int64           `json:"id"`
	FamilyID  int64           `json:"family_id"`
	Name      string          `json:"name"`
	Role      string          `json:"role"`
	Earnings  decimal.Decimal `json:"earnings"`
	IsActive  bool            `json:"is_active"`
	CreatedAt time.Time       `json:"created_at"`
}
