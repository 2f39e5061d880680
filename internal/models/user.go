package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	RoleUser       = "user"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "superadmin"
)

// User is a chama member. The three totals are cached sums of the member's
// completed transactions and are only moved by settlement.
type User struct {
	ID                 int64           `json:"id" db:"id" example:"1"`
	Name               string          `json:"name" db:"name" example:"Jane Wanjiku"`
	Email              string          `json:"email" db:"email" example:"jane@example.com"`
	Phone              string          `json:"phone" db:"phone" example:"254712345678"`
	Role               string          `json:"role" db:"role" example:"user"`
	TotalContributions decimal.Decimal `json:"totalContributions" db:"total_contributions"`
	TotalSavings       decimal.Decimal `json:"totalSavings" db:"total_savings"`
	TotalLoans         decimal.Decimal `json:"totalLoans" db:"total_loans"`
	ConsecutiveMisses  int             `json:"consecutiveMisses" db:"consecutive_misses"`
	CreatedAt          time.Time       `json:"createdAt" db:"created_at"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin || u.Role == RoleSuperAdmin
}
