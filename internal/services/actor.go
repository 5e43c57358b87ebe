package services

import (
	"fmt"

	"github.com/sjperalta/fintera-contracts/internal/models"
)

// Actor identifies who performs an operation
type Actor struct {
	UserID    uint
	Email     string
	Role      string
	IPAddress string
	UserAgent string
}

// SystemActor is used by scheduled jobs
var SystemActor = Actor{Email: "system", Role: models.RoleAdmin}

// Ref is the identifier written to audit trails and status histories
func (a Actor) Ref() string {
	if a.Email != "" {
		return a.Email
	}
	if a.UserID != 0 {
		return fmt.Sprintf("user:%d", a.UserID)
	}
	return "system"
}

// IsAdmin returns true for administrators and scheduled jobs
func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}
