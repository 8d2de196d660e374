package bank

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/tellerline/teller/internal/model"
)

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID     string
	Role       model.Role
	CustomerID string
}

// SystemActor is used by the CLI for maintenance tasks.
var SystemActor = Actor{UserID: "system", Role: model.RoleAdmin}

// IsAdmin reports whether the actor is staff.
func (a Actor) IsAdmin() bool { return a.Role == model.RoleAdmin }

func (a Actor) requireAdmin() error {
	if !a.IsAdmin() {
		return fmt.Errorf("%w: admin role required", ErrForbidden)
	}
	return nil
}

func (a Actor) requireCustomer() error {
	if a.Role != model.RoleCustomer || a.CustomerID == "" {
		return fmt.Errorf("%w: customer role required", ErrForbidden)
	}
	return nil
}

// canSee reports whether the actor may read acct.
func (a Actor) canSee(acct model.Account) bool {
	if a.IsAdmin() {
		return true
	}
	return !acct.IsSystem() && acct.OwnedBy(a.CustomerID)
}

func newID() string { return uuid.NewString() }
