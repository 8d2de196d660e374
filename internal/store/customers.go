package store

import (
	"context"
	"fmt"

	"github.com/tellerline/teller/internal/model"
)

const customerColumns = `id, full_name, email, phone, address, created_at`

// InsertCustomer adds a customer. A duplicate email yields ErrConflict.
func (q *Queries) InsertCustomer(ctx context.Context, c model.Customer) error {
	_, err := q.exec(ctx, `INSERT INTO customers (`+customerColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.FullName, c.Email, c.Phone, c.Address, c.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("inserting customer: %w", err)
	}
	return nil
}

// GetCustomer looks a customer up by ID.
func (q *Queries) GetCustomer(ctx context.Context, id string) (model.Customer, error) {
	var c model.Customer
	err := q.get(ctx, &c, `SELECT `+customerColumns+` FROM customers WHERE id = ?`, id)
	return c, err
}

// GetCustomerByEmail looks a customer up by email.
func (q *Queries) GetCustomerByEmail(ctx context.Context, email string) (model.Customer, error) {
	var c model.Customer
	err := q.get(ctx, &c, `SELECT `+customerColumns+` FROM customers WHERE email = ?`, email)
	return c, err
}

// ListCustomers returns customers oldest first.
func (q *Queries) ListCustomers(ctx context.Context, limit, offset int) ([]model.Customer, error) {
	var out []model.Customer
	query := page(`SELECT `+customerColumns+` FROM customers ORDER BY created_at, id`, limit, offset)
	if err := q.selectAll(ctx, &out, query); err != nil {
		return nil, fmt.Errorf("listing customers: %w", err)
	}
	return out, nil
}

const userColumns = `id, email, password_hash, role, customer_id, created_at`

// InsertUser adds a login. A duplicate email yields ErrConflict.
func (q *Queries) InsertUser(ctx context.Context, u model.User) error {
	_, err := q.exec(ctx, `INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.PasswordHash, u.Role, u.CustomerID, u.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

// GetUser looks a login up by ID.
func (q *Queries) GetUser(ctx context.Context, id string) (model.User, error) {
	var u model.User
	err := q.get(ctx, &u, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return u, err
}

// GetUserByEmail looks a login up by email.
func (q *Queries) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	var u model.User
	err := q.get(ctx, &u, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return u, err
}
