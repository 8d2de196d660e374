package bank

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tellerline/teller/internal/auth"
	"github.com/tellerline/teller/internal/model"
	"github.com/tellerline/teller/internal/store"
)

// RegisterInput is a self-service signup.
type RegisterInput struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone,omitempty"`
	Address  string `json:"address,omitempty"`
}

// Session is a signed-in user.
type Session struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
	User      model.User `json:"user"`
}

// Profile is what a signed-in user sees about themselves.
type Profile struct {
	User     model.User      `json:"user"`
	Customer *model.Customer `json:"customer,omitempty"`
}

func normalizeEmail(s string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("%w: email %q is not valid", ErrInvalidInput, s)
	}
	return strings.ToLower(addr.Address), nil
}

// RegisterCustomer creates a customer and their login. A customer record
// that was imported without a login is claimed instead of duplicated.
func (s *Service) RegisterCustomer(ctx context.Context, in RegisterInput) (model.Customer, error) {
	name := strings.TrimSpace(in.FullName)
	if name == "" {
		return model.Customer{}, fmt.Errorf("%w: full name is required", ErrInvalidInput)
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return model.Customer{}, err
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return model.Customer{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	now := s.clock()
	var cust model.Customer
	err = s.store.InTx(ctx, func(q *store.Queries) error {
		if _, err := q.GetUserByEmail(ctx, email); err == nil {
			return fmt.Errorf("%w: email %s is already registered", ErrConflict, email)
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		existing, err := q.GetCustomerByEmail(ctx, email)
		switch {
		case err == nil:
			cust = existing
		case errors.Is(err, store.ErrNotFound):
			cust = model.Customer{
				ID:        newID(),
				FullName:  name,
				Email:     email,
				Phone:     strings.TrimSpace(in.Phone),
				Address:   strings.TrimSpace(in.Address),
				CreatedAt: now,
			}
			if err := q.InsertCustomer(ctx, cust); err != nil {
				return err
			}
		default:
			return err
		}

		return q.InsertUser(ctx, model.User{
			ID:           newID(),
			Email:        email,
			PasswordHash: hash,
			Role:         model.RoleCustomer,
			CustomerID:   cust.ID,
			CreatedAt:    now,
		})
	})
	if err != nil {
		return model.Customer{}, fmt.Errorf("registering %s: %w", email, err)
	}
	s.log.Info("customer registered", zap.String("customer_id", cust.ID))
	return cust, nil
}

// CreateAdmin adds a staff login.
func (s *Service) CreateAdmin(ctx context.Context, email, password string) (model.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return model.User{}, err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return model.User{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	u := model.User{
		ID:           newID(),
		Email:        email,
		PasswordHash: hash,
		Role:         model.RoleAdmin,
		CreatedAt:    s.clock(),
	}
	err = s.store.InTx(ctx, func(q *store.Queries) error {
		if err := q.InsertUser(ctx, u); err != nil {
			return err
		}
		return s.audit(ctx, q, SystemActor, "admin.create", u.ID, email)
	})
	if err != nil {
		return model.User{}, fmt.Errorf("creating admin %s: %w", email, err)
	}
	return u, nil
}

// Login checks credentials and issues a session token.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	if s.tokens == nil {
		return Session{}, errors.New("token issuer not configured")
	}
	email, err := normalizeEmail(email)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrUnauthenticated, auth.ErrBadCredentials)
	}
	u, err := s.store.Queries().GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return Session{}, fmt.Errorf("%w: %v", ErrUnauthenticated, auth.RejectPassword(password))
	}
	if err != nil {
		return Session{}, fmt.Errorf("loading user: %w", err)
	}
	if err := auth.CheckPassword(u.PasswordHash, password); err != nil {
		s.log.Info("login failed", zap.String("user_id", u.ID))
		return Session{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	token, exp, err := s.tokens.Issue(u)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresAt: exp, User: u}, nil
}

// Authenticate turns a bearer token into an Actor.
func (s *Service) Authenticate(token string) (Actor, error) {
	if s.tokens == nil {
		return Actor{}, errors.New("token issuer not configured")
	}
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return Actor{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	return Actor{UserID: claims.Subject, Role: claims.Role, CustomerID: claims.CustomerID}, nil
}

// Profile returns the caller's user record and, for customers, their
// customer record.
func (s *Service) Profile(ctx context.Context, actor Actor) (Profile, error) {
	q := s.store.Queries()
	u, err := q.GetUser(ctx, actor.UserID)
	if err != nil {
		return Profile{}, fmt.Errorf("loading user: %w", err)
	}
	p := Profile{User: u}
	if u.CustomerID != "" {
		c, err := q.GetCustomer(ctx, u.CustomerID)
		if err != nil {
			return Profile{}, fmt.Errorf("loading customer: %w", err)
		}
		p.Customer = &c
	}
	return p, nil
}

// GetCustomer returns a customer. Customers may only read themselves.
func (s *Service) GetCustomer(ctx context.Context, actor Actor, customerID string) (model.Customer, error) {
	if !actor.IsAdmin() && actor.CustomerID != customerID {
		return model.Customer{}, ErrForbidden
	}
	c, err := s.store.Queries().GetCustomer(ctx, customerID)
	if err != nil {
		return model.Customer{}, fmt.Errorf("customer %s: %w", customerID, err)
	}
	return c, nil
}

// ListCustomers pages through all customers. Admin only.
func (s *Service) ListCustomers(ctx context.Context, actor Actor, limit, offset int) ([]model.Customer, error) {
	if err := actor.requireAdmin(); err != nil {
		return nil, err
	}
	return s.store.Queries().ListCustomers(ctx, clampPage(limit), offset)
}

// ImportCustomer inserts a customer record carried over from the legacy
// backend. The customer has no login until they register with the same email.
func (s *Service) ImportCustomer(ctx context.Context, actor Actor, c model.Customer) (model.Customer, error) {
	if err := actor.requireAdmin(); err != nil {
		return model.Customer{}, err
	}
	email, err := normalizeEmail(c.Email)
	if err != nil {
		return model.Customer{}, err
	}
	c.Email = email
	c.FullName = strings.TrimSpace(c.FullName)
	if c.FullName == "" {
		return model.Customer{}, fmt.Errorf("%w: full name is required", ErrInvalidInput)
	}
	if c.ID == "" {
		c.ID = newID()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.clock()
	}
	err = s.store.InTx(ctx, func(q *store.Queries) error {
		if err := q.InsertCustomer(ctx, c); err != nil {
			return err
		}
		return s.audit(ctx, q, actor, "customer.import", c.ID, email)
	})
	if err != nil {
		return model.Customer{}, fmt.Errorf("importing customer %s: %w", email, err)
	}
	return c, nil
}
