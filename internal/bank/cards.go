package bank

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tellerline/teller/internal/id"
	"github.com/tellerline/teller/internal/model"
	"github.com/tellerline/teller/internal/money"
	"github.com/tellerline/teller/internal/store"
)

// Card number prefixes per product.
const (
	debitPANPrefix  = "4"
	creditPANPrefix = "5"
)

// CardInput is a card application. CreditLimit is only read for credit
// cards; zero means the bank's default.
type CardInput struct {
	AccountID   string          `json:"account_id"`
	Kind        model.CardKind  `json:"kind"`
	CreditLimit decimal.Decimal `json:"credit_limit"`
}

// ApplyCard files a card application against one of the customer's active
// accounts.
func (s *Service) ApplyCard(ctx context.Context, actor Actor, in CardInput) (model.CardApplication, error) {
	if err := actor.requireCustomer(); err != nil {
		return model.CardApplication{}, err
	}
	if !in.Kind.Valid() {
		return model.CardApplication{}, fmt.Errorf("%w: card kind %q", ErrInvalidInput, in.Kind)
	}
	limit := decimal.Zero
	if in.Kind == model.CardCredit && !in.CreditLimit.IsZero() {
		if err := money.Validate(in.CreditLimit); err != nil {
			return model.CardApplication{}, err
		}
		limit = in.CreditLimit
	}

	a, err := s.GetAccount(ctx, actor, in.AccountID)
	if err != nil {
		return model.CardApplication{}, err
	}
	if err := requireActive(&a); err != nil {
		return model.CardApplication{}, err
	}

	c := model.CardApplication{
		ID:          newID(),
		CustomerID:  actor.CustomerID,
		AccountID:   a.ID,
		Kind:        in.Kind,
		Status:      model.DecisionPending,
		CreditLimit: limit,
		CreatedAt:   s.clock(),
	}
	if err := s.store.Queries().InsertCard(ctx, c); err != nil {
		return model.CardApplication{}, fmt.Errorf("applying for card: %w", err)
	}
	s.log.Info("card application filed", zap.String("card_id", c.ID), zap.String("customer_id", c.CustomerID))
	return c, nil
}

// ListCards returns the customer's card applications, or all for admins.
func (s *Service) ListCards(ctx context.Context, actor Actor, status model.Decision) ([]model.CardApplication, error) {
	f := store.ReviewFilter{Status: status}
	if !actor.IsAdmin() {
		if err := actor.requireCustomer(); err != nil {
			return nil, err
		}
		f.CustomerID = actor.CustomerID
	}
	return s.store.Queries().ListCards(ctx, f)
}

// ApproveCard issues the card. Only the masked number is kept.
func (s *Service) ApproveCard(ctx context.Context, actor Actor, cardID string) (model.CardApplication, error) {
	if err := actor.requireAdmin(); err != nil {
		return model.CardApplication{}, err
	}
	var out model.CardApplication
	err := s.inTx(ctx, "approve_card", func(q *store.Queries) error {
		c, err := q.GetCard(ctx, cardID)
		if err != nil {
			return fmt.Errorf("card %s: %w", cardID, err)
		}
		if c.Status != model.DecisionPending {
			return fmt.Errorf("%w: card application is already %s", ErrInvalidState, c.Status)
		}
		a, err := q.GetAccount(ctx, c.AccountID, false)
		if err != nil {
			return fmt.Errorf("account %s: %w", c.AccountID, err)
		}
		if err := requireActive(&a); err != nil {
			return err
		}

		prefix := debitPANPrefix
		if c.Kind == model.CardCredit {
			prefix = creditPANPrefix
			if c.CreditLimit.IsZero() {
				c.CreditLimit = s.opts.DefaultCreditLimit
			}
		}
		pan, err := id.NewPAN(prefix)
		if err != nil {
			return err
		}
		now := s.clock()
		c.Status = model.DecisionApproved
		c.MaskedPAN = id.MaskPAN(pan)
		c.DecidedBy = actor.UserID
		c.DecidedAt = &now
		if err := q.DecideCard(ctx, c); err != nil {
			return err
		}
		out = c
		return s.audit(ctx, q, actor, "card.approve", c.ID, c.MaskedPAN)
	})
	if err != nil {
		return model.CardApplication{}, fmt.Errorf("approving card %s: %w", cardID, err)
	}
	s.log.Info("card approved", zap.String("card_id", cardID), zap.String("admin", actor.UserID))
	return out, nil
}

// RejectCard declines a pending card application.
func (s *Service) RejectCard(ctx context.Context, actor Actor, cardID, note string) (model.CardApplication, error) {
	if err := actor.requireAdmin(); err != nil {
		return model.CardApplication{}, err
	}
	var out model.CardApplication
	err := s.inTx(ctx, "reject_card", func(q *store.Queries) error {
		c, err := q.GetCard(ctx, cardID)
		if err != nil {
			return fmt.Errorf("card %s: %w", cardID, err)
		}
		if c.Status != model.DecisionPending {
			return fmt.Errorf("%w: card application is already %s", ErrInvalidState, c.Status)
		}
		now := s.clock()
		c.Status = model.DecisionRejected
		c.DecidedBy = actor.UserID
		c.DecidedAt = &now
		if err := q.DecideCard(ctx, c); err != nil {
			return err
		}
		out = c
		return s.audit(ctx, q, actor, "card.reject", c.ID, strings.TrimSpace(note))
	})
	if err != nil {
		return model.CardApplication{}, fmt.Errorf("rejecting card %s: %w", cardID, err)
	}
	return out, nil
}
