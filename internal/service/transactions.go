// Package service holds the transaction use cases: input validation and
// scoping every operation to the acting user.
package service

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"finance-tracker/internal/models"
)

// ErrForbidden is returned when a caller names an owner other than itself.
var ErrForbidden = errors.New("forbidden: user does not match session")

// Store is the persistence the service needs. storage.DB implements it.
type Store interface {
	CreateTransaction(ctx context.Context, t *models.Transaction) error
	GetTransaction(ctx context.Context, id string) (*models.Transaction, error)
	ListTransactionsByUser(ctx context.Context, userID string) ([]models.Transaction, error)
	UpdateTransaction(ctx context.Context, t *models.Transaction) error
	DeleteTransaction(ctx context.Context, id, userID string) error
}

// TransactionFields is caller input for create and update. A nil field was
// not supplied. Amount is the raw number text so that malformed values can be
// reported as validation errors.
type TransactionFields struct {
	UserID      *string
	Type        *string
	Amount      *string
	Category    *string
	Date        *string
	Description *string
}

// TransactionService implements the transaction operations.
type TransactionService struct {
	store Store
}

// NewTransactionService creates a TransactionService.
func NewTransactionService(store Store) *TransactionService {
	return &TransactionService{store: store}
}

// Create validates in and stores a new record owned by actorID.
func (s *TransactionService) Create(ctx context.Context, actorID string, in TransactionFields) (*models.Transaction, error) {
	if err := checkOwner(actorID, in.UserID); err != nil {
		return nil, err
	}

	t := &models.Transaction{UserID: actorID}
	var verr models.ValidationError
	for _, f := range []struct {
		name  string
		value *string
	}{
		{"type", in.Type},
		{"amount", in.Amount},
		{"category", in.Category},
		{"date", in.Date},
	} {
		if f.value == nil || strings.TrimSpace(*f.value) == "" {
			verr.Add(f.name, "is required")
		}
	}
	applyFields(t, in, &verr)
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	if err := s.store.CreateTransaction(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// ListByUser returns the records of userID, which must be the actor.
func (s *TransactionService) ListByUser(ctx context.Context, actorID, userID string) ([]models.Transaction, error) {
	if err := checkOwner(actorID, &userID); err != nil {
		return nil, err
	}
	return s.store.ListTransactionsByUser(ctx, actorID)
}

// Update applies the supplied fields to the record id. Records owned by
// someone else are reported as not found.
func (s *TransactionService) Update(ctx context.Context, actorID, id string, in TransactionFields) (*models.Transaction, error) {
	if err := checkOwner(actorID, in.UserID); err != nil {
		return nil, err
	}

	t, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.UserID != actorID {
		return nil, models.ErrNotFound
	}

	var verr models.ValidationError
	applyFields(t, in, &verr)
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	if err := s.store.UpdateTransaction(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Delete removes the record id if it is owned by the actor.
func (s *TransactionService) Delete(ctx context.Context, actorID, id string) error {
	return s.store.DeleteTransaction(ctx, id, actorID)
}

func checkOwner(actorID string, userID *string) error {
	if actorID == "" {
		return ErrForbidden
	}
	if userID != nil && strings.TrimSpace(*userID) != "" && strings.TrimSpace(*userID) != actorID {
		return ErrForbidden
	}
	return nil
}

// applyFields copies every supplied, updatable field onto t. Each field is
// validated on its own; problems are collected in verr. Fields that were
// reported missing already are skipped.
func applyFields(t *models.Transaction, in TransactionFields, verr *models.ValidationError) {
	if in.Type != nil && strings.TrimSpace(*in.Type) != "" {
		if kind, ok := models.ParseKind(*in.Type); ok {
			t.Kind = kind
		} else {
			verr.Add("type", "must be income or expense")
		}
	} else if in.Type != nil && !hasField(verr, "type") {
		verr.Add("type", "must be income or expense")
	}

	if in.Amount != nil && strings.TrimSpace(*in.Amount) != "" {
		amount, err := decimal.NewFromString(strings.TrimSpace(*in.Amount))
		switch {
		case err != nil:
			verr.Add("amount", "must be a number")
		case amount.IsNegative():
			verr.Add("amount", "must not be negative")
		case !models.AmountInRange(amount):
			verr.Add("amount", "is out of range")
		default:
			t.Amount = amount
		}
	} else if in.Amount != nil && !hasField(verr, "amount") {
		verr.Add("amount", "must be a number")
	}

	if in.Category != nil {
		category := strings.TrimSpace(*in.Category)
		if category != "" {
			t.Category = category
		} else if !hasField(verr, "category") {
			verr.Add("category", "must not be empty")
		}
	}

	if in.Date != nil && strings.TrimSpace(*in.Date) != "" {
		if date, err := models.ParseDate(*in.Date); err == nil {
			t.Date = date
		} else {
			verr.Add("date", "must be a date (YYYY-MM-DD)")
		}
	} else if in.Date != nil && !hasField(verr, "date") {
		verr.Add("date", "must be a date (YYYY-MM-DD)")
	}

	if in.Description != nil {
		t.Description = strings.TrimSpace(*in.Description)
	}
}

func hasField(verr *models.ValidationError, field string) bool {
	for _, f := range verr.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}
