package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind is the direction of a transaction.
type Kind string

const (
	KindIncome  Kind = "income"
	KindExpense Kind = "expense"
)

// Amounts are bounded so that a stored value always has a short decimal
// representation.
const MaxAmountScale = 8

// MaxAmount is the exclusive upper bound of a transaction amount.
var MaxAmount = decimal.New(1, 15)

// AmountInRange reports whether d has at most MaxAmountScale decimal places
// and is below MaxAmount. The exponent is checked before any comparison that
// would rescale d.
func AmountInRange(d decimal.Decimal) bool {
	exp := d.Exponent()
	if exp < -MaxAmountScale || exp > 15 {
		return false
	}
	return d.Abs().LessThan(MaxAmount)
}

// ParseKind returns the Kind named by s, or false if s names none.
func ParseKind(s string) (Kind, bool) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindIncome:
		return KindIncome, true
	case KindExpense:
		return KindExpense, true
	}
	return "", false
}

// Transaction represents a single income or expense record owned by one user.
type Transaction struct {
	ID          string          `json:"id"`
	UserID      string          `json:"userId"`
	Kind        Kind            `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
	Date        Date            `json:"date"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Normalize trims the free-text fields in place.
func (t *Transaction) Normalize() {
	t.UserID = strings.TrimSpace(t.UserID)
	t.Category = strings.TrimSpace(t.Category)
	t.Description = strings.TrimSpace(t.Description)
}

// Validate checks the record-level invariants every stored transaction must hold.
func (t *Transaction) Validate() error {
	var verr ValidationError
	if t.UserID == "" {
		verr.Add("userId", "is required")
	}
	if t.Kind != KindIncome && t.Kind != KindExpense {
		verr.Add("type", "must be income or expense")
	}
	if t.Amount.IsNegative() {
		verr.Add("amount", "must not be negative")
	} else if !AmountInRange(t.Amount) {
		verr.Add("amount", "is out of range")
	}
	if strings.TrimSpace(t.Category) == "" {
		verr.Add("category", "is required")
	}
	if t.Date.IsZero() {
		verr.Add("date", "is required")
	}
	return verr.OrNil()
}
