package client

import (
	"context"
	"sync"

	"finance-tracker/internal/dashboard"
	"finance-tracker/internal/models"
)

type transactionAPI interface {
	ListTransactions(ctx context.Context, userID string) ([]models.Transaction, error)
	CreateTransaction(ctx context.Context, in TransactionInput) (*models.Transaction, error)
	UpdateTransaction(ctx context.Context, id string, in TransactionInput) (*models.Transaction, error)
	DeleteTransaction(ctx context.Context, id string) error
}

// Dashboard keeps the fetched transactions of one user together with the
// current filter. Every mutation is followed by a full re-fetch; nothing is
// patched locally. A failed call leaves the previous state in place.
type Dashboard struct {
	api    transactionAPI
	userID string

	mu      sync.Mutex
	records []models.Transaction
	filter  dashboard.Filter
	loaded  bool
}

// NewDashboard creates an empty Dashboard for userID.
func NewDashboard(api transactionAPI, userID string) *Dashboard {
	return &Dashboard{api: api, userID: userID}
}

// Refresh re-fetches the transaction list.
func (d *Dashboard) Refresh(ctx context.Context) error {
	records, err := d.api.ListTransactions(ctx, d.userID)
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.records = records
	d.loaded = true
	d.mu.Unlock()
	return nil
}

// Loaded reports whether a fetch has succeeded yet.
func (d *Dashboard) Loaded() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loaded
}

// SetFilter replaces the filter used by View.
func (d *Dashboard) SetFilter(f dashboard.Filter) {
	d.mu.Lock()
	d.filter = f
	d.mu.Unlock()
}

// View derives the current view from the last fetched list.
func (d *Dashboard) View() dashboard.View {
	d.mu.Lock()
	records, filter := d.records, d.filter
	d.mu.Unlock()
	return dashboard.Build(records, filter)
}

// Create adds a transaction owned by the dashboard's user and re-fetches.
func (d *Dashboard) Create(ctx context.Context, in TransactionInput) (*models.Transaction, error) {
	if in.UserID == nil {
		in.UserID = String(d.userID)
	}
	t, err := d.api.CreateTransaction(ctx, in)
	if err != nil {
		return nil, err
	}
	return t, d.Refresh(ctx)
}

// Update changes a transaction and re-fetches.
func (d *Dashboard) Update(ctx context.Context, id string, in TransactionInput) (*models.Transaction, error) {
	t, err := d.api.UpdateTransaction(ctx, id, in)
	if err != nil {
		return nil, err
	}
	return t, d.Refresh(ctx)
}

// Delete removes a transaction and re-fetches.
func (d *Dashboard) Delete(ctx context.Context, id string) error {
	if err := d.api.DeleteTransaction(ctx, id); err != nil {
		return err
	}
	return d.Refresh(ctx)
}
