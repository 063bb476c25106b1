package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"finance-tracker/internal/logging"
	"finance-tracker/internal/models"
	"finance-tracker/internal/service"
	"finance-tracker/internal/session"
)

// Transaction is the API response model for a transaction.
type Transaction struct {
	ID          string    `json:"id" doc:"Transaction UUID"`
	UserID      string    `json:"userId" doc:"Owner id"`
	Type        string    `json:"type" enum:"income,expense" doc:"Direction of the transaction"`
	Amount      string    `json:"amount" doc:"Non-negative decimal amount"`
	Category    string    `json:"category" doc:"Category label"`
	Date        string    `json:"date" format:"date" doc:"Calendar day the transaction occurred"`
	Description string    `json:"description" doc:"Free text description, may be empty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func newTransaction(t *models.Transaction) Transaction {
	return Transaction{
		ID:          t.ID,
		UserID:      t.UserID,
		Type:        string(t.Kind),
		Amount:      t.Amount.String(),
		Category:    t.Category,
		Date:        t.Date.String(),
		Description: t.Description,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

// AmountInput accepts an amount sent either as a JSON number or as a numeric
// string. The raw text is kept so the service can reject malformed values
// with a field level message.
type AmountInput struct {
	raw string
}

// NewAmountInput returns an AmountInput holding s.
func NewAmountInput(s string) *AmountInput {
	return &AmountInput{raw: s}
}

func (a AmountInput) String() string {
	return a.raw
}

func (a *AmountInput) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		return json.Unmarshal(b, &a.raw)
	}
	a.raw = string(b)
	return nil
}

func (a AmountInput) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.raw)
}

// Schema accepts any JSON value so that bad amounts reach validation and are
// reported like every other invalid field.
func (AmountInput) Schema(r huma.Registry) *huma.Schema {
	return &huma.Schema{
		Description: "Non-negative decimal amount, as a number or a numeric string",
		Examples:    []any{12.5, "12.50"},
	}
}

// TransactionBody is the request body for creating or updating a transaction.
// Every field is optional at the schema level; the service decides what is
// required for each operation. Unknown fields are ignored.
type TransactionBody struct {
	_           struct{}     `json:"-" additionalProperties:"true"`
	UserID      *string      `json:"userId,omitempty" doc:"Owner id; must match the logged in user when given"`
	Type        *string      `json:"type,omitempty" doc:"income or expense"`
	Amount      *AmountInput `json:"amount,omitempty"`
	Category    *string      `json:"category,omitempty" doc:"Category label"`
	Date        *string      `json:"date,omitempty" doc:"YYYY-MM-DD or an RFC 3339 timestamp"`
	Description *string      `json:"description,omitempty" doc:"Optional free text"`
}

func (b TransactionBody) fields() service.TransactionFields {
	f := service.TransactionFields{
		UserID:      b.UserID,
		Type:        b.Type,
		Category:    b.Category,
		Date:        b.Date,
		Description: b.Description,
	}
	if b.Amount != nil {
		raw := b.Amount.String()
		f.Amount = &raw
	}
	return f
}

type CreateTransactionInput struct {
	Body TransactionBody
}

type TransactionOutput struct {
	Body Transaction
}

type ListTransactionsInput struct {
	UserID string `path:"userId" doc:"Owner id; must be the logged in user"`
}

type ListTransactionsOutput struct {
	Body []Transaction
}

type UpdateTransactionInput struct {
	ID   string `path:"id" doc:"Transaction UUID"`
	Body TransactionBody
}

type DeleteTransactionInput struct {
	ID string `path:"id" doc:"Transaction UUID"`
}

type SuccessBody struct {
	Success bool `json:"success"`
}

type DeleteTransactionOutput struct {
	Body SuccessBody
}

// transactionService is the interface for the transaction use cases.
type transactionService interface {
	Create(ctx context.Context, actorID string, in service.TransactionFields) (*models.Transaction, error)
	ListByUser(ctx context.Context, actorID, userID string) ([]models.Transaction, error)
	Update(ctx context.Context, actorID, id string, in service.TransactionFields) (*models.Transaction, error)
	Delete(ctx context.Context, actorID, id string) error
}

// TransactionHandler serves the transaction CRUD endpoints.
type TransactionHandler struct {
	TransactionService transactionService
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(svc transactionService) *TransactionHandler {
	return &TransactionHandler{TransactionService: svc}
}

// Register registers the transaction endpoints with the Huma API.
func (h *TransactionHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-transaction",
		Method:        http.MethodPost,
		Path:          "/api/transactions",
		Summary:       "Create transaction",
		Description:   "Creates a transaction owned by the logged in user.",
		Tags:          []string{"Transactions"},
		DefaultStatus: http.StatusCreated,
	}, h.create)

	huma.Register(api, huma.Operation{
		OperationID: "list-transactions",
		Method:      http.MethodGet,
		Path:        "/api/transactions/{userId}",
		Summary:     "List transactions",
		Description: "Returns every transaction of the user, newest first.",
		Tags:        []string{"Transactions"},
	}, h.list)

	huma.Register(api, huma.Operation{
		OperationID: "update-transaction",
		Method:      http.MethodPut,
		Path:        "/api/transactions/{id}",
		Summary:     "Update transaction",
		Description: "Replaces the given fields of a transaction. Only type, amount, category, date and description can change.",
		Tags:        []string{"Transactions"},
	}, h.update)

	huma.Register(api, huma.Operation{
		OperationID: "delete-transaction",
		Method:      http.MethodDelete,
		Path:        "/api/transactions/{id}",
		Summary:     "Delete transaction",
		Tags:        []string{"Transactions"},
	}, h.delete)
}

func actor(ctx context.Context) (string, error) {
	sess := session.FromContext(ctx)
	if sess == nil || sess.Identity.ID == "" {
		return "", huma.Error401Unauthorized("not authenticated")
	}
	logging.Add(ctx, "userId", sess.Identity.ID)
	return sess.Identity.ID, nil
}

func (h *TransactionHandler) create(ctx context.Context, input *CreateTransactionInput) (*TransactionOutput, error) {
	actorID, err := actor(ctx)
	if err != nil {
		return nil, err
	}

	stopTimer := logging.Time(ctx, "createTransactionMs")
	t, err := h.TransactionService.Create(ctx, actorID, input.Body.fields())
	stopTimer()
	if err != nil {
		return nil, apiError(err, "failed to create transaction")
	}

	logging.Add(ctx, "transactionId", t.ID)
	return &TransactionOutput{Body: newTransaction(t)}, nil
}

func (h *TransactionHandler) list(ctx context.Context, input *ListTransactionsInput) (*ListTransactionsOutput, error) {
	actorID, err := actor(ctx)
	if err != nil {
		return nil, err
	}

	stopTimer := logging.Time(ctx, "listTransactionsMs")
	transactions, err := h.TransactionService.ListByUser(ctx, actorID, input.UserID)
	stopTimer()
	if err != nil {
		return nil, apiError(err, "failed to list transactions")
	}

	logging.Add(ctx, "transactionCount", len(transactions))

	resp := make([]Transaction, len(transactions))
	for i := range transactions {
		resp[i] = newTransaction(&transactions[i])
	}
	return &ListTransactionsOutput{Body: resp}, nil
}

func (h *TransactionHandler) update(ctx context.Context, input *UpdateTransactionInput) (*TransactionOutput, error) {
	actorID, err := actor(ctx)
	if err != nil {
		return nil, err
	}

	stopTimer := logging.Time(ctx, "updateTransactionMs")
	t, err := h.TransactionService.Update(ctx, actorID, input.ID, input.Body.fields())
	stopTimer()
	if err != nil {
		return nil, apiError(err, "failed to update transaction")
	}

	return &TransactionOutput{Body: newTransaction(t)}, nil
}

func (h *TransactionHandler) delete(ctx context.Context, input *DeleteTransactionInput) (*DeleteTransactionOutput, error) {
	actorID, err := actor(ctx)
	if err != nil {
		return nil, err
	}

	stopTimer := logging.Time(ctx, "deleteTransactionMs")
	err = h.TransactionService.Delete(ctx, actorID, input.ID)
	stopTimer()
	if err != nil {
		return nil, apiError(err, "failed to delete transaction")
	}

	return &DeleteTransactionOutput{Body: SuccessBody{Success: true}}, nil
}

// apiError maps service and store errors onto HTTP errors. Unexpected errors
// keep their message in the error details.
func apiError(err error, msg string) error {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		details := make([]error, len(verr.Fields))
		for i, f := range verr.Fields {
			details[i] = &huma.ErrorDetail{
				Message:  f.Message,
				Location: "body." + f.Field,
			}
		}
		return huma.Error400BadRequest("validation failed", details...)
	case errors.Is(err, models.ErrNotFound):
		return huma.Error404NotFound("transaction not found")
	case errors.Is(err, service.ErrForbidden):
		return huma.Error403Forbidden("user does not match session")
	default:
		return huma.NewError(http.StatusInternalServerError, msg, err)
	}
}
