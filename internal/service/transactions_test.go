package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"finance-tracker/internal/models"
	"finance-tracker/internal/storage"
)

func ptr(s string) *string { return &s }

type TransactionServiceTestSuite struct {
	suite.Suite
	db  *storage.DB
	svc *TransactionService
	ctx context.Context
}

func (suite *TransactionServiceTestSuite) SetupTest() {
	db, err := storage.NewDB(":memory:")
	require.NoError(suite.T(), err)
	suite.db = db
	suite.svc = NewTransactionService(db)
	suite.ctx = context.Background()
}

func (suite *TransactionServiceTestSuite) TearDownTest() {
	suite.db.Close()
}

func validFields() TransactionFields {
	return TransactionFields{
		UserID:      ptr("google-1"),
		Type:        ptr("expense"),
		Amount:      ptr("42.50"),
		Category:    ptr(" Food "),
		Date:        ptr("2024-03-05"),
		Description: ptr(" Dinner "),
	}
}

func (suite *TransactionServiceTestSuite) list() []models.Transaction {
	list, err := suite.svc.ListByUser(suite.ctx, "google-1", "google-1")
	require.NoError(suite.T(), err)
	return list
}

func fieldNames(err error) []string {
	verr, ok := err.(*models.ValidationError)
	if !ok {
		return nil
	}
	names := make([]string, len(verr.Fields))
	for i, f := range verr.Fields {
		names[i] = f.Field
	}
	return names
}

func (suite *TransactionServiceTestSuite) TestCreate() {
	tx, err := suite.svc.Create(suite.ctx, "google-1", validFields())
	require.NoError(suite.T(), err)

	assert.NotEmpty(suite.T(), tx.ID)
	assert.Equal(suite.T(), "google-1", tx.UserID)
	assert.Equal(suite.T(), models.KindExpense, tx.Kind)
	assert.True(suite.T(), decimal.RequireFromString("42.5").Equal(tx.Amount))
	assert.Equal(suite.T(), "Food", tx.Category)
	assert.Equal(suite.T(), "Dinner", tx.Description)
	assert.Equal(suite.T(), "2024-03-05", tx.Date.String())
}

func (suite *TransactionServiceTestSuite) TestCreateWithoutUserIDUsesActor() {
	in := validFields()
	in.UserID = nil
	tx, err := suite.svc.Create(suite.ctx, "google-1", in)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "google-1", tx.UserID)
}

func (suite *TransactionServiceTestSuite) TestCreateAcceptsISOTimestamp() {
	in := validFields()
	in.Date = ptr("2024-03-05T18:30:00.000Z")
	tx, err := suite.svc.Create(suite.ctx, "google-1", in)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "2024-03-05", tx.Date.String())
}

func (suite *TransactionServiceTestSuite) TestCreateRejectsForeignOwner() {
	in := validFields()
	in.UserID = ptr("google-2")
	_, err := suite.svc.Create(suite.ctx, "google-1", in)
	assert.ErrorIs(suite.T(), err, ErrForbidden)
	assert.Empty(suite.T(), suite.list())
}

func (suite *TransactionServiceTestSuite) TestCreateInvalidAmount() {
	tests := []struct {
		name    string
		amount  *string
		message string
	}{
		{"missing", nil, "is required"},
		{"empty", ptr(" "), "is required"},
		{"negative", ptr("-1"), "must not be negative"},
		{"non numeric", ptr("ten"), "must be a number"},
		{"huge exponent", ptr("1e3000000"), "is out of range"},
		{"enormous exponent", ptr("1e2000000000"), "is out of range"},
		{"tiny exponent", ptr("1e-2000000000"), "is out of range"},
		{"too many decimal places", ptr("0.123456789"), "is out of range"},
		{"at the upper bound", ptr("1000000000000000"), "is out of range"},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			in := validFields()
			in.Amount = tt.amount
			_, err := suite.svc.Create(suite.ctx, "google-1", in)

			var verr *models.ValidationError
			require.ErrorAs(suite.T(), err, &verr)
			require.Len(suite.T(), verr.Fields, 1)
			assert.Equal(suite.T(), "amount", verr.Fields[0].Field)
			assert.Equal(suite.T(), tt.message, verr.Fields[0].Message)
		})
	}

	assert.Empty(suite.T(), suite.list(), "nothing should be persisted")
}

func (suite *TransactionServiceTestSuite) TestCreateLargestAcceptedAmount() {
	in := validFields()
	in.Amount = ptr("999999999999999.12345678")
	tx, err := suite.svc.Create(suite.ctx, "google-1", in)
	require.NoError(suite.T(), err)

	list := suite.list()
	require.Len(suite.T(), list, 1)
	assert.True(suite.T(), tx.Amount.Equal(list[0].Amount))
}

func (suite *TransactionServiceTestSuite) TestUpdateRejectsOutOfRangeAmount() {
	created, err := suite.svc.Create(suite.ctx, "google-1", validFields())
	require.NoError(suite.T(), err)

	_, err = suite.svc.Update(suite.ctx, "google-1", created.ID, TransactionFields{Amount: ptr("5e300")})
	assert.Equal(suite.T(), []string{"amount"}, fieldNames(err))

	list := suite.list()
	require.Len(suite.T(), list, 1)
	assert.Equal(suite.T(), "42.5", list[0].Amount.String())
}

func (suite *TransactionServiceTestSuite) TestCreateListsEveryMissingField() {
	_, err := suite.svc.Create(suite.ctx, "google-1", TransactionFields{})
	assert.ElementsMatch(suite.T(), []string{"type", "amount", "category", "date"}, fieldNames(err))
}

func (suite *TransactionServiceTestSuite) TestCreateInvalidTypeAndDate() {
	in := validFields()
	in.Type = ptr("transfer")
	in.Date = ptr("yesterday")
	_, err := suite.svc.Create(suite.ctx, "google-1", in)
	assert.ElementsMatch(suite.T(), []string{"type", "date"}, fieldNames(err))
}

func (suite *TransactionServiceTestSuite) TestListByUserEmpty() {
	list, err := suite.svc.ListByUser(suite.ctx, "google-1", "google-1")
	require.NoError(suite.T(), err)
	assert.NotNil(suite.T(), list)
	assert.Empty(suite.T(), list)
}

func (suite *TransactionServiceTestSuite) TestListByUserForbidden() {
	_, err := suite.svc.ListByUser(suite.ctx, "google-1", "google-2")
	assert.ErrorIs(suite.T(), err, ErrForbidden)
}

func (suite *TransactionServiceTestSuite) TestUpdateRoundTrip() {
	created, err := suite.svc.Create(suite.ctx, "google-1", validFields())
	require.NoError(suite.T(), err)

	updated, err := suite.svc.Update(suite.ctx, "google-1", created.ID, TransactionFields{Category: ptr("Y")})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "Y", updated.Category)

	list := suite.list()
	require.Len(suite.T(), list, 1)
	got := list[0]
	assert.Equal(suite.T(), created.ID, got.ID)
	assert.Equal(suite.T(), "Y", got.Category)
	assert.Equal(suite.T(), created.Kind, got.Kind)
	assert.True(suite.T(), created.Amount.Equal(got.Amount))
	assert.Equal(suite.T(), created.Date, got.Date)
	assert.Equal(suite.T(), created.Description, got.Description)
	assert.Equal(suite.T(), created.UserID, got.UserID)
}

func (suite *TransactionServiceTestSuite) TestUpdateValidatesEachField() {
	created, err := suite.svc.Create(suite.ctx, "google-1", validFields())
	require.NoError(suite.T(), err)

	_, err = suite.svc.Update(suite.ctx, "google-1", created.ID, TransactionFields{
		Amount:   ptr("-3"),
		Category: ptr("  "),
		Type:     ptr("gift"),
	})
	assert.ElementsMatch(suite.T(), []string{"amount", "category", "type"}, fieldNames(err))

	list := suite.list()
	require.Len(suite.T(), list, 1)
	assert.Equal(suite.T(), "Food", list[0].Category, "store unchanged after failed update")
}

func (suite *TransactionServiceTestSuite) TestUpdateClearsDescription() {
	created, err := suite.svc.Create(suite.ctx, "google-1", validFields())
	require.NoError(suite.T(), err)

	updated, err := suite.svc.Update(suite.ctx, "google-1", created.ID, TransactionFields{Description: ptr("")})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "", updated.Description)
}

func (suite *TransactionServiceTestSuite) TestUpdateNotFound() {
	_, err := suite.svc.Update(suite.ctx, "google-1", "missing", TransactionFields{Category: ptr("Y")})
	assert.ErrorIs(suite.T(), err, models.ErrNotFound)
	assert.Empty(suite.T(), suite.list())
}

func (suite *TransactionServiceTestSuite) TestUpdateOtherUsersRecord() {
	created, err := suite.svc.Create(suite.ctx, "google-1", validFields())
	require.NoError(suite.T(), err)

	_, err = suite.svc.Update(suite.ctx, "google-2", created.ID, TransactionFields{Category: ptr("Y")})
	assert.ErrorIs(suite.T(), err, models.ErrNotFound)

	_, err = suite.svc.Update(suite.ctx, "google-1", created.ID, TransactionFields{UserID: ptr("google-2")})
	assert.ErrorIs(suite.T(), err, ErrForbidden)
}

func (suite *TransactionServiceTestSuite) TestDelete() {
	created, err := suite.svc.Create(suite.ctx, "google-1", validFields())
	require.NoError(suite.T(), err)

	assert.ErrorIs(suite.T(), suite.svc.Delete(suite.ctx, "google-2", created.ID), models.ErrNotFound)
	require.NoError(suite.T(), suite.svc.Delete(suite.ctx, "google-1", created.ID))
	assert.Empty(suite.T(), suite.list())
	assert.ErrorIs(suite.T(), suite.svc.Delete(suite.ctx, "google-1", created.ID), models.ErrNotFound)
}

func TestTransactionServiceSuite(t *testing.T) {
	suite.Run(t, new(TransactionServiceTestSuite))
}
