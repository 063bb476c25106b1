package storage

import (
	"context"
	"testing"
	"time"

	"finance-tracker/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// DBTestSuite provides a test suite for transaction operations
type DBTestSuite struct {
	suite.Suite
	db  *DB
	ctx context.Context
}

// SetupTest runs before each test
func (suite *DBTestSuite) SetupTest() {
	db, err := NewDB(":memory:")
	require.NoError(suite.T(), err, "failed to create test database")
	suite.db = db
	suite.ctx = context.Background()
}

// TearDownTest runs after each test
func (suite *DBTestSuite) TearDownTest() {
	if suite.db != nil {
		suite.db.Close()
	}
}

func (suite *DBTestSuite) newTransaction(kind models.Kind, amount, category string, date models.Date) *models.Transaction {
	return &models.Transaction{
		UserID:   "google-1",
		Kind:     kind,
		Amount:   decimal.RequireFromString(amount),
		Category: category,
		Date:     date,
	}
}

func (suite *DBTestSuite) TestCreateTransaction() {
	tx := suite.newTransaction(models.KindExpense, "10.50", "  Food ", models.NewDate(2024, time.March, 5))
	tx.Description = " Lunch "

	err := suite.db.CreateTransaction(suite.ctx, tx)
	require.NoError(suite.T(), err)

	assert.NotEmpty(suite.T(), tx.ID)
	assert.False(suite.T(), tx.CreatedAt.IsZero())
	assert.Equal(suite.T(), tx.CreatedAt, tx.UpdatedAt)

	stored, err := suite.db.GetTransaction(suite.ctx, tx.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "Food", stored.Category)
	assert.Equal(suite.T(), "Lunch", stored.Description)
	assert.Equal(suite.T(), models.KindExpense, stored.Kind)
	assert.True(suite.T(), decimal.RequireFromString("10.5").Equal(stored.Amount))
	assert.Equal(suite.T(), "2024-03-05", stored.Date.String())
}

func (suite *DBTestSuite) TestCreateAssignsUniqueIDs() {
	date := models.NewDate(2024, time.March, 5)
	first := suite.newTransaction(models.KindIncome, "1", "Salary", date)
	second := suite.newTransaction(models.KindIncome, "1", "Salary", date)

	require.NoError(suite.T(), suite.db.CreateTransaction(suite.ctx, first))
	require.NoError(suite.T(), suite.db.CreateTransaction(suite.ctx, second))

	assert.NotEqual(suite.T(), first.ID, second.ID)
}

func (suite *DBTestSuite) TestCreateTransactionRejectsInvalidRecord() {
	tx := &models.Transaction{
		UserID:   "google-1",
		Kind:     "transfer",
		Amount:   decimal.NewFromInt(-5),
		Category: "   ",
	}

	err := suite.db.CreateTransaction(suite.ctx, tx)
	var verr *models.ValidationError
	require.ErrorAs(suite.T(), err, &verr)

	fields := make([]string, 0, len(verr.Fields))
	for _, f := range verr.Fields {
		fields = append(fields, f.Field)
	}
	assert.ElementsMatch(suite.T(), []string{"type", "amount", "category", "date"}, fields)

	list, err := suite.db.ListTransactionsByUser(suite.ctx, "google-1")
	require.NoError(suite.T(), err)
	assert.Empty(suite.T(), list)
}

func (suite *DBTestSuite) TestGetTransactionNotFound() {
	_, err := suite.db.GetTransaction(suite.ctx, "missing")
	assert.ErrorIs(suite.T(), err, models.ErrNotFound)
}

func (suite *DBTestSuite) TestListTransactionsByUser() {
	testTransactions := []struct {
		amount   string
		category string
		date     models.Date
	}{
		{"20.00", "Transport", models.NewDate(2024, time.January, 10)},
		{"5.00", "Food", models.NewDate(2024, time.March, 1)},
		{"15.00", "Food", models.NewDate(2024, time.February, 14)},
	}

	for _, tt := range testTransactions {
		err := suite.db.CreateTransaction(suite.ctx, suite.newTransaction(models.KindExpense, tt.amount, tt.category, tt.date))
		require.NoError(suite.T(), err, "failed to create transaction: %s", tt.category)
	}

	other := suite.newTransaction(models.KindIncome, "999", "Other", models.NewDate(2024, time.April, 1))
	other.UserID = "google-2"
	require.NoError(suite.T(), suite.db.CreateTransaction(suite.ctx, other))

	result, err := suite.db.ListTransactionsByUser(suite.ctx, "google-1")
	require.NoError(suite.T(), err)
	require.Len(suite.T(), result, 3, "expected only the user's transactions")

	// Newest occurrence date first
	assert.Equal(suite.T(), "2024-03-01", result[0].Date.String())
	assert.Equal(suite.T(), "2024-02-14", result[1].Date.String())
	assert.Equal(suite.T(), "2024-01-10", result[2].Date.String())
}

func (suite *DBTestSuite) TestListTransactionsSameDateNewestInsertFirst() {
	date := models.NewDate(2024, time.May, 2)
	first := suite.newTransaction(models.KindExpense, "1", "First", date)
	second := suite.newTransaction(models.KindExpense, "2", "Second", date)
	require.NoError(suite.T(), suite.db.CreateTransaction(suite.ctx, first))
	require.NoError(suite.T(), suite.db.CreateTransaction(suite.ctx, second))

	result, err := suite.db.ListTransactionsByUser(suite.ctx, "google-1")
	require.NoError(suite.T(), err)
	require.Len(suite.T(), result, 2)
	assert.Equal(suite.T(), second.ID, result[0].ID)
	assert.Equal(suite.T(), first.ID, result[1].ID)
}

func (suite *DBTestSuite) TestListTransactionsEmpty() {
	result, err := suite.db.ListTransactionsByUser(suite.ctx, "nobody")
	require.NoError(suite.T(), err)
	assert.NotNil(suite.T(), result)
	assert.Empty(suite.T(), result)
}

func (suite *DBTestSuite) TestUpdateTransaction() {
	tx := suite.newTransaction(models.KindExpense, "12", "Food", models.NewDate(2024, time.June, 1))
	require.NoError(suite.T(), suite.db.CreateTransaction(suite.ctx, tx))

	created := tx.CreatedAt
	suite.db.now = func() time.Time { return created.Add(time.Minute) }

	tx.Category = "Groceries"
	require.NoError(suite.T(), suite.db.UpdateTransaction(suite.ctx, tx))

	stored, err := suite.db.GetTransaction(suite.ctx, tx.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "Groceries", stored.Category)
	assert.True(suite.T(), stored.CreatedAt.Equal(created), "created_at must not change")
	assert.True(suite.T(), stored.UpdatedAt.After(created), "updated_at must advance")
}

func (suite *DBTestSuite) TestUpdateTransactionNotOwned() {
	tx := suite.newTransaction(models.KindExpense, "12", "Food", models.NewDate(2024, time.June, 1))
	require.NoError(suite.T(), suite.db.CreateTransaction(suite.ctx, tx))

	changed := *tx
	changed.UserID = "google-2"
	changed.Category = "Hijacked"
	err := suite.db.UpdateTransaction(suite.ctx, &changed)
	assert.ErrorIs(suite.T(), err, models.ErrNotFound)

	stored, err := suite.db.GetTransaction(suite.ctx, tx.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "Food", stored.Category)
}

func (suite *DBTestSuite) TestUpdateTransactionNotFound() {
	tx := suite.newTransaction(models.KindExpense, "12", "Food", models.NewDate(2024, time.June, 1))
	tx.ID = "missing"
	err := suite.db.UpdateTransaction(suite.ctx, tx)
	assert.ErrorIs(suite.T(), err, models.ErrNotFound)
}

func (suite *DBTestSuite) TestDeleteTransaction() {
	tx := suite.newTransaction(models.KindIncome, "100", "Salary", models.NewDate(2024, time.July, 1))
	require.NoError(suite.T(), suite.db.CreateTransaction(suite.ctx, tx))

	// Someone else cannot delete it
	err := suite.db.DeleteTransaction(suite.ctx, tx.ID, "google-2")
	assert.ErrorIs(suite.T(), err, models.ErrNotFound)

	require.NoError(suite.T(), suite.db.DeleteTransaction(suite.ctx, tx.ID, "google-1"))

	list, err := suite.db.ListTransactionsByUser(suite.ctx, "google-1")
	require.NoError(suite.T(), err)
	assert.Empty(suite.T(), list)

	err = suite.db.DeleteTransaction(suite.ctx, tx.ID, "google-1")
	assert.ErrorIs(suite.T(), err, models.ErrNotFound, "second delete should report not found")
}

// UserTestSuite provides a test suite for user operations
type UserTestSuite struct {
	suite.Suite
	db  *DB
	ctx context.Context
}

func (suite *UserTestSuite) SetupTest() {
	db, err := NewDB(":memory:")
	require.NoError(suite.T(), err, "failed to create test database")
	suite.db = db
	suite.ctx = context.Background()
}

func (suite *UserTestSuite) TearDownTest() {
	if suite.db != nil {
		suite.db.Close()
	}
}

func (suite *UserTestSuite) TestUpsertCreatesUser() {
	user, err := suite.db.UpsertUser(suite.ctx, models.Identity{
		ID:        "google-1",
		Name:      "Ada",
		Email:     "Ada@Example.com ",
		AvatarURL: "https://example.com/a.png",
	})
	require.NoError(suite.T(), err)

	assert.NotEmpty(suite.T(), user.ID)
	assert.Equal(suite.T(), "ada@example.com", user.Email)
	assert.Equal(suite.T(), models.Identity{
		ID:        "google-1",
		Name:      "Ada",
		Email:     "ada@example.com",
		AvatarURL: "https://example.com/a.png",
	}, user.Identity())

	count, err := suite.db.UserCount(suite.ctx)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 1, count)
}

func (suite *UserTestSuite) TestUpsertResyncsProfileAndKeepsID() {
	first, err := suite.db.UpsertUser(suite.ctx, models.Identity{ID: "google-1", Name: "Ada", Email: "ada@example.com"})
	require.NoError(suite.T(), err)

	second, err := suite.db.UpsertUser(suite.ctx, models.Identity{
		ID:        "google-1",
		Name:      "Ada Lovelace",
		Email:     "ADA@example.com",
		AvatarURL: "https://example.com/new.png",
	})
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), first.ID, second.ID, "internal id must never change")
	assert.Equal(suite.T(), "Ada Lovelace", second.Name)
	assert.Equal(suite.T(), "https://example.com/new.png", second.AvatarURL)
	assert.True(suite.T(), first.CreatedAt.Equal(second.CreatedAt))

	count, err := suite.db.UserCount(suite.ctx)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 1, count)
}

func (suite *UserTestSuite) TestUpsertFollowsEmailChange() {
	first, err := suite.db.UpsertUser(suite.ctx, models.Identity{ID: "google-1", Name: "Ada", Email: "ada@old.com"})
	require.NoError(suite.T(), err)

	second, err := suite.db.UpsertUser(suite.ctx, models.Identity{ID: "google-1", Name: "Ada", Email: "ada@new.com"})
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), first.ID, second.ID)
	assert.Equal(suite.T(), "ada@new.com", second.Email)

	_, err = suite.db.GetUserByEmail(suite.ctx, "ada@old.com")
	assert.ErrorIs(suite.T(), err, models.ErrNotFound)

	count, err := suite.db.UserCount(suite.ctx)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 1, count)
}

func (suite *UserTestSuite) TestUpsertRejectsEmailOfAnotherAccount() {
	_, err := suite.db.UpsertUser(suite.ctx, models.Identity{ID: "google-1", Email: "ada@example.com"})
	require.NoError(suite.T(), err)

	_, err = suite.db.UpsertUser(suite.ctx, models.Identity{ID: "google-2", Email: "ada@example.com"})
	assert.Error(suite.T(), err)

	user, err := suite.db.GetUserByProviderID(suite.ctx, "google-1")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "ada@example.com", user.Email)
}

func (suite *UserTestSuite) TestUpsertRequiresEmail() {
	_, err := suite.db.UpsertUser(suite.ctx, models.Identity{ID: "google-1"})
	var verr *models.ValidationError
	assert.ErrorAs(suite.T(), err, &verr)
}

func (suite *UserTestSuite) TestGetUser() {
	created, err := suite.db.UpsertUser(suite.ctx, models.Identity{ID: "google-1", Email: "ada@example.com"})
	require.NoError(suite.T(), err)

	byID, err := suite.db.GetUserByID(suite.ctx, created.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "ada@example.com", byID.Email)

	_, err = suite.db.GetUserByID(suite.ctx, "missing")
	assert.ErrorIs(suite.T(), err, models.ErrNotFound)

	_, err = suite.db.GetUserByEmail(suite.ctx, "nobody@example.com")
	assert.ErrorIs(suite.T(), err, models.ErrNotFound)
}

func (suite *UserTestSuite) TestListUsers() {
	for _, email := range []string{"zoe@example.com", "ada@example.com"} {
		_, err := suite.db.UpsertUser(suite.ctx, models.Identity{ID: email, Email: email})
		require.NoError(suite.T(), err)
	}

	users, err := suite.db.ListUsers(suite.ctx)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), users, 2)
	assert.Equal(suite.T(), "ada@example.com", users[0].Email)
	assert.Equal(suite.T(), "zoe@example.com", users[1].Email)
}

// SessionTestSuite provides a test suite for session operations
type SessionTestSuite struct {
	suite.Suite
	db   *DB
	ctx  context.Context
	user *models.User
	now  time.Time
}

// SetupTest runs before each test
func (suite *SessionTestSuite) SetupTest() {
	db, err := NewDB(":memory:")
	require.NoError(suite.T(), err, "failed to create test database")
	suite.db = db
	suite.ctx = context.Background()
	suite.now = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	suite.db.now = func() time.Time { return suite.now }

	user, err := suite.db.UpsertUser(suite.ctx, models.Identity{
		ID:    "google-1",
		Name:  "testuser",
		Email: "test@example.com",
	})
	require.NoError(suite.T(), err, "failed to create test user")
	suite.user = user
}

// TearDownTest runs after each test
func (suite *SessionTestSuite) TearDownTest() {
	if suite.db != nil {
		suite.db.Close()
	}
}

func (suite *SessionTestSuite) createSession(token string, ttl time.Duration) {
	err := suite.db.CreateSession(suite.ctx, &models.Session{
		Token:        token,
		UserID:       suite.user.ID,
		CreatedAt:    suite.now,
		ExpiresAt:    suite.now.Add(ttl),
		LastActivity: suite.now,
	})
	require.NoError(suite.T(), err)
}

func (suite *SessionTestSuite) TestCreateAndGetSession() {
	suite.createSession("token-1", 24*time.Hour)

	s, err := suite.db.GetSession(suite.ctx, "token-1")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), suite.user.ID, s.UserID)
	assert.Equal(suite.T(), "testuser", s.Identity.Name)
	assert.Equal(suite.T(), "google-1", s.Identity.ID)
	assert.True(suite.T(), s.ExpiresAt.Equal(suite.now.Add(24*time.Hour)))
	assert.True(suite.T(), s.LastActivity.Equal(suite.now))
}

func (suite *SessionTestSuite) TestGetSessionReflectsProfileResync() {
	suite.createSession("token-1", 24*time.Hour)

	_, err := suite.db.UpsertUser(suite.ctx, models.Identity{ID: "google-1", Name: "renamed", Email: "test@example.com"})
	require.NoError(suite.T(), err)

	s, err := suite.db.GetSession(suite.ctx, "token-1")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "renamed", s.Identity.Name)
}

func (suite *SessionTestSuite) TestGetUnknownSession() {
	_, err := suite.db.GetSession(suite.ctx, "nope")
	assert.ErrorIs(suite.T(), err, models.ErrNotFound)
}

func (suite *SessionTestSuite) TestRenewSession() {
	suite.createSession("token-1", 24*time.Hour)

	// The caller's clock decides the activity time, not the store's.
	activity := suite.now.Add(13 * time.Hour)
	newExpiry := activity.Add(24 * time.Hour)
	require.NoError(suite.T(), suite.db.RenewSession(suite.ctx, "token-1", activity, newExpiry))

	s, err := suite.db.GetSession(suite.ctx, "token-1")
	require.NoError(suite.T(), err)
	assert.True(suite.T(), s.LastActivity.Equal(activity), "LastActivity should be updated after renewal")
	assert.True(suite.T(), s.ExpiresAt.Equal(newExpiry), "ExpiresAt should be extended after renewal")

	err = suite.db.RenewSession(suite.ctx, "missing", activity, newExpiry)
	assert.ErrorIs(suite.T(), err, models.ErrNotFound)
}

func (suite *SessionTestSuite) TestDeleteSession() {
	suite.createSession("token-1", 24*time.Hour)

	_, err := suite.db.GetSession(suite.ctx, "token-1")
	require.NoError(suite.T(), err, "session should exist before deletion")

	require.NoError(suite.T(), suite.db.DeleteSession(suite.ctx, "token-1"))

	_, err = suite.db.GetSession(suite.ctx, "token-1")
	assert.ErrorIs(suite.T(), err, models.ErrNotFound, "expected not found after deleting session")

	assert.NoError(suite.T(), suite.db.DeleteSession(suite.ctx, "token-1"), "deleting twice is not an error")
}

func (suite *SessionTestSuite) TestDeleteUserSessions() {
	suite.createSession("token-1", time.Hour)
	suite.createSession("token-2", time.Hour)

	n, err := suite.db.DeleteUserSessions(suite.ctx, suite.user.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(2), n)
}

func (suite *SessionTestSuite) TestCleanExpiredSessions() {
	suite.createSession("short", time.Hour)
	suite.createSession("long", 48*time.Hour)

	n, err := suite.db.CleanExpiredSessions(suite.ctx, suite.now.Add(2*time.Hour))
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(1), n)

	_, err = suite.db.GetSession(suite.ctx, "short")
	assert.ErrorIs(suite.T(), err, models.ErrNotFound)
	_, err = suite.db.GetSession(suite.ctx, "long")
	assert.NoError(suite.T(), err)
}

// Test suite runners
func TestDBSuite(t *testing.T) {
	suite.Run(t, new(DBTestSuite))
}

func TestUserSuite(t *testing.T) {
	suite.Run(t, new(UserTestSuite))
}

func TestSessionSuite(t *testing.T) {
	suite.Run(t, new(SessionTestSuite))
}
