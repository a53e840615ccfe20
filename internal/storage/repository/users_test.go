package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a8n-tools/platform/internal/models"
)

func newTestStorage(t *testing.T) (*Storage, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return &Storage{DB: db}, mock
}

func userRow(id, email string) *sqlmock.Rows {
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	return sqlmock.NewRows([]string{
		"id", "email", "email_verified", "password_hash", "role", "stripe_customer_id",
		"membership_status", "membership_tier", "price_locked", "locked_price_id",
		"locked_price_amount", "grace_period_start", "grace_period_end",
		"created_at", "updated_at", "last_login_at", "deleted_at",
	}).AddRow(id, email, true, "$2a$10$hash", "subscriber", nil,
		"active", "personal", false, nil,
		nil, nil, nil,
		now, now, nil, nil)
}

func TestStorage_CreateUser(t *testing.T) {
	storage, mock := newTestStorage(t)

	hash := "$2a$10$hash"
	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs("new@example.com", &hash, models.RoleSubscriber,
			models.MembershipNone, models.TierPersonal).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("user-1"))

	id, err := storage.CreateUser(context.Background(), models.CreateUser{
		Email:        "new@example.com",
		PasswordHash: &hash,
		Role:         models.RoleSubscriber,
	})

	assert.NoError(t, err)
	assert.Equal(t, "user-1", id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStorage_GetUserByEmail(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		storage, mock := newTestStorage(t)

		mock.ExpectQuery(`SELECT (.+) FROM users WHERE email = \$1 AND deleted_at IS NULL`).
			WithArgs("user@example.com").
			WillReturnRows(userRow("user-1", "user@example.com"))

		user, err := storage.GetUserByEmail(context.Background(), "user@example.com")

		assert.NoError(t, err)
		assert.Equal(t, "user-1", user.ID)
		assert.Equal(t, models.RoleSubscriber, user.Role)
		assert.Equal(t, models.MembershipActive, user.MembershipStatus)
		assert.Equal(t, models.TierPersonal, user.MembershipTier)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		storage, mock := newTestStorage(t)

		mock.ExpectQuery(`SELECT (.+) FROM users WHERE email = \$1`).
			WithArgs("missing@example.com").
			WillReturnError(sql.ErrNoRows)

		user, err := storage.GetUserByEmail(context.Background(), "missing@example.com")

		assert.Nil(t, user)
		assert.ErrorIs(t, err, sql.ErrNoRows)
	})
}

func TestStorage_UpdateUserRole(t *testing.T) {
	storage, mock := newTestStorage(t)

	mock.ExpectExec(`UPDATE users SET role = \$1, updated_at = now\(\) WHERE id = \$2`).
		WithArgs(models.RoleAdmin, "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	rows, err := storage.UpdateUserRole(context.Background(), "user-1", models.RoleAdmin)

	assert.NoError(t, err)
	assert.Equal(t, 1, rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStorage_SoftDeleteUser(t *testing.T) {
	t.Run("deletes once", func(t *testing.T) {
		storage, mock := newTestStorage(t)

		mock.ExpectExec(`UPDATE users SET deleted_at = now\(\)`).
			WithArgs("user-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		rows, err := storage.SoftDeleteUser(context.Background(), "user-1")

		assert.NoError(t, err)
		assert.Equal(t, 1, rows)
	})

	t.Run("already deleted", func(t *testing.T) {
		storage, mock := newTestStorage(t)

		mock.ExpectExec(`UPDATE users SET deleted_at = now\(\)`).
			WithArgs("user-1").
			WillReturnResult(sqlmock.NewResult(0, 0))

		rows, err := storage.SoftDeleteUser(context.Background(), "user-1")

		assert.NoError(t, err)
		assert.Equal(t, 0, rows)
	})
}

func TestStorage_UpdateMembershipState(t *testing.T) {
	storage, mock := newTestStorage(t)

	priceID := "price_personal"
	amount := 300
	graceStart := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	graceEnd := graceStart.AddDate(0, 0, 30)

	mock.ExpectExec(`UPDATE users\s+SET membership_status = \$1`).
		WithArgs(models.MembershipPastDue, models.TierPersonal, true,
			&priceID, &amount, &graceStart, &graceEnd, "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := storage.UpdateMembershipState(context.Background(), "user-1", MembershipState{
		Status:            models.MembershipPastDue,
		Tier:              models.TierPersonal,
		PriceLocked:       true,
		LockedPriceID:     &priceID,
		LockedPriceAmount: &amount,
		GracePeriodStart:  &graceStart,
		GracePeriodEnd:    &graceEnd,
	})

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStorage_ListUsersWithExpiredGrace(t *testing.T) {
	storage, mock := newTestStorage(t)

	now := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT (.+) FROM users\s+WHERE deleted_at IS NULL\s+AND membership_status = \$1`).
		WithArgs(models.MembershipPastDue, now).
		WillReturnRows(userRow("user-1", "late@example.com"))

	users, err := storage.ListUsersWithExpiredGrace(context.Background(), now)

	assert.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "late@example.com", users[0].Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStorage_CanceledContext(t *testing.T) {
	storage, _ := newTestStorage(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := storage.GetUser(ctx, "user-1")

	assert.ErrorIs(t, err, context.Canceled)
}
