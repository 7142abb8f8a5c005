package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/dvloznov/budgenudge/internal/domain"
)

func TestWrapError(t *testing.T) {
	assert.NoError(t, WrapError(nil))
	assert.ErrorIs(t, WrapError(pgx.ErrNoRows), domain.ErrNotFound)
	assert.ErrorIs(t, WrapError(fmt.Errorf("scan: %w", pgx.ErrNoRows)), domain.ErrNotFound)

	dup := &pgconn.PgError{Code: DuplicateKeyErrorCode, ConstraintName: "tagged_merchants_user_id_merchant_name_key"}
	err := WrapError(dup)
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	assert.Contains(t, err.Error(), "tagged_merchants_user_id_merchant_name_key")

	other := errors.New("connection reset")
	assert.Equal(t, other, WrapError(other))
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsUniqueViolation(nil))
}

func TestChunks(t *testing.T) {
	assert.Nil(t, chunks(0, 100))
	assert.Equal(t, [][2]int{{0, 100}, {100, 200}, {200, 250}}, chunks(250, 100))
	assert.Equal(t, [][2]int{{0, 3}}, chunks(3, 100))
}

func TestPacingTable(t *testing.T) {
	table, col, err := pacingTable(domain.PacingMerchant)
	assert.NoError(t, err)
	assert.Equal(t, "merchant_pacing_tracking", table)
	assert.Equal(t, "merchant_name", col)

	table, col, err = pacingTable(domain.PacingCategory)
	assert.NoError(t, err)
	assert.Equal(t, "category_pacing_tracking", table)
	assert.Equal(t, "category", col)

	_, _, err = pacingTable("account")
	assert.Error(t, err)
}

func TestSchemaEmbedded(t *testing.T) {
	assert.Contains(t, Schema, "CREATE OR REPLACE FUNCTION can_send_sms")
	assert.Contains(t, Schema, "sms_send_log_dedupe_idx")
}
