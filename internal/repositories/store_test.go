package repositories

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mroshb/couple_journal/internal/dbtest"
	"github.com/mroshb/couple_journal/internal/models"
	"github.com/mroshb/couple_journal/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsContention(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "Serialization failure", err: &pgconn.PgError{Code: "40001"}, want: true},
		{name: "Deadlock", err: fmt.Errorf("accept: %w", &pgconn.PgError{Code: "40P01"}), want: true},
		{name: "Unique violation", err: &pgconn.PgError{Code: "23505"}, want: false},
		{name: "SQLite busy", err: stderrors.New("database is locked (5) (SQLITE_BUSY)"), want: true},
		{name: "Plain error", err: stderrors.New("boom"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsContention(tt.err); got != tt.want {
				t.Errorf("IsContention() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDBError(t *testing.T) {
	contended := dbError(&pgconn.PgError{Code: "40001"}, "failed")
	assert.Equal(t, errors.KindTransport, errors.KindOf(contended))

	other := dbError(stderrors.New("syntax error"), "failed")
	assert.Equal(t, errors.KindInternal, errors.KindOf(other))
}

func TestStore_TransactionRetriesContentionOnce(t *testing.T) {
	store := NewStore(dbtest.OpenTestDB(t))
	ctx := context.Background()

	attempts := 0
	err := store.Transaction(ctx, func(tx *Store) error {
		attempts++
		if err := tx.Users.CreateUser(&models.User{ID: "u1", Email: "u1@example.com", DisplayName: "One"}); err != nil {
			return err
		}
		if attempts == 1 {
			return &pgconn.PgError{Code: "40P01"}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)

	// The aborted first attempt left nothing behind, so the retry's insert is the only row.
	_, err = store.Users.GetUserByID("u1")
	assert.NoError(t, err)
}

func TestStore_TransactionSecondAbortIsTransportError(t *testing.T) {
	store := NewStore(dbtest.OpenTestDB(t))

	attempts := 0
	err := store.Transaction(context.Background(), func(tx *Store) error {
		attempts++
		return &pgconn.PgError{Code: "40001"}
	})

	assert.Equal(t, 2, attempts)
	assert.Equal(t, errors.ErrCodeTransport, errors.CodeOf(err))
}

func TestStore_TransactionRollsBackOnError(t *testing.T) {
	store := NewStore(dbtest.OpenTestDB(t))

	err := store.Transaction(context.Background(), func(tx *Store) error {
		if err := tx.Users.CreateUser(&models.User{ID: "u1", Email: "u1@example.com", DisplayName: "One"}); err != nil {
			return err
		}
		return errors.ErrAlreadyPaired
	})
	assert.ErrorIs(t, err, errors.ErrAlreadyPaired)

	_, err = store.Users.GetUserByID("u1")
	assert.Equal(t, errors.ErrCodeNotFound, errors.CodeOf(err))
}
