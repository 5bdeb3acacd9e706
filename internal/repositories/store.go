package repositories

import (
	"context"
	"database/sql"
	"database/sql/driver"
	stderrors "errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mroshb/couple_journal/pkg/errors"
	"github.com/mroshb/couple_journal/pkg/logger"
	"gorm.io/gorm"
)

// Store bundles the collection repositories. Inside Transaction every
// repository is bound to the same database transaction.
type Store struct {
	db *gorm.DB

	Users       *UserRepository
	Invitations *InvitationRepository
	Couples     *CoupleRepository
	Memories    *MemoryRepository
	Shares      *ShareRepository
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:          db,
		Users:       NewUserRepository(db),
		Invitations: NewInvitationRepository(db),
		Couples:     NewCoupleRepository(db),
		Memories:    NewMemoryRepository(db),
		Shares:      NewShareRepository(db),
	}
}

// WithContext returns a Store whose queries are bound to ctx.
func (s *Store) WithContext(ctx context.Context) *Store {
	return NewStore(s.db.WithContext(ctx))
}

// DB exposes the underlying handle for the live query watcher.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Transaction runs fn as one all-or-nothing unit. An abort caused by lock
// contention is retried once; a second abort is reported as a transport error.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	var err error
	for attempt := 1; attempt <= 2; attempt++ {
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(NewStore(tx))
		})
		if err == nil || !IsContention(err) {
			return err
		}
		logger.Warn("Transaction aborted by contention", "attempt", attempt, "error", err)
	}
	return errors.Wrap(err, errors.ErrCodeTransport, "transaction aborted due to contention")
}

// IsContention reports serialization failures and deadlocks.
func IsContention(err error) bool {
	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func isUnavailable(err error) bool {
	if stderrors.Is(err, driver.ErrBadConn) || stderrors.Is(err, sql.ErrConnDone) {
		return true
	}
	var netErr net.Error
	return stderrors.As(err, &netErr)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return stderrors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func dbError(err error, message string) error {
	if IsContention(err) || isUnavailable(err) {
		return errors.Wrap(err, errors.ErrCodeTransport, message)
	}
	return errors.Wrap(err, errors.ErrCodeInternalError, message)
}
