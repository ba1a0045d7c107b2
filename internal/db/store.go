package db

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/rajivgeraev/reloop-api/internal/apperrors"
	"github.com/rajivgeraev/reloop-api/internal/repository"
)

const (
	initialRetryDelay = 75 * time.Millisecond
	maxRetryDelay     = 1200 * time.Millisecond
)

// DBTX - общее подмножество pgxpool.Pool и pgx.Tx
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries реализует repository.Repository поверх пула или транзакции
type Queries struct {
	db DBTX
}

// Store - postgres-хранилище с сериализуемыми транзакциями
type Store struct {
	*Queries
	pool        *pgxpool.Pool
	maxAttempts int
	log         *slog.Logger
}

var _ repository.Store = (*Store)(nil)

// NewStore создает хранилище поверх пула соединений
func NewStore(pool *pgxpool.Pool, maxAttempts int, log *slog.Logger) *Store {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &Store{
		Queries:     &Queries{db: pool},
		pool:        pool,
		maxAttempts: maxAttempts,
		log:         log,
	}
}

// WithTx выполняет fn в транзакции SERIALIZABLE. Ошибки сериализации и
// взаимоблокировки приводят к повтору с экспоненциальной задержкой.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx repository.Repository) error) error {
	return retryTx(ctx, s.maxAttempts, func(attempt int) error {
		if attempt > 0 {
			s.log.Debug("повтор транзакции", slog.Int("attempt", attempt+1))
		}
		return s.runTx(ctx, fn)
	})
}

func (s *Store) runTx(ctx context.Context, fn func(ctx context.Context, tx repository.Repository) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return errors.Wrap(err, "db.BeginTx")
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, &Queries{db: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "db.Commit")
	}
	return nil
}

// retryTx вызывает attemptFn до maxAttempts раз, пока ошибка является
// конфликтом конкурентного доступа
func retryTx(ctx context.Context, maxAttempts int, attemptFn func(attempt int) error) error {
	retryDelay := initialRetryDelay
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err := attemptFn(attempt)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		if attempt == maxAttempts-1 {
			break
		}
		if err := sleepWithContext(ctx, retryDelay); err != nil {
			return err
		}
		if retryDelay < maxRetryDelay {
			retryDelay *= 2
		}
	}
	return apperrors.ErrTxConflict
}

// isRetryable - serialization_failure (40001) или deadlock_detected (40P01)
func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// wrapErr переводит pgx.ErrNoRows в доменную ошибку notFound, остальное оборачивает
func wrapErr(err error, op string, notFound error) error {
	if errors.Is(err, pgx.ErrNoRows) && notFound != nil {
		return notFound
	}
	return errors.Wrap(err, op)
}
