package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"settleup-backend/metrics"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// Pool is satisfied by *pgxpool.Pool and by pgxmock pools.
type Pool interface {
	Querier
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// TxRunner runs fn inside a transaction when the store supports one.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(Querier) error) error
}

type DB struct {
	Pool          Pool
	transactional bool
}

func New(databaseURL string, transactional bool) (*DB, error) {
	zap.L().Info("Initializing database connection pool")
	pool, err := pgxpool.New(context.Background(), databaseURL)
	if err != nil {
		zap.L().Error("Failed to create connection pool", zap.Error(err))
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		zap.L().Error("Failed to ping database", zap.Error(err))
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	zap.L().Info("Database connection established successfully", zap.Bool("transactions", transactional))
	return NewWithPool(pool, transactional), nil
}

func NewWithPool(pool Pool, transactional bool) *DB {
	return &DB{Pool: pool, transactional: transactional}
}

func (db *DB) Close() {
	zap.L().Info("Closing database connection pool")
	db.Pool.Close()
}

func (db *DB) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// WithTx runs fn in a transaction. When transactions are disabled or the
// server refuses to open one, fn runs directly against the pool and every
// statement commits on its own.
func (db *DB) WithTx(ctx context.Context, fn func(Querier) error) error {
	txID := uuid.New().String()
	startTime := time.Now()

	if !db.transactional {
		return db.runWithoutTx(ctx, txID, fn, nil)
	}

	zap.L().Debug("Beginning transaction", zap.String("tx_id", txID))

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		if TransactionsUnsupported(err) {
			return db.runWithoutTx(ctx, txID, fn, err)
		}
		zap.L().Error("Failed to begin transaction", zap.String("tx_id", txID), zap.Error(err))
		return fmt.Errorf("beginning transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			zap.L().Error("Recovered from panic in transaction", zap.String("tx_id", txID), zap.Any("panic", p))
			_ = tx.Rollback(ctx)
			panic(p)
		} else if err != nil {
			zap.L().Warn("Rolling back transaction due to error", zap.String("tx_id", txID), zap.Error(err))
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				zap.L().Error("Failed to rollback transaction", zap.String("tx_id", txID), zap.Error(rbErr))
			}
		}
	}()

	err = fn(txQuerier{tx})
	if err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		zap.L().Error("Failed to commit transaction", zap.String("tx_id", txID), zap.Error(err))
		return fmt.Errorf("committing transaction: %w", err)
	}

	zap.L().Debug("Transaction committed successfully",
		zap.String("tx_id", txID),
		zap.Duration("duration", time.Since(startTime)))
	return nil
}

func (db *DB) runWithoutTx(ctx context.Context, txID string, fn func(Querier) error, cause error) error {
	fields := []zap.Field{zap.String("tx_id", txID)}
	if cause != nil {
		fields = append(fields, zap.Error(cause))
	}
	zap.L().Warn("Running without transaction, falling back to conditional writes", fields...)
	metrics.TxFallbacks.Inc()
	return fn(db.Pool)
}

// TransactionsUnsupported reports whether err means the server cannot open a
// transaction: feature_not_supported or invalid_transaction_state, as seen
// behind statement-level poolers.
func TransactionsUnsupported(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "0A000" || pgErr.Code == "25P01"
}

// txQuerier marks the Querier WithTx hands out on the transactional path.
type txQuerier struct {
	pgx.Tx
}

// InTx reports whether q came from WithTx running inside a transaction. The
// pool, nil and any other Querier report false.
func InTx(q Querier) bool {
	_, ok := q.(txQuerier)
	return ok
}
