package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"

	ferrors "github.com/Ramsey-B/fern/pkg/errors"
)

// Executor is the query surface shared by *sqlx.DB and *sqlx.Tx. Repositories are
// bound to one so the same code runs inside and outside a transaction.
type Executor interface {
	DriverName() string
	Rebind(query string) string
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type DB interface {
	Executor
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
	PingContext(ctx context.Context) error
	Close() error
	Unwrap() *sql.DB
	// StartTx opens a transaction with the instance's default isolation level
	StartTx(ctx context.Context) (*Transaction, error)
}

type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type DatabaseInstance struct {
	*sqlx.DB
	logger ectologger.Logger
	txOpts *sql.TxOptions
}

func NewDatabaseInstance(db *sqlx.DB, logger ectologger.Logger, txOpts *sql.TxOptions) DB {
	return &DatabaseInstance{
		DB:     db,
		logger: logger,
		txOpts: txOpts,
	}
}

// Connect opens a pool for driverName and verifies it with a ping
func Connect(ctx context.Context, logger ectologger.Logger, driverName, dsn string, pool PoolConfig, txOpts *sql.TxOptions) (DB, error) {
	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		logger.WithContext(ctx).WithError(err).Errorf("Failed to open %s database", driverName)
		return nil, ferrors.Storage("open database", err)
	}

	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, ferrors.Storage("ping database", err)
	}

	return NewDatabaseInstance(db, logger, txOpts), nil
}

func (db *DatabaseInstance) Unwrap() *sql.DB {
	return db.DB.DB
}

func (db *DatabaseInstance) StartTx(ctx context.Context) (*Transaction, error) {
	tx, err := db.BeginTxx(ctx, db.txOpts)
	if err != nil {
		db.logger.WithContext(ctx).WithError(err).Error("Failed to begin transaction")
		return nil, ferrors.Storage("begin transaction", err)
	}
	return NewTx(tx, db.logger), nil
}

// IsolationLevel maps a config value such as "serializable" to a sql.IsolationLevel.
// Unknown or empty values use the driver default.
func IsolationLevel(name string) sql.IsolationLevel {
	switch name {
	case "read_uncommitted":
		return sql.LevelReadUncommitted
	case "read_committed":
		return sql.LevelReadCommitted
	case "repeatable_read":
		return sql.LevelRepeatableRead
	case "serializable":
		return sql.LevelSerializable
	default:
		return sql.LevelDefault
	}
}
