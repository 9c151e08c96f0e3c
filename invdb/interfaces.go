package invdb

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lightninglabs/zkinv/fn"
	"github.com/lightninglabs/zkinv/invdb/sqlc"
)

var (
	// DefaultStoreTimeout is the default timeout used for any interaction
	// with the storage/database.
	DefaultStoreTimeout = time.Second * 10

	// DefaultNumTxRetries is the default number of times a transaction
	// that failed to serialize is retried.
	DefaultNumTxRetries = 10
)

// TxOptions represents a set of options one can use to control what type of
// database transaction is created. Transaction can wither be read or write.
type TxOptions interface {
	// ReadOnly returns true if the transaction should be read only.
	ReadOnly() bool
}

// txOptions is the default implementation of TxOptions.
type txOptions struct {
	readOnly bool
}

// ReadOnly returns true if the transaction should be read only.
//
// NOTE: This implements the TxOptions interface.
func (t *txOptions) ReadOnly() bool {
	return t.readOnly
}

// ReadTxOption returns the options of a read only transaction.
func ReadTxOption() TxOptions {
	return &txOptions{readOnly: true}
}

// WriteTxOption returns the options of a read/write transaction.
func WriteTxOption() TxOptions {
	return &txOptions{}
}

// BatchedTx is a generic interface that represents the ability to execute
// several operations to a given storage interface in a single atomic
// transaction. Typically Q here will be some subset of the main sqlc.Querier
// interface allowing it to only depend on the routines it needs to implement
// any additional business logic.
type BatchedTx[Q any] interface {
	// ExecTx will execute the passed txBody, operating upon generic
	// parameter Q (usually a storage interface) in a single transaction.
	// The set of TxOptions are passed in in order to allow the caller to
	// specify if a transaction should be read-only.
	ExecTx(ctx context.Context, txOptions TxOptions,
		txBody func(Q) error) error
}

// Tx represents a database transaction that can be committed or rolled back.
type Tx interface {
	// Commit commits the database transaction, an error should be
	// returned if the commit isn't possible.
	Commit() error

	// Rollback rolls back an incomplete database transaction.
	// Transactions that were able to be committed can still call this as a
	// noop.
	Rollback() error
}

// QueryCreator is a generic function that's used to create a Querier, which is
// a type of interface that implements storage related methods from a database
// transaction. This will be used to instantiate an object callers can use to
// apply multiple modifications to an object interface in a single atomic
// transaction.
type QueryCreator[Q any] func(*sql.Tx) Q

// BatchedQuerier is a generic interface that allows callers to create a new
// database transaction based on an abstract type that implements the TxOptions
// interface.
type BatchedQuerier interface {
	// Querier is the underlying query source, this is in place so we can
	// pass a BatchedQuerier implementation directly into objects that
	// create a batched version of the normal methods they need.
	sqlc.Querier

	// BeginTx creates a new database transaction given the set of
	// transaction options.
	BeginTx(ctx context.Context, options TxOptions) (*sql.Tx, error)
}

// TransactionExecutor is a generic struct that abstracts away from the type of
// query a type needs to run under a database transaction, and also the set of
// options for that transaction. The QueryCreator is used to create a query
// given a database transaction created by the BatchedQuerier.
type TransactionExecutor[Query any] struct {
	BatchedQuerier

	createQuery QueryCreator[Query]

	retryCfg fn.RetryConfig
}

// NewTransactionExecutor creates a new instance of a TransactionExecutor given
// a Querier query object and a concrete type for the type of transactions the
// Querier understands.
func NewTransactionExecutor[Querier any](db BatchedQuerier,
	createQuery QueryCreator[Querier]) *TransactionExecutor[Querier] {

	return &TransactionExecutor[Querier]{
		BatchedQuerier: db,
		createQuery:    createQuery,
		retryCfg: fn.RetryConfig{
			MaxRetries:        DefaultNumTxRetries,
			InitialBackoff:    10 * time.Millisecond,
			BackoffMultiplier: 2,
			MaxBackoff:        time.Second,
			ShouldRetry:       IsSerializationError,
		},
	}
}

// ExecTx is a wrapper for txBody to abstract the creation and commit of a db
// transaction. The db transaction is embedded in a `*Queries` that txBody
// needs to use when executing each one of the queries that need to be applied
// atomically. A transaction that failed to serialize against a concurrent one
// is retried with backoff, so txBody must be safe to run more than once.
func (t *TransactionExecutor[Q]) ExecTx(ctx context.Context,
	txOptions TxOptions, txBody func(Q) error) error {

	_, err := fn.RetryFuncN(ctx, t.retryCfg, func() (struct{}, error) {
		return struct{}{}, t.execTxOnce(ctx, txOptions, txBody)
	})
	if IsSerializationError(err) {
		return ErrRetriesExceeded
	}

	return err
}

// execTxOnce runs txBody in a single database transaction.
func (t *TransactionExecutor[Q]) execTxOnce(ctx context.Context,
	txOptions TxOptions, txBody func(Q) error) error {

	tx, err := t.BatchedQuerier.BeginTx(ctx, txOptions)
	if err != nil {
		return MapSQLError(err)
	}

	// Rollback is safe to call even if the tx is already closed, so if the
	// tx commits successfully, this is a no-op.
	defer func() {
		_ = tx.Rollback()
	}()

	if err := txBody(t.createQuery(tx)); err != nil {
		return MapSQLError(err)
	}

	if err := tx.Commit(); err != nil {
		return MapSQLError(err)
	}

	return nil
}

// BaseDB is the base database struct that each implementation can embed to
// gain some common functionality.
type BaseDB struct {
	*sql.DB

	*sqlc.Queries
}

// BeginTx wraps the normal sql specific BeginTx method with the TxOptions
// interface. This interface is then mapped to the concrete sql tx options
// struct.
func (s *BaseDB) BeginTx(ctx context.Context, opts TxOptions) (*sql.Tx,
	error) {

	sqlOptions := sql.TxOptions{
		ReadOnly:  opts.ReadOnly(),
		Isolation: sql.LevelSerializable,
	}

	// Sqlite only knows serializable transactions and refuses an explicit
	// isolation level.
	if s.Backend() == sqlc.BackendTypeSqlite {
		sqlOptions.Isolation = sql.LevelDefault
	}

	return s.DB.BeginTx(ctx, &sqlOptions)
}

// IsSerializationError returns true if the error is a serialization failure
// that may go away when the transaction is retried.
func IsSerializationError(err error) bool {
	var serErr *ErrSerializationError
	return errors.As(err, &serErr)
}
