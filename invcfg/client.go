package invcfg

import (
	"fmt"

	"github.com/btcsuite/btclog"
	"github.com/lightninglabs/zkinv"
	"github.com/lightninglabs/zkinv/invdb"
	"github.com/lightninglabs/zkinv/invfreighter"
	"github.com/lightninglabs/zkinv/inventory"
	"github.com/lightninglabs/zkinv/ledger"
	"github.com/lightninglabs/zkinv/prover"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/signal"
	"github.com/lightningnetwork/lnd/ticker"
)

// openDatabase opens the configured database backend and applies all
// migrations.
func openDatabase(cfg *Config, cfgLogger btclog.Logger) (*invdb.BaseDB,
	error) {

	switch cfg.DatabaseBackend {
	case DatabaseBackendSqlite:
		cfgLogger.Infof("Opening sqlite3 database at: %v",
			cfg.Sqlite.DatabaseFileName)

		store, err := invdb.NewSqliteStore(cfg.Sqlite)
		if err != nil {
			return nil, err
		}

		return store.BaseDB, nil

	case DatabaseBackendPostgres:
		cfgLogger.Infof("Opening postgres database at: %v",
			cfg.Postgres.DSN(true))

		store, err := invdb.NewPostgresStore(cfg.Postgres)
		if err != nil {
			return nil, err
		}

		return store.BaseDB, nil

	default:
		return nil, fmt.Errorf("unknown database backend: %s",
			cfg.DatabaseBackend)
	}
}

// CreateClientFromConfig creates a new client from the given config. The
// returned client owns the database and closes it when stopped.
func CreateClientFromConfig(cfg *Config, cfgLogger btclog.Logger,
	shutdownInterceptor signal.Interceptor,
	mainErrChan chan<- error) (*zkinv.Client, error) {

	// Now that we know where the database will live, we'll go ahead and
	// open up the default implementation of it.
	db, err := openDatabase(cfg, cfgLogger)
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	signer, err := ledger.LoadKeySigner(cfg.Signer.KeyFile)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("unable to load signing key: %w", err)
	}

	defaultClock := clock.NewDefaultClock()
	devnetLedger := invdb.NewDevnetLedger(db, nil, defaultClock)

	var stateStore inventory.StateStore
	switch cfg.StateStore {
	case StateStoreFile:
		cfgLogger.Infof("Keeping inventory states in %v", cfg.StateFile)
		stateStore = inventory.NewFileStore(cfg.StateFile)

	default:
		stateStore = invdb.NewSecretStore(db, defaultClock)
	}

	httpProver := prover.NewHttpProver(&prover.HttpConfig{
		URL:            cfg.Prover.URL,
		RequestTimeout: cfg.Prover.RequestTimeout,
		UserAgent:      zkinv.UserAgent(""),
	})

	porter := invfreighter.NewBatchPorter(&invfreighter.BatchPorterConfig{
		Prover:      httpProver,
		Ledger:      devnetLedger,
		Signer:      signer,
		StateStore:  stateStore,
		BatchLog:    invdb.NewBatchLog(db),
		RecordCache: invdb.NewRecordCache(db, defaultClock),
		Clock:       defaultClock,
		SyncTicker:  ticker.New(cfg.Sync.Interval),
		SyncRetry:   cfg.Sync.Retry,
		Scheduler:   cfg.schedulerConfig(),
		ErrChan:     mainErrChan,
	})

	return zkinv.NewClient(&zkinv.Config{
		DebugLevel:        cfg.DebugLevel,
		Prover:            httpProver,
		Ledger:            devnetLedger,
		RegistryAdmin:     devnetLedger,
		Signer:            signer,
		BatchPorter:       porter,
		SignalInterceptor: shutdownInterceptor,
		LogWriter:         cfg.LogWriter,
		DatabaseConfig: &zkinv.DatabaseConfig{
			StateStore: stateStore,
			DB:         db,
		},
	}), nil
}
