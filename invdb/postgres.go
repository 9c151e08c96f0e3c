package invdb

import (
	"database/sql"
	"fmt"
	"testing"
	"time"

	postgres_migrate "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/jackc/pgx/v4/stdlib" // Register relevant drivers.
	"github.com/lightninglabs/zkinv/invdb/sqlc"
	"github.com/stretchr/testify/require"
)

const (
	dsnTemplate = "postgres://%v:%v@%v:%d/%v?sslmode=%v"

	// defaultMaxIdleConns is the number of idle postgres connections kept
	// in the pool.
	defaultMaxIdleConns = 6

	// defaultConnMaxIdleTime is how long a postgres connection may sit in
	// the pool unused.
	defaultConnMaxIdleTime = 5 * time.Minute

	// postgresFixtureLifetime bounds how long the docker container backing
	// a test database may live.
	postgresFixtureLifetime = 60 * time.Minute
)

// postgresTypes maps the sqlite column types our migrations are written in
// to their postgres equivalents.
var postgresTypes = map[string]string{
	"BLOB":                "BYTEA",
	"INTEGER PRIMARY KEY": "SERIAL PRIMARY KEY",
	"TIMESTAMP":           "TIMESTAMP WITHOUT TIME ZONE",
}

// PostgresConfig is the configuration of the postgres backend of the local
// inventory store.
type PostgresConfig struct {
	SkipMigrations     bool          `long:"skipmigrations" description:"Skip applying migrations on startup."`
	Host               string        `long:"host" description:"Database server hostname."`
	Port               int           `long:"port" description:"Database server port."`
	User               string        `long:"user" description:"Database user."`
	Password           string        `long:"password" description:"Database user's password."`
	DBName             string        `long:"dbname" description:"Database name to use."`
	MaxOpenConnections int           `long:"maxconnections" description:"Max open connections to keep alive to the database server."`
	MaxIdleConnections int           `long:"maxidleconnections" description:"Max number of idle connections to keep in the connection pool."`
	ConnMaxLifetime    time.Duration `long:"connmaxlifetime" description:"Max amount of time a connection can be reused for before it is closed."`
	ConnMaxIdleTime    time.Duration `long:"connmaxidletime" description:"Max amount of time a connection can be idle for before it is closed."`
	RequireSSL         bool          `long:"requiressl" description:"Whether to require using SSL (mode: require) when connecting to the server."`
}

// DSN returns the connection string of the database. With hidePassword set
// the result is safe to log.
func (s *PostgresConfig) DSN(hidePassword bool) string {
	sslMode := "disable"
	if s.RequireSSL {
		sslMode = "require"
	}

	password := s.Password
	if hidePassword {
		password = "****"
	}

	return fmt.Sprintf(dsnTemplate, s.User, password, s.Host, s.Port,
		s.DBName, sslMode)
}

// poolLimits are the connection pool settings of a postgres store.
type poolLimits struct {
	maxOpen     int
	maxIdle     int
	maxLifetime time.Duration
	maxIdleTime time.Duration
}

// poolLimits returns the pool settings of the config, with every unset value
// replaced by its default.
func (s *PostgresConfig) poolLimits() poolLimits {
	orInt := func(v, def int) int {
		if v > 0 {
			return v
		}
		return def
	}
	orDuration := func(v, def time.Duration) time.Duration {
		if v > 0 {
			return v
		}
		return def
	}

	return poolLimits{
		maxOpen:     orInt(s.MaxOpenConnections, defaultMaxConns),
		maxIdle:     orInt(s.MaxIdleConnections, defaultMaxIdleConns),
		maxLifetime: orDuration(s.ConnMaxLifetime, defaultConnMaxLifetime),
		maxIdleTime: orDuration(s.ConnMaxIdleTime, defaultConnMaxIdleTime),
	}
}

// PostgresStore is the local inventory store on top of a postgres server.
type PostgresStore struct {
	cfg *PostgresConfig

	*BaseDB
}

// NewPostgresStore connects to the configured server and brings the
// inventory schema up to date unless migrations are skipped.
func NewPostgresStore(cfg *PostgresConfig) (*PostgresStore, error) {
	log.Infof("Opening inventory store at '%s'", cfg.DSN(true))

	rawDb, err := sql.Open("pgx", cfg.DSN(false))
	if err != nil {
		return nil, err
	}

	limits := cfg.poolLimits()
	rawDb.SetMaxOpenConns(limits.maxOpen)
	rawDb.SetMaxIdleConns(limits.maxIdle)
	rawDb.SetConnMaxLifetime(limits.maxLifetime)
	rawDb.SetConnMaxIdleTime(limits.maxIdleTime)

	if !cfg.SkipMigrations {
		if err := migratePostgres(rawDb, cfg.DBName); err != nil {
			return nil, fmt.Errorf("unable to migrate inventory "+
				"store: %w", err)
		}
	}

	return &PostgresStore{
		cfg: cfg,
		BaseDB: &BaseDB{
			DB:      rawDb,
			Queries: sqlc.NewPostgres(rawDb),
		},
	}, nil
}

// migratePostgres applies the embedded migrations, translated to postgres
// column types, to the given database.
func migratePostgres(db *sql.DB, dbName string) error {
	driver, err := postgres_migrate.WithInstance(
		db, &postgres_migrate.Config{},
	)
	if err != nil {
		return err
	}

	return applyMigrations(
		newReplacerFS(sqlSchemas, postgresTypes), driver,
		"sqlc/migrations", dbName,
	)
}

// NewTestPostgresDB starts a throwaway postgres container and returns a
// migrated store on top of it. The container is removed when the test ends.
func NewTestPostgresDB(t *testing.T) *PostgresStore {
	t.Helper()

	sqlFixture := NewTestPgFixture(t, postgresFixtureLifetime)
	t.Cleanup(func() {
		sqlFixture.TearDown(t)
	})

	store, err := NewPostgresStore(sqlFixture.GetConfig())
	require.NoError(t, err)

	return store
}
