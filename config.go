package zkinv

import (
	"context"
	"io"

	"github.com/lightninglabs/zkinv/invfreighter"
	"github.com/lightninglabs/zkinv/inventory"
	"github.com/lightninglabs/zkinv/ledger"
	"github.com/lightninglabs/zkinv/prover"
	"github.com/lightningnetwork/lnd/build"
	"github.com/lightningnetwork/lnd/signal"
)

// HealthChecker is implemented by backends that can report whether they're
// reachable.
type HealthChecker interface {
	// Health returns an error if the backend can't be used.
	Health(ctx context.Context) error
}

// RegistryAdmin can replace the item registry of a ledger. Only development
// ledgers implement it.
type RegistryAdmin interface {
	// SetRegistry replaces the item registry.
	SetRegistry(ctx context.Context,
		volumes map[inventory.ItemID]uint64) (*inventory.Registry, error)
}

// DatabaseConfig is the config that holds all the persistence related structs
// and interfaces needed for the client to function.
type DatabaseConfig struct {
	// StateStore holds the secret inventory states.
	StateStore inventory.StateStore

	// DB, if set, is closed when the client stops.
	DB io.Closer
}

// Config is the main config of the inventory client.
type Config struct {
	DebugLevel string

	Prover prover.Prover

	Ledger ledger.Ledger

	// RegistryAdmin, if set, allows the item registry to be replaced.
	RegistryAdmin RegistryAdmin

	Signer ledger.Signer

	BatchPorter *invfreighter.BatchPorter

	SignalInterceptor signal.Interceptor

	// LogWriter is the root logger that all of the client's subloggers
	// are hooked up to.
	LogWriter *build.RotatingLogWriter

	*DatabaseConfig
}
