package zkinv

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/lightninglabs/zkinv/invfreighter"
	"github.com/lightninglabs/zkinv/inventory"
	"github.com/lightninglabs/zkinv/prover"
	"github.com/lightningnetwork/lnd/build"
)

// Client is the main construct of the inventory client. It owns the batch
// porter and the backends it talks to.
type Client struct {
	started  int32
	shutdown int32

	cfg *Config
}

// NewClient creates a new client given the passed config.
func NewClient(cfg *Config) *Client {
	return &Client{
		cfg: cfg,
	}
}

// Start checks the backends and starts the batch porter.
func (c *Client) Start(ctx context.Context) error {
	if atomic.AddInt32(&c.started, 1) != 1 {
		return nil
	}

	// Show version at startup.
	zkinvLog.Infof("Version: %s, build=%s, logging=%s, debuglevel=%s",
		Version(), build.Deployment, build.LoggingType,
		c.cfg.DebugLevel)

	if checker, ok := c.cfg.Prover.(HealthChecker); ok {
		if err := checker.Health(ctx); err != nil {
			zkinvLog.Warnf("Proof server not healthy: %v", err)
		}
	}

	if err := c.cfg.BatchPorter.Start(); err != nil {
		return fmt.Errorf("unable to start batch porter: %w", err)
	}

	return nil
}

// Stop shuts down the batch porter and closes the database.
func (c *Client) Stop() error {
	if atomic.AddInt32(&c.shutdown, 1) != 1 {
		return nil
	}

	zkinvLog.Infof("Stopping client")

	if err := c.cfg.BatchPorter.Stop(); err != nil {
		return err
	}

	if c.cfg.DatabaseConfig != nil && c.cfg.DB != nil {
		if err := c.cfg.DB.Close(); err != nil {
			return fmt.Errorf("unable to close database: %w", err)
		}
	}

	return nil
}

// CreateInventory creates a new empty inventory owned by our signer.
func (c *Client) CreateInventory(ctx context.Context,
	maxCapacity uint64) (*inventory.Record, error) {

	return c.cfg.BatchPorter.CreateInventory(ctx, maxCapacity)
}

// ExecuteBatch commits all entries in a single atomic transaction.
func (c *Client) ExecuteBatch(ctx context.Context,
	entries ...invfreighter.Entry) (*invfreighter.BatchResult, error) {

	return c.cfg.BatchPorter.ExecuteBatch(
		ctx, invfreighter.NewBatch(entries...),
	)
}

// Status returns the combined on-chain and local view of an inventory.
func (c *Client) Status(ctx context.Context,
	id inventory.ID) (*invfreighter.InventoryStatus, error) {

	return c.cfg.BatchPorter.Status(ctx, id)
}

// ListInventories returns all inventories with a locally stored state.
func (c *Client) ListInventories(ctx context.Context) ([]inventory.ID,
	error) {

	return c.cfg.StateStore.ListInventories(ctx)
}

// ListBatches returns the most recent journaled batches.
func (c *Client) ListBatches(ctx context.Context,
	limit int) ([]*invfreighter.BatchRecord, error) {

	return c.cfg.BatchPorter.ListBatches(ctx, limit)
}

// AttestHolding proves that an inventory holds at least minQuantity units of
// an item.
func (c *Client) AttestHolding(ctx context.Context, id inventory.ID,
	item inventory.ItemID, minQuantity uint64) (*prover.Attestation,
	error) {

	return c.cfg.BatchPorter.AttestHolding(ctx, id, item, minQuantity)
}

// AttestCapacity proves that an inventory is within its capacity.
func (c *Client) AttestCapacity(ctx context.Context,
	id inventory.ID) (*prover.Attestation, error) {

	return c.cfg.BatchPorter.AttestCapacity(ctx, id)
}

// Registry returns the current item registry of the ledger.
func (c *Client) Registry(ctx context.Context) (*inventory.Registry, error) {
	return c.cfg.Ledger.FetchRegistry(ctx)
}

// SetRegistry replaces the item registry of a development ledger.
func (c *Client) SetRegistry(ctx context.Context,
	volumes map[inventory.ItemID]uint64) (*inventory.Registry, error) {

	if c.cfg.RegistryAdmin == nil {
		return nil, fmt.Errorf("ledger does not allow registry " +
			"changes")
	}

	return c.cfg.RegistryAdmin.SetRegistry(ctx, volumes)
}
