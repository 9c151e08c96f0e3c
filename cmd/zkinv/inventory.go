package main

import (
	"fmt"
	"os"

	"github.com/lightninglabs/zkinv/fn"
	"github.com/lightninglabs/zkinv/invfreighter"
	"github.com/lightninglabs/zkinv/inventory"
	"github.com/urfave/cli"
)

var (
	inventoryIDName   = "id"
	itemIDName        = "item"
	amountName        = "amount"
	capacityName      = "capacity"
	sourceName        = "from"
	destinationName   = "to"
	batchFileName     = "file"
	limitName         = "limit"
	minQuantityName   = "min"
	defaultBatchLimit = 20
)

var inventoryCommands = []cli.Command{
	createCommand,
	depositCommand,
	withdrawCommand,
	transferCommand,
	batchCommand,
	listCommand,
	statusCommand,
	batchesCommand,
}

var idFlag = cli.StringFlag{
	Name:  inventoryIDName,
	Usage: "the object id of the inventory",
}

var itemFlag = cli.Uint64Flag{
	Name:  itemIDName,
	Usage: "the id of the item",
}

var amountFlag = cli.Uint64Flag{
	Name:  amountName,
	Usage: "the number of units",
}

var createCommand = cli.Command{
	Name:      "create",
	ShortName: "c",
	Usage:     "create a new empty inventory",
	Description: "Creates an inventory owned by the local signing key. " +
		"The inventory starts out empty with a fresh blinding.",
	Flags: []cli.Flag{
		cli.Uint64Flag{
			Name: capacityName,
			Usage: "the maximum volume the inventory may hold, 0 " +
				"for no limit",
		},
	},
	Action: wrapAction(createInventory),
}

func createInventory(ctx *cli.Context) error {
	client, cleanUp, err := getClient(ctx)
	if err != nil {
		return err
	}
	defer cleanUp()

	record, err := client.CreateInventory(
		getContext(), ctx.Uint64(capacityName),
	)
	if err != nil {
		return err
	}

	printJSON(marshalRecord(record))
	return nil
}

// parseInventoryID parses the inventory id flag with the given name.
func parseInventoryID(ctx *cli.Context, name string) (inventory.ID, error) {
	if !ctx.IsSet(name) {
		return inventory.ID{}, fmt.Errorf("--%s is required", name)
	}

	return inventory.NewIDFromString(ctx.String(name))
}

// parseItem parses the item and amount flags.
func parseItem(ctx *cli.Context) (inventory.ItemID, uint64, error) {
	if !ctx.IsSet(itemIDName) {
		return 0, 0, fmt.Errorf("--%s is required", itemIDName)
	}

	item := ctx.Uint64(itemIDName)
	if item > uint64(inventory.MaxItemID) {
		return 0, 0, fmt.Errorf("--%s must not exceed %d", itemIDName,
			inventory.MaxItemID)
	}

	amount := ctx.Uint64(amountName)
	if amount == 0 {
		return 0, 0, fmt.Errorf("--%s must be positive", amountName)
	}

	return inventory.ItemID(item), amount, nil
}

// executeEntries runs the entries as one batch and prints the result.
func executeEntries(ctx *cli.Context, entries ...invfreighter.Entry) error {
	client, cleanUp, err := getClient(ctx)
	if err != nil {
		return err
	}
	defer cleanUp()

	result, err := client.ExecuteBatch(getContext(), entries...)
	if err != nil {
		return err
	}

	printJSON(marshalBatchResult(result))
	return nil
}

var depositCommand = cli.Command{
	Name:      "deposit",
	ShortName: "d",
	Usage:     "add items to an inventory",
	Flags:     []cli.Flag{idFlag, itemFlag, amountFlag},
	Action:    wrapAction(singleOp(inventory.OpDeposit)),
}

var withdrawCommand = cli.Command{
	Name:      "withdraw",
	ShortName: "w",
	Usage:     "remove items from an inventory",
	Flags:     []cli.Flag{idFlag, itemFlag, amountFlag},
	Action:    wrapAction(singleOp(inventory.OpWithdraw)),
}

// singleOp returns the action of a single deposit or withdraw.
func singleOp(opType inventory.OpType) func(*cli.Context) error {
	return func(ctx *cli.Context) error {
		id, err := parseInventoryID(ctx, inventoryIDName)
		if err != nil {
			return err
		}

		item, amount, err := parseItem(ctx)
		if err != nil {
			return err
		}

		entry := invfreighter.Deposit(id, item, amount)
		if opType == inventory.OpWithdraw {
			entry = invfreighter.Withdraw(id, item, amount)
		}

		return executeEntries(ctx, entry)
	}
}

var transferCommand = cli.Command{
	Name:      "transfer",
	ShortName: "t",
	Usage:     "move items between two inventories",
	Description: "Withdraws the items from the source and deposits " +
		"them into the destination within one atomic transaction.",
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  sourceName,
			Usage: "the object id of the source inventory",
		},
		cli.StringFlag{
			Name:  destinationName,
			Usage: "the object id of the destination inventory",
		},
		itemFlag,
		amountFlag,
	},
	Action: wrapAction(transfer),
}

func transfer(ctx *cli.Context) error {
	src, err := parseInventoryID(ctx, sourceName)
	if err != nil {
		return err
	}
	dest, err := parseInventoryID(ctx, destinationName)
	if err != nil {
		return err
	}

	item, amount, err := parseItem(ctx)
	if err != nil {
		return err
	}

	return executeEntries(ctx, invfreighter.TransferEntry(
		inventory.Transfer{
			Source:      src,
			Destination: dest,
			ItemID:      item,
			Amount:      amount,
		},
	))
}

var batchCommand = cli.Command{
	Name:      "batch",
	ShortName: "b",
	Usage:     "execute several operations in one transaction",
	Description: `
	Reads a JSON list of entries and commits them in a single atomic
	transaction. Each entry has a type (deposit, withdraw or transfer), an
	inventory, an item_id and an amount. Transfers also carry a
	destination.`,
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:      batchFileName,
			Usage:     "the path of the batch file",
			TakesFile: true,
		},
	},
	Action: wrapAction(batch),
}

func batch(ctx *cli.Context) error {
	if !ctx.IsSet(batchFileName) {
		return fmt.Errorf("--%s is required", batchFileName)
	}

	f, err := os.Open(ctx.String(batchFileName))
	if err != nil {
		return err
	}
	defer f.Close()

	entries, err := parseBatchFile(f)
	if err != nil {
		return err
	}

	return executeEntries(ctx, entries...)
}

var listCommand = cli.Command{
	Name:      "list",
	ShortName: "l",
	Usage:     "list all inventories with a local state",
	Action:    wrapAction(listInventories),
}

func listInventories(ctx *cli.Context) error {
	client, cleanUp, err := getClient(ctx)
	if err != nil {
		return err
	}
	defer cleanUp()

	ids, err := client.ListInventories(getContext())
	if err != nil {
		return err
	}

	printJSON(struct {
		Inventories []inventory.ID `json:"inventories"`
	}{
		Inventories: append([]inventory.ID{}, ids...),
	})
	return nil
}

var statusCommand = cli.Command{
	Name:      "status",
	ShortName: "s",
	Usage:     "show the record and local state of an inventory",
	Flags:     []cli.Flag{idFlag},
	Action:    wrapAction(status),
}

func status(ctx *cli.Context) error {
	id, err := parseInventoryID(ctx, inventoryIDName)
	if err != nil {
		return err
	}

	client, cleanUp, err := getClient(ctx)
	if err != nil {
		return err
	}
	defer cleanUp()

	s, err := client.Status(getContext(), id)
	if err != nil {
		return err
	}

	printJSON(marshalStatus(s))
	return nil
}

var batchesCommand = cli.Command{
	Name:  "batches",
	Usage: "list recently executed batches",
	Flags: []cli.Flag{
		cli.IntFlag{
			Name:  limitName,
			Usage: "the maximum number of batches to list",
			Value: defaultBatchLimit,
		},
	},
	Action: wrapAction(listBatches),
}

func listBatches(ctx *cli.Context) error {
	client, cleanUp, err := getClient(ctx)
	if err != nil {
		return err
	}
	defer cleanUp()

	records, err := client.ListBatches(getContext(), ctx.Int(limitName))
	if err != nil {
		return err
	}

	printJSON(struct {
		Batches []*jsonBatchRecord `json:"batches"`
	}{
		Batches: fn.Map(records, marshalBatchRecord),
	})
	return nil
}
