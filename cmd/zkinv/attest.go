package main

import (
	"github.com/lightninglabs/zkinv/inventory"
	"github.com/urfave/cli"
)

var attestCommands = []cli.Command{
	{
		Name:      "attest",
		ShortName: "a",
		Usage:     "prove facts about an inventory without revealing it",
		Category:  "Attestations",
		Subcommands: []cli.Command{
			attestHoldingCommand,
			attestCapacityCommand,
		},
	},
}

var attestHoldingCommand = cli.Command{
	Name:  "holding",
	Usage: "prove the inventory holds at least a minimum of an item",
	Flags: []cli.Flag{
		idFlag,
		itemFlag,
		cli.Uint64Flag{
			Name:  minQuantityName,
			Usage: "the minimum quantity to prove",
		},
	},
	Action: wrapAction(attestHolding),
}

func attestHolding(ctx *cli.Context) error {
	id, err := parseInventoryID(ctx, inventoryIDName)
	if err != nil {
		return err
	}

	client, cleanUp, err := getClient(ctx)
	if err != nil {
		return err
	}
	defer cleanUp()

	att, err := client.AttestHolding(
		getContext(), id, inventory.ItemID(ctx.Uint64(itemIDName)),
		ctx.Uint64(minQuantityName),
	)
	if err != nil {
		return err
	}

	printJSON(marshalAttestation(att))
	return nil
}

var attestCapacityCommand = cli.Command{
	Name:   "capacity",
	Usage:  "prove the inventory is within its capacity",
	Flags:  []cli.Flag{idFlag},
	Action: wrapAction(attestCapacity),
}

func attestCapacity(ctx *cli.Context) error {
	id, err := parseInventoryID(ctx, inventoryIDName)
	if err != nil {
		return err
	}

	client, cleanUp, err := getClient(ctx)
	if err != nil {
		return err
	}
	defer cleanUp()

	att, err := client.AttestCapacity(getContext(), id)
	if err != nil {
		return err
	}

	printJSON(marshalAttestation(att))
	return nil
}
