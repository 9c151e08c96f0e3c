package main

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/lightninglabs/zkinv/ledger"
	"github.com/urfave/cli"
)

var newKeyCommand = cli.Command{
	Name:  "new-key",
	Usage: "create the signing key that owns new inventories",
	Description: "Generates a fresh private key and writes it to the " +
		"configured key file. An existing key file is never " +
		"overwritten.",
	Action: wrapAction(newKey),
}

func newKey(ctx *cli.Context) error {
	cfg, _, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	signer, err := ledger.CreateKeyFile(cfg.Signer.KeyFile)
	if err != nil {
		return err
	}

	pubKey, err := signer.PubKey()
	if err != nil {
		return err
	}

	printJSON(struct {
		KeyFile string `json:"key_file"`
		PubKey  string `json:"pub_key"`
	}{
		KeyFile: cfg.Signer.KeyFile,
		PubKey:  hex.EncodeToString(schnorr.SerializePubKey(pubKey)),
	})
	return nil
}

var registryCommands = []cli.Command{
	{
		Name:      "registry",
		ShortName: "r",
		Usage:     "inspect or replace the item registry",
		Category:  "Registry",
		Subcommands: []cli.Command{
			showRegistryCommand,
			setRegistryCommand,
		},
	},
}

var showRegistryCommand = cli.Command{
	Name:   "show",
	Usage:  "show the item registry of the ledger",
	Action: wrapAction(showRegistry),
}

func showRegistry(ctx *cli.Context) error {
	client, cleanUp, err := getClient(ctx)
	if err != nil {
		return err
	}
	defer cleanUp()

	registry, err := client.Registry(getContext())
	if err != nil {
		return err
	}

	printJSON(marshalRegistry(registry))
	return nil
}

var setRegistryCommand = cli.Command{
	Name:      "set",
	Usage:     "replace the item registry of a development ledger",
	ArgsUsage: "<item_id>=<volume> [<item_id>=<volume> ...]",
	Action:    wrapAction(setRegistry),
}

func setRegistry(ctx *cli.Context) error {
	if ctx.NArg() == 0 {
		return fmt.Errorf("at least one registry item is required")
	}

	volumes, err := parseVolumes(ctx.Args())
	if err != nil {
		return err
	}

	client, cleanUp, err := getClient(ctx)
	if err != nil {
		return err
	}
	defer cleanUp()

	registry, err := client.SetRegistry(getContext(), volumes)
	if err != nil {
		return err
	}

	printJSON(marshalRegistry(registry))
	return nil
}
