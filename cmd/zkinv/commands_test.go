package main

import (
	"strings"
	"testing"

	"github.com/lightninglabs/zkinv/invfreighter"
	"github.com/lightninglabs/zkinv/inventory"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli"
)

// TestCommandShortNamesUnique ensures that no two commands on the same level
// share a short name.
func TestCommandShortNamesUnique(t *testing.T) {
	t.Parallel()

	var checkLevel func(commands []cli.Command)
	checkLevel = func(commands []cli.Command) {
		seen := make(map[string]string)
		for _, cmd := range commands {
			if cmd.ShortName != "" {
				other, ok := seen[cmd.ShortName]
				require.Falsef(t, ok, "short name %q used by %s "+
					"and %s", cmd.ShortName, other, cmd.Name)

				seen[cmd.ShortName] = cmd.Name
			}

			checkLevel(cmd.Subcommands)
		}
	}

	checkLevel(newApp().Commands)
}

// TestParseBatchFile checks the conversion of batch files into entries.
func TestParseBatchFile(t *testing.T) {
	t.Parallel()

	var (
		idA = inventory.ID{31: 1}
		idB = inventory.ID{31: 2}
	)

	testCases := []struct {
		name    string
		file    string
		entries []invfreighter.Entry
		err     error
	}{{
		name: "mixed batch",
		file: `[
			{"type": "withdraw", "inventory": "0x01",
			 "item_id": 1, "amount": 30},
			{"type": "Deposit", "inventory": "0x02",
			 "item_id": 3, "amount": 10},
			{"type": "transfer", "inventory": "0x01",
			 "destination": "0x02", "item_id": 2, "amount": 5}
		]`,
		entries: []invfreighter.Entry{
			invfreighter.Withdraw(idA, 1, 30),
			invfreighter.Deposit(idB, 3, 10),
			invfreighter.TransferEntry(inventory.Transfer{
				Source:      idA,
				Destination: idB,
				ItemID:      2,
				Amount:      5,
			}),
		},
	}, {
		name: "empty batch",
		file: `[]`,
		err:  inventory.ErrInvalidOperation,
	}, {
		name: "unknown op",
		file: `[{"type": "burn", "inventory": "0x01",
			"item_id": 1, "amount": 1}]`,
		err: inventory.ErrInvalidOperation,
	}, {
		name: "transfer without destination",
		file: `[{"type": "transfer", "inventory": "0x01",
			"item_id": 1, "amount": 1}]`,
		err: inventory.ErrInvalidOperation,
	}, {
		name: "deposit with destination",
		file: `[{"type": "deposit", "inventory": "0x01",
			"destination": "0x02", "item_id": 1, "amount": 1}]`,
		err: inventory.ErrInvalidOperation,
	}}

	for _, tc := range testCases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			entries, err := parseBatchFile(strings.NewReader(tc.file))
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tc.entries, entries)
		})
	}

	// Unknown fields are rejected.
	_, err := parseBatchFile(strings.NewReader(
		`[{"type": "deposit", "inventory": "0x01", "qty": 1}]`,
	))
	require.Error(t, err)

	// So are malformed inventory ids.
	_, err = parseBatchFile(strings.NewReader(
		`[{"type": "deposit", "inventory": "0xzz", "item_id": 1,
		  "amount": 1}]`,
	))
	require.Error(t, err)
}

// TestParseVolumes checks the parsing of registry items.
func TestParseVolumes(t *testing.T) {
	t.Parallel()

	volumes, err := parseVolumes([]string{"1=2", "2=3", "3=5"})
	require.NoError(t, err)
	require.Equal(t, map[inventory.ItemID]uint64{1: 2, 2: 3, 3: 5}, volumes)

	invalid := [][]string{
		{"1"},
		{"a=2"},
		{"1=b"},
		{"1=2", "1=3"},
		{"4294967296=1"},
	}
	for _, args := range invalid {
		_, err := parseVolumes(args)
		require.Error(t, err, args)
	}
}
