package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/lightninglabs/zkinv/fn"
	"github.com/lightninglabs/zkinv/invfreighter"
	"github.com/lightninglabs/zkinv/inventory"
	"github.com/lightninglabs/zkinv/prover"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// entryTypeTransfer marks a batch file entry as a transfer.
const entryTypeTransfer = "transfer"

type jsonRecord struct {
	ID          inventory.ID         `json:"id"`
	Commitment  inventory.Commitment `json:"commitment"`
	Nonce       uint64               `json:"nonce"`
	Owner       string               `json:"owner"`
	MaxCapacity uint64               `json:"max_capacity"`
}

func marshalRecord(r *inventory.Record) *jsonRecord {
	var owner string
	if r.Owner != nil {
		owner = hex.EncodeToString(schnorr.SerializePubKey(r.Owner))
	}

	return &jsonRecord{
		ID:          r.ID,
		Commitment:  r.Commitment,
		Nonce:       r.Nonce,
		Owner:       owner,
		MaxCapacity: r.MaxCapacity,
	}
}

type jsonStatus struct {
	Record     *jsonRecord      `json:"record"`
	Stale      bool             `json:"stale"`
	Slots      []inventory.Slot `json:"slots"`
	HasState   bool             `json:"has_state"`
	UsedVolume uint64           `json:"used_volume"`
	InSync     bool             `json:"in_sync"`
}

func marshalStatus(s *invfreighter.InventoryStatus) *jsonStatus {
	status := &jsonStatus{
		Record:     marshalRecord(s.Record),
		Stale:      s.Stale,
		Slots:      []inventory.Slot{},
		UsedVolume: s.UsedVolume,
		InSync:     s.InSync,
	}
	if s.State != nil {
		status.HasState = true
		status.Slots = s.State.SlotList()
	}

	return status
}

type jsonBatchResult struct {
	LogID     int64         `json:"log_id"`
	TxDigest  string        `json:"tx_digest"`
	Records   []*jsonRecord `json:"records"`
	NumProofs int           `json:"num_proofs"`
}

func marshalBatchResult(r *invfreighter.BatchResult) *jsonBatchResult {
	ids := maps.Keys(r.Receipt.Records)
	slices.SortFunc(ids, func(a, b inventory.ID) bool {
		return bytes.Compare(a[:], b[:]) < 0
	})

	records := make([]*jsonRecord, 0, len(ids))
	for _, id := range ids {
		records = append(records, marshalRecord(r.Receipt.Records[id]))
	}

	return &jsonBatchResult{
		LogID:     r.LogID,
		TxDigest:  r.Receipt.Digest.String(),
		Records:   records,
		NumProofs: len(r.Artifacts),
	}
}

type jsonBatchRecord struct {
	ID          int64          `json:"id"`
	State       string         `json:"state"`
	Inventories []inventory.ID `json:"inventories"`
	NumEntries  int            `json:"num_entries"`
	TxDigest    string         `json:"tx_digest,omitempty"`
	NumProofs   int            `json:"num_proofs"`
	Failure     string         `json:"failure,omitempty"`
	CreatedAt   string         `json:"created_at"`
	UpdatedAt   string         `json:"updated_at"`
}

func marshalBatchRecord(r *invfreighter.BatchRecord) *jsonBatchRecord {
	var digest string
	if r.TxDigest != nil {
		digest = r.TxDigest.String()
	}

	return &jsonBatchRecord{
		ID:          r.ID,
		State:       r.State.String(),
		Inventories: r.Inventories,
		NumEntries:  r.NumEntries,
		TxDigest:    digest,
		NumProofs:   len(r.Artifacts),
		Failure:     r.Failure,
		CreatedAt:   r.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   r.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

type jsonAttestation struct {
	Proof        string                   `json:"proof"`
	PublicInputs []inventory.FieldElement `json:"public_inputs"`
}

func marshalAttestation(a *prover.Attestation) *jsonAttestation {
	return &jsonAttestation{
		Proof:        hex.EncodeToString(a.Proof),
		PublicInputs: a.PublicInputs,
	}
}

type jsonRegistry struct {
	Root  inventory.FieldElement `json:"root"`
	Items []jsonRegistryItem     `json:"items"`
}

type jsonRegistryItem struct {
	ItemID inventory.ItemID `json:"item_id"`
	Volume uint64           `json:"volume"`
}

func marshalRegistry(r *inventory.Registry) *jsonRegistry {
	ids := maps.Keys(r.Volumes)
	slices.Sort(ids)

	return &jsonRegistry{
		Root: r.Root,
		Items: fn.Map(ids, func(id inventory.ItemID) jsonRegistryItem {
			return jsonRegistryItem{
				ItemID: id,
				Volume: r.Volumes[id],
			}
		}),
	}
}

// batchFileEntry is a single entry of a batch file.
type batchFileEntry struct {
	Type        string `json:"type"`
	Inventory   string `json:"inventory"`
	Destination string `json:"destination,omitempty"`
	ItemID      uint32 `json:"item_id"`
	Amount      uint64 `json:"amount"`
}

// toEntry converts the file entry into a batch entry.
func (b batchFileEntry) toEntry() (invfreighter.Entry, error) {
	id, err := inventory.NewIDFromString(b.Inventory)
	if err != nil {
		return invfreighter.Entry{}, err
	}
	item := inventory.ItemID(b.ItemID)

	if strings.ToLower(b.Type) == entryTypeTransfer {
		if b.Destination == "" {
			return invfreighter.Entry{}, fmt.Errorf("%w: transfer "+
				"without destination", inventory.ErrInvalidOperation)
		}

		dest, err := inventory.NewIDFromString(b.Destination)
		if err != nil {
			return invfreighter.Entry{}, err
		}

		return invfreighter.TransferEntry(inventory.Transfer{
			Source:      id,
			Destination: dest,
			ItemID:      item,
			Amount:      b.Amount,
		}), nil
	}

	opType, err := inventory.ParseOpType(b.Type)
	if err != nil {
		return invfreighter.Entry{}, err
	}
	if b.Destination != "" {
		return invfreighter.Entry{}, fmt.Errorf("%w: %v with "+
			"destination", inventory.ErrInvalidOperation, opType)
	}

	return invfreighter.Entry{
		Inventory: id,
		ItemID:    item,
		Amount:    b.Amount,
		Type:      opType,
	}, nil
}

// parseBatchFile reads a JSON list of batch entries.
func parseBatchFile(r io.Reader) ([]invfreighter.Entry, error) {
	var fileEntries []batchFileEntry
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&fileEntries); err != nil {
		return nil, fmt.Errorf("unable to decode batch file: %w", err)
	}
	if len(fileEntries) == 0 {
		return nil, fmt.Errorf("%w: batch file has no entries",
			inventory.ErrInvalidOperation)
	}

	entries := make([]invfreighter.Entry, 0, len(fileEntries))
	for i, e := range fileEntries {
		entry, err := e.toEntry()
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// parseVolumes parses registry items of the form <item_id>=<volume>.
func parseVolumes(args []string) (map[inventory.ItemID]uint64, error) {
	volumes := make(map[inventory.ItemID]uint64, len(args))
	for _, arg := range args {
		parts := strings.SplitN(arg, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid registry item %q, "+
				"expected <item_id>=<volume>", arg)
		}

		id, err := strconv.ParseUint(parts[0], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid item id %q: %w",
				parts[0], err)
		}
		volume, err := strconv.ParseUint(parts[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid volume %q: %w",
				parts[1], err)
		}

		itemID := inventory.ItemID(id)
		if _, ok := volumes[itemID]; ok {
			return nil, fmt.Errorf("item %d listed twice", itemID)
		}
		volumes[itemID] = volume
	}

	return volumes, nil
}
