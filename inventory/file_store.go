package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// storedState is the on-disk form of a State.
type storedState struct {
	Blinding string `json:"blinding"`
	Slots    []Slot `json:"slots"`
}

// FileStore is a StateStore backed by a single JSON file mapping an
// inventory id to its blinding factor and slots. Every write replaces the
// whole file through a rename, so a crash leaves either the old or the new
// contents behind.
type FileStore struct {
	path string

	mu sync.Mutex
}

// A compile time assertion to ensure FileStore meets the StateStore
// interface.
var _ StateStore = (*FileStore)(nil)

// NewFileStore creates a store persisting to the given file. The file is
// created on the first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// load reads the whole file. A missing file is an empty store.
func (f *FileStore) load() (map[ID]*State, error) {
	raw, err := os.ReadFile(f.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return make(map[ID]*State), nil

	case err != nil:
		return nil, fmt.Errorf("unable to read state file: %w", err)
	}

	var stored map[string]storedState
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("unable to decode state file: %w", err)
	}

	states := make(map[ID]*State, len(stored))
	for idStr, entry := range stored {
		id, err := NewIDFromString(idStr)
		if err != nil {
			return nil, err
		}

		blinding, err := ParseBlinding(entry.Blinding)
		if err != nil {
			return nil, fmt.Errorf("inventory %v: %w", id, err)
		}

		state, err := NewState(entry.Slots, blinding)
		if err != nil {
			return nil, fmt.Errorf("inventory %v: %w", id, err)
		}
		states[id] = state
	}

	return states, nil
}

// store atomically replaces the file with the given states.
func (f *FileStore) store(states map[ID]*State) error {
	stored := make(map[string]storedState, len(states))
	for id, state := range states {
		stored[id.String()] = storedState{
			Blinding: state.Blinding.String(),
			Slots:    state.SlotList(),
		}
	}

	raw, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), f.path)
}

// FetchState returns the stored state of an inventory.
func (f *FileStore) FetchState(_ context.Context, id ID) (*State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	states, err := f.load()
	if err != nil {
		return nil, err
	}

	state, ok := states[id]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrStateNotFound, id)
	}

	return state, nil
}

// PutState overwrites the state of a single inventory.
func (f *FileStore) PutState(ctx context.Context, id ID, state *State) error {
	return f.PutStates(ctx, map[ID]*State{id: state})
}

// PutStates overwrites the states of several inventories in one file
// replacement.
func (f *FileStore) PutStates(_ context.Context,
	updates map[ID]*State) error {

	f.mu.Lock()
	defer f.mu.Unlock()

	states, err := f.load()
	if err != nil {
		return err
	}

	for id, state := range updates {
		states[id] = state.Copy()
	}

	if err := f.store(states); err != nil {
		return fmt.Errorf("unable to write state file: %w", err)
	}

	log.Debugf("Stored secret state of %d inventories in %v",
		len(updates), f.path)

	return nil
}

// ListInventories returns the ids of all stored inventories.
func (f *FileStore) ListInventories(_ context.Context) ([]ID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	states, err := f.load()
	if err != nil {
		return nil, err
	}

	ids := maps.Keys(states)
	slices.SortFunc(ids, func(a, b ID) bool {
		return slices.Compare(a[:], b[:]) < 0
	})

	return ids, nil
}
