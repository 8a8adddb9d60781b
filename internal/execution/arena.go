package execution

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/yanun0323/errors"
)

const arenaFileExt = ".state"

// arenaRecord is the on-disk form of one persisted instance.
type arenaRecord struct {
	Algorithm string `json:"algorithm"`
	Symbol    string `json:"symbol"`
	Plugin    bool   `json:"plugin"`
	State     []byte `json:"state"`
}

// StateArena persists plugin and algorithm state snapshots keyed by
// execution-context id, one file per instance. It lets algorithm state
// survive a process restart.
type StateArena struct {
	dir string
}

// NewStateArena creates the arena directory if needed.
func NewStateArena(dir string) (*StateArena, error) {
	if dir == "" {
		return nil, errors.New("arena: dir is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create arena dir")
	}
	return &StateArena{dir: dir}, nil
}

// Save writes one instance snapshot, replacing any previous one.
func (a *StateArena) Save(contextID string, record arenaRecord) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return os.WriteFile(a.path(contextID), raw, 0o644)
}

// Load reads one instance snapshot.
func (a *StateArena) Load(contextID string) (arenaRecord, error) {
	raw, err := os.ReadFile(a.path(contextID))
	if err != nil {
		return arenaRecord{}, err
	}
	var record arenaRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return arenaRecord{}, errors.Wrap(err, "decode arena record").With("contextId", contextID)
	}
	return record, nil
}

// List returns persisted context ids in sorted order.
func (a *StateArena) List() ([]string, error) {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, arenaFileExt) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, arenaFileExt))
	}
	sort.Strings(ids)
	return ids, nil
}

// Remove deletes one persisted snapshot. Missing files are not an error.
func (a *StateArena) Remove(contextID string) error {
	err := os.Remove(a.path(contextID))
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

func (a *StateArena) path(contextID string) string {
	return filepath.Join(a.dir, contextID+arenaFileExt)
}
