package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	dbm "github.com/cosmos/cosmos-db"
)

const (
	BackendFile      = "file"
	BackendGoLevelDB = "goleveldb"
	BackendMemDB     = "memdb"
)

var stateKey = []byte("state")

// Store persists the application state between blocks.
type Store interface {
	Load() (*State, error)
	Save(st *State) error
	Close() error
}

// OpenStore opens the persistence backend rooted at dir.
func OpenStore(backend, dir string) (Store, error) {
	switch backend {
	case "", BackendFile:
		return NewFileStore(dir), nil
	case BackendGoLevelDB:
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir db dir: %w", err)
		}
		db, err := dbm.NewGoLevelDB("engstate", dir, nil)
		if err != nil {
			return nil, fmt.Errorf("open goleveldb: %w", err)
		}
		return NewDBStore(db), nil
	case BackendMemDB:
		return NewDBStore(dbm.NewMemDB()), nil
	default:
		return nil, fmt.Errorf("unknown state backend %q", backend)
	}
}

// FileStore keeps the state as a single JSON document at <dir>/state.json.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (f *FileStore) Load() (*State, error) {
	b, err := os.ReadFile(filepath.Join(f.dir, "state.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return NewState(), nil
		}
		return nil, fmt.Errorf("read state: %w", err)
	}
	return Decode(b)
}

func (f *FileStore) Save(st *State) error {
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("mkdir home: %w", err)
	}
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	// Write-then-rename so a crash mid-write keeps the previous block's state.
	tmp := filepath.Join(f.dir, "state.json.tmp")
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(f.dir, "state.json")); err != nil {
		return fmt.Errorf("rename state: %w", err)
	}
	return nil
}

func (f *FileStore) Close() error { return nil }

// DBStore keeps the state in a cosmos-db key/value database.
type DBStore struct {
	db dbm.DB
}

func NewDBStore(db dbm.DB) *DBStore {
	return &DBStore{db: db}
}

func (d *DBStore) Load() (*State, error) {
	b, err := d.db.Get(stateKey)
	if err != nil {
		return nil, fmt.Errorf("read state: %w", err)
	}
	if b == nil {
		return NewState(), nil
	}
	return Decode(b)
}

func (d *DBStore) Save(st *State) error {
	b, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := d.db.SetSync(stateKey, b); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}

func (d *DBStore) Close() error {
	return d.db.Close()
}
