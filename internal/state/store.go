package state

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"cosmossdk.io/log"
	"cosmossdk.io/store/metrics"
	pruningtypes "cosmossdk.io/store/pruning/types"
	"cosmossdk.io/store/rootmulti"
	storetypes "cosmossdk.io/store/types"
	dbm "github.com/cosmos/cosmos-db"
)

// StoreKey names the single IAVL substore holding the pool chain state.
const StoreKey = "sweep"

// stateKey holds the JSON-encoded State. The layout lives at a fixed key,
// independent of which logic implementation wrote it.
var stateKey = []byte{0x01}

// Store persists committed State in a versioned IAVL multistore over a
// cosmos-db backend. Every Save commits one version, so past heights stay
// readable until pruned.
type Store struct {
	db  dbm.DB
	cms *rootmulti.Store
	key *storetypes.KVStoreKey
}

// OpenStore opens (or creates) the state database under <home>/data.
// backend is a cosmos-db backend name ("goleveldb", "memdb", ...).
func OpenStore(home string, backend string, logger log.Logger) (*Store, error) {
	if backend == "" {
		backend = string(dbm.GoLevelDBBackend)
	}
	var db dbm.DB
	if dbm.BackendType(backend) == dbm.MemDBBackend {
		db = dbm.NewMemDB()
	} else {
		var err error
		db, err = dbm.NewDB("state", dbm.BackendType(backend), filepath.Join(home, "data"))
		if err != nil {
			return nil, fmt.Errorf("open state db: %w", err)
		}
	}
	s, err := NewStore(db, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewStore mounts the state store on db and loads its latest version.
func NewStore(db dbm.DB, logger log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	cms := rootmulti.NewStore(db, logger.With("module", "store"), metrics.NewNoOpMetrics())
	cms.SetPruning(pruningtypes.NewPruningOptions(pruningtypes.PruningDefault))
	key := storetypes.NewKVStoreKey(StoreKey)
	cms.MountStoreWithDB(key, storetypes.StoreTypeIAVL, nil)
	if err := cms.LoadLatestVersion(); err != nil {
		return nil, fmt.Errorf("load state store: %w", err)
	}
	return &Store{db: db, cms: cms, key: key}, nil
}

// Load returns the committed state, or a fresh State if nothing was saved yet.
func (s *Store) Load() (*State, error) {
	b := s.cms.GetCommitKVStore(s.key).Get(stateKey)
	if b == nil {
		return NewState(), nil
	}
	st, err := decodeState(b)
	if err != nil {
		return nil, err
	}
	if v := s.cms.LastCommitID().Version; v != st.Height {
		return nil, fmt.Errorf("state height %d does not match committed version %d", st.Height, v)
	}
	return st, nil
}

// LoadAt returns the state committed at height.
func (s *Store) LoadAt(height int64) (*State, error) {
	cache, err := s.cms.CacheMultiStoreWithVersion(height)
	if err != nil {
		return nil, fmt.Errorf("state at height %d: %w", height, err)
	}
	b := cache.GetKVStore(s.key).Get(stateKey)
	if b == nil {
		return nil, fmt.Errorf("no state at height %d", height)
	}
	return decodeState(b)
}

// Save writes st and commits it as version st.Height.
func (s *Store) Save(st *State) (storetypes.CommitID, error) {
	if st == nil {
		return storetypes.CommitID{}, fmt.Errorf("state is nil")
	}
	b, err := json.Marshal(st)
	if err != nil {
		return storetypes.CommitID{}, fmt.Errorf("encode state: %w", err)
	}
	if st.Height <= 0 {
		return storetypes.CommitID{}, fmt.Errorf("cannot commit height %d", st.Height)
	}
	// Store versions track block heights, including chains whose initial
	// height is above 1.
	switch last := s.cms.LastCommitID().Version; {
	case last == 0 && st.Height > 1:
		if err := s.cms.SetInitialVersion(st.Height); err != nil {
			return storetypes.CommitID{}, fmt.Errorf("set initial version: %w", err)
		}
	case last != 0 && st.Height != last+1:
		return storetypes.CommitID{}, fmt.Errorf("saving height %d, store expects %d", st.Height, last+1)
	}
	s.cms.GetCommitKVStore(s.key).Set(stateKey, b)
	return s.cms.Commit(), nil
}

func (s *Store) LastCommitID() storetypes.CommitID {
	return s.cms.LastCommitID()
}

func (s *Store) Close() error {
	return s.db.Close()
}
