// Package world holds the single account/storage state shared by the swap
// engine and every token ledger, and the execution units that mutate it.
package world

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/core/state"
	"github.com/ethereum/go-ethereum/core/tracing"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/ethdb/leveldb"
	"github.com/ethereum/go-ethereum/triedb"
)

// RootFile is the file inside a data directory that records the last
// committed state root.
const RootFile = "root.txt"

// State wraps geth's StateDB. All mutation happens inside Execute.
type State struct {
	mu       sync.Mutex // held for the duration of an outermost execution unit
	disk     ethdb.Database
	trieDB   *triedb.Database
	db       state.Database
	stateDB  *state.StateDB
	rootPath string
	txIndex  int
}

// NewMemoryState creates an empty in-memory world state (for testing and dev nodes).
func NewMemoryState() (*State, error) {
	return newState(rawdb.NewMemoryDatabase(), types.EmptyRootHash, "")
}

// OpenState opens (or creates) a leveldb-backed world state under dir and
// resumes from the root recorded in dir/root.txt.
func OpenState(dir string) (*State, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	root := types.EmptyRootHash
	rootPath := filepath.Join(dir, RootFile)
	data, err := os.ReadFile(rootPath)
	switch {
	case err == nil:
		root, err = ParseRoot(string(data))
		if err != nil {
			return nil, err
		}
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("read state root: %w", err)
	}

	ldb, err := leveldb.New(filepath.Join(dir, "chaindata"), 128, 1024, "", false)
	if err != nil {
		return nil, fmt.Errorf("open leveldb: %w", err)
	}

	s, err := newState(rawdb.NewDatabase(ldb), root, rootPath)
	if err != nil {
		ldb.Close()
		return nil, err
	}
	return s, nil
}

func newState(disk ethdb.Database, root common.Hash, rootPath string) (*State, error) {
	tdb := triedb.NewDatabase(disk, nil)
	sdb := state.NewDatabase(tdb, nil)

	stateDB, err := state.New(root, sdb)
	if err != nil {
		return nil, fmt.Errorf("open state at %s: %w", root.Hex(), err)
	}

	return &State{
		disk:     disk,
		trieDB:   tdb,
		db:       sdb,
		stateDB:  stateDB,
		rootPath: rootPath,
	}, nil
}

// ParseRoot validates and decodes a 0x-prefixed 32-byte state root.
func ParseRoot(s string) (common.Hash, error) {
	rootStr := strings.TrimSpace(s)
	if !(len(rootStr) == 66 && (rootStr[:2] == "0x" || rootStr[:2] == "0X")) {
		return common.Hash{}, fmt.Errorf("invalid state root format: %q", rootStr)
	}
	return common.HexToHash(rootStr), nil
}

// Close releases the underlying database.
func (s *State) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disk.Close()
}

// GetState reads a storage slot. Callers run inside Execute or View.
func (s *State) GetState(addr common.Address, slot common.Hash) common.Hash {
	return s.stateDB.GetState(addr, slot)
}

// SetState writes a storage slot. Callers run inside Execute.
func (s *State) SetState(addr common.Address, slot, value common.Hash) {
	s.stateDB.SetState(addr, slot, value)
}

// Touch gives addr a non-zero nonce so a storage-only contract account is
// never treated as empty.
func (s *State) Touch(addr common.Address) {
	if s.stateDB.GetNonce(addr) == 0 {
		s.stateDB.SetNonce(addr, 1, tracing.NonceChangeUnspecified)
	}
}

// Exists reports whether addr has been touched.
func (s *State) Exists(addr common.Address) bool {
	return s.stateDB.GetNonce(addr) > 0
}

// AddLog records a log for the transaction of the running unit. The returned
// log carries the index assigned by the StateDB.
func (s *State) AddLog(l *types.Log) *types.Log {
	s.stateDB.AddLog(l)
	return l
}

// Logs returns copies of the logs recorded for txHash since the last commit.
func (s *State) Logs(txHash common.Hash) []*types.Log {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*types.Log
	for _, l := range s.stateDB.Logs() {
		if l.TxHash != txHash {
			continue
		}
		cp := *l
		cp.Topics = append([]common.Hash(nil), l.Topics...)
		cp.Data = append([]byte(nil), l.Data...)
		out = append(out, &cp)
	}
	return out
}

// Root returns the current state root without committing.
func (s *State) Root() common.Hash {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateDB.IntermediateRoot(false)
}

// Commit commits the current state, flushes it to disk and records the root.
func (s *State) Commit(blockNum uint64) (common.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	root, err := s.stateDB.Commit(blockNum, false, false)
	if err != nil {
		return common.Hash{}, fmt.Errorf("commit state: %w", err)
	}
	if err := s.trieDB.Commit(root, false); err != nil {
		return common.Hash{}, fmt.Errorf("flush trie: %w", err)
	}
	if s.rootPath != "" {
		if err := os.WriteFile(s.rootPath, []byte(root.Hex()), 0o644); err != nil {
			return common.Hash{}, fmt.Errorf("write state root: %w", err)
		}
	}

	// Recreate StateDB at the new root so cached tries aren't reused after commit
	stateDB, err := state.New(root, s.db)
	if err != nil {
		return common.Hash{}, fmt.Errorf("reload state at %s: %w", root.Hex(), err)
	}
	s.stateDB = stateDB
	s.txIndex = 0
	return root, nil
}
