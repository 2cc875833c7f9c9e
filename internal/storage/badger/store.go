// Package badger provides BadgerHold-based storage for all Argus tables.
package badger

import (
	"fmt"
	"os"
	"strings"
	"sync"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"

	"github.com/bobmcallan/argus/internal/common"
)

// Store wraps a BadgerHold database connection. Table storages share the
// connection; each serializes its own writes with a per-table mutex while
// Badger's MVCC keeps readers unblocked.
type Store struct {
	db     *badgerhold.Store
	logger *common.Logger

	mu     sync.Mutex
	tables map[string]*sync.Mutex
}

// NewStore creates a new BadgerHold store at the given directory path.
func NewStore(logger *common.Logger, path string) (*Store, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create badger directory %s: %w", path, err)
	}

	options := badgerhold.DefaultOptions
	options.Options = badgerdb.DefaultOptions(path).
		WithLogger(nil).
		WithNumVersionsToKeep(1)

	db, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	logger.Debug().Str("path", path).Msg("BadgerHold store opened")

	return &Store{
		db:     db,
		logger: logger,
		tables: make(map[string]*sync.Mutex),
	}, nil
}

// DB returns the underlying badgerhold store.
func (s *Store) DB() *badgerhold.Store {
	return s.db
}

// tableLock returns the write mutex for the named table, creating it on
// first use. Writers for distinct tables proceed in parallel.
func (s *Store) tableLock(table string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.tables[table]; ok {
		return l
	}
	l := &sync.Mutex{}
	s.tables[table] = l
	return l
}

// Close closes the BadgerHold database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// compositeKey joins key parts with "|" for tables keyed by more than one
// column, e.g. (symbol, date).
func compositeKey(parts ...string) string {
	return strings.Join(parts, "|")
}

// wrapStoreErr translates a badgerhold error into the shared taxonomy.
func wrapStoreErr(table, op string, err error) error {
	if err == nil {
		return nil
	}
	if err == badgerhold.ErrNotFound {
		return fmt.Errorf("%s %s: %w", table, op, common.ErrNotFound)
	}
	return &common.StoreError{Table: table, Op: op, Err: err}
}
