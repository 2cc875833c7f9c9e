package badger

import (
	"context"
	"sort"
	"strings"

	"github.com/bobmcallan/argus/internal/common"
	"github.com/bobmcallan/argus/internal/models"
)

type watchlistStorage struct {
	store  *Store
	logger *common.Logger
}

// NewWatchlistStorage creates the watchlist table store.
func NewWatchlistStorage(store *Store, logger *common.Logger) *watchlistStorage {
	return &watchlistStorage{store: store, logger: logger}
}

func (s *watchlistStorage) Get(_ context.Context, symbol string) (*models.WatchlistEntry, error) {
	var entry models.WatchlistEntry
	if err := s.store.db.Get(strings.ToUpper(symbol), &entry); err != nil {
		return nil, wrapStoreErr("watchlist", "get", err)
	}
	return &entry, nil
}

func (s *watchlistStorage) Upsert(_ context.Context, entry *models.WatchlistEntry) error {
	lock := s.store.tableLock("watchlist")
	lock.Lock()
	defer lock.Unlock()

	entry.Symbol = strings.ToUpper(entry.Symbol)
	return wrapStoreErr("watchlist", "upsert", s.store.db.Upsert(entry.Symbol, *entry))
}

func (s *watchlistStorage) List(_ context.Context) ([]*models.WatchlistEntry, error) {
	var entries []models.WatchlistEntry
	if err := s.store.db.Find(&entries, nil); err != nil {
		return nil, wrapStoreErr("watchlist", "find", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Symbol < entries[j].Symbol })
	out := make([]*models.WatchlistEntry, len(entries))
	for i := range entries {
		out[i] = &entries[i]
	}
	return out, nil
}

func (s *watchlistStorage) Delete(_ context.Context, symbol string) error {
	lock := s.store.tableLock("watchlist")
	lock.Lock()
	defer lock.Unlock()

	err := s.store.db.Delete(strings.ToUpper(symbol), models.WatchlistEntry{})
	return wrapStoreErr("watchlist", "delete", err)
}
