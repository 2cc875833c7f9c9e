package badger

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/timshannon/badgerhold/v4"

	"github.com/bobmcallan/argus/internal/common"
	"github.com/bobmcallan/argus/internal/models"
)

// mentionRecord tracks when a symbol last surfaced in discovery, used for
// the re-surface decay factor.
type mentionRecord struct {
	Symbol string    `json:"symbol"`
	SeenAt time.Time `json:"seen_at"`
}

type discoveryStorage struct {
	store  *Store
	logger *common.Logger
}

// NewDiscoveryStorage creates the discovery table store.
func NewDiscoveryStorage(store *Store, logger *common.Logger) *discoveryStorage {
	return &discoveryStorage{store: store, logger: logger}
}

func (s *discoveryStorage) SaveRun(_ context.Context, run *models.DiscoveryRun) error {
	lock := s.store.tableLock("discovery_runs")
	lock.Lock()
	defer lock.Unlock()

	return wrapStoreErr("discovery_runs", "upsert", s.store.db.Upsert(run.ID, *run))
}

func (s *discoveryStorage) GetRun(_ context.Context, id string) (*models.DiscoveryRun, error) {
	var run models.DiscoveryRun
	if err := s.store.db.Get(id, &run); err != nil {
		return nil, wrapStoreErr("discovery_runs", "get", err)
	}
	return &run, nil
}

func (s *discoveryStorage) LatestRun(_ context.Context) (*models.DiscoveryRun, error) {
	runs, err := s.listRuns(1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, wrapStoreErr("discovery_runs", "latest", badgerhold.ErrNotFound)
	}
	return runs[0], nil
}

func (s *discoveryStorage) ListRuns(_ context.Context, limit int) ([]*models.DiscoveryRun, error) {
	return s.listRuns(limit)
}

func (s *discoveryStorage) listRuns(limit int) ([]*models.DiscoveryRun, error) {
	var runs []models.DiscoveryRun
	if err := s.store.db.Find(&runs, nil); err != nil {
		return nil, wrapStoreErr("discovery_runs", "find", err)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].StartedAt.After(runs[j].StartedAt) })
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	out := make([]*models.DiscoveryRun, len(runs))
	for i := range runs {
		out[i] = &runs[i]
	}
	return out, nil
}

func (s *discoveryStorage) LastMention(_ context.Context, symbol string) (time.Time, error) {
	var rec mentionRecord
	if err := s.store.db.Get(symbol, &rec); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return time.Time{}, nil
		}
		return time.Time{}, wrapStoreErr("discovery_mentions", "get", err)
	}
	return rec.SeenAt, nil
}

func (s *discoveryStorage) RecordMention(_ context.Context, symbol string, at time.Time) error {
	lock := s.store.tableLock("discovery_mentions")
	lock.Lock()
	defer lock.Unlock()

	rec := mentionRecord{Symbol: symbol, SeenAt: at}
	return wrapStoreErr("discovery_mentions", "upsert", s.store.db.Upsert(symbol, rec))
}

// Clear deletes all discovery runs and mention records, returning how many
// runs were removed.
func (s *discoveryStorage) Clear(_ context.Context) (int, error) {
	lock := s.store.tableLock("discovery_runs")
	lock.Lock()
	defer lock.Unlock()

	var runs []models.DiscoveryRun
	if err := s.store.db.Find(&runs, nil); err != nil {
		return 0, wrapStoreErr("discovery_runs", "find", err)
	}
	if err := s.store.db.DeleteMatching(&models.DiscoveryRun{}, nil); err != nil {
		return 0, wrapStoreErr("discovery_runs", "delete", err)
	}
	if err := s.store.db.DeleteMatching(&mentionRecord{}, nil); err != nil {
		return len(runs), wrapStoreErr("discovery_mentions", "delete", err)
	}
	return len(runs), nil
}
