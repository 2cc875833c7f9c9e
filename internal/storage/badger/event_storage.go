package badger

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/bobmcallan/argus/internal/common"
	"github.com/bobmcallan/argus/internal/interfaces"
	"github.com/bobmcallan/argus/internal/models"
)

type eventStorage struct {
	store  *Store
	logger *common.Logger
}

// NewEventStorage creates the append-only pipeline event store.
func NewEventStorage(store *Store, logger *common.Logger) *eventStorage {
	return &eventStorage{store: store, logger: logger}
}

func (s *eventStorage) Append(_ context.Context, event *models.PipelineEvent) error {
	lock := s.store.tableLock("events")
	lock.Lock()
	defer lock.Unlock()

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	return wrapStoreErr("events", "insert", s.store.db.Insert(event.ID, *event))
}

func (s *eventStorage) Query(_ context.Context, q interfaces.EventQuery) ([]*models.PipelineEvent, error) {
	var events []models.PipelineEvent
	if err := s.store.db.Find(&events, nil); err != nil {
		return nil, wrapStoreErr("events", "find", err)
	}

	filtered := events[:0]
	for _, e := range events {
		if q.Phase != "" && e.Phase != q.Phase {
			continue
		}
		if q.Symbol != "" && e.Symbol != q.Symbol {
			continue
		}
		if q.RunID != "" && e.RunID != q.RunID {
			continue
		}
		filtered = append(filtered, e)
	}

	sort.Slice(filtered, func(i, j int) bool { return filtered[i].Timestamp.After(filtered[j].Timestamp) })

	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	if len(filtered) > limit {
		filtered = filtered[:limit]
	}

	out := make([]*models.PipelineEvent, len(filtered))
	for i := range filtered {
		out[i] = &filtered[i]
	}
	return out, nil
}
