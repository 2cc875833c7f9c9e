// Package eventlog provides the append-only pipeline audit trail.
package eventlog

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/bobmcallan/argus/internal/common"
	"github.com/bobmcallan/argus/internal/interfaces"
	"github.com/bobmcallan/argus/internal/models"
)

// Compile-time interface check
var _ interfaces.EventLogService = (*Service)(nil)

// Broadcaster receives every logged event for live fan-out. The pipeline
// WebSocket hub implements it.
type Broadcaster interface {
	Broadcast(event *models.PipelineEvent)
}

// Service implements EventLogService.
type Service struct {
	storage     interfaces.StorageManager
	logger      *common.Logger
	broadcaster Broadcaster
}

// NewService creates a new event log service.
func NewService(storage interfaces.StorageManager, logger *common.Logger) *Service {
	return &Service{
		storage: storage,
		logger:  logger,
	}
}

// SetBroadcaster attaches a live event sink. Call before the pipeline
// starts; not safe to swap while events are flowing.
func (s *Service) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// BeginRun mints a run id shared by every event of one pipeline invocation.
func (s *Service) BeginRun() string {
	return uuid.NewString()
}

// Log appends an event. Write failures are logged, never propagated, so a
// broken audit trail cannot take down the pipeline.
func (s *Service) Log(ctx context.Context, event *models.PipelineEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Status == "" {
		event.Status = models.EventStatusSuccess
	}

	if err := s.storage.EventStore().Append(ctx, event); err != nil {
		s.logger.Warn().Err(err).
			Str("phase", event.Phase).
			Str("event_type", event.EventType).
			Msg("Failed to append pipeline event")
		return
	}

	if s.broadcaster != nil {
		s.broadcaster.Broadcast(event)
	}

	s.logger.Debug().
		Str("phase", event.Phase).
		Str("event_type", event.EventType).
		Str("symbol", event.Symbol).
		Str("status", event.Status).
		Msg("Pipeline event")
}

// Query returns events filtered by the query, newest first.
func (s *Service) Query(ctx context.Context, q interfaces.EventQuery) ([]*models.PipelineEvent, error) {
	return s.storage.EventStore().Query(ctx, q)
}
