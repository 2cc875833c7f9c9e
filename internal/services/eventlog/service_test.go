package eventlog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/argus/internal/common"
	"github.com/bobmcallan/argus/internal/interfaces"
	"github.com/bobmcallan/argus/internal/models"
	"github.com/bobmcallan/argus/internal/storage"
)

type captureBroadcaster struct {
	events []*models.PipelineEvent
}

func (b *captureBroadcaster) Broadcast(event *models.PipelineEvent) {
	b.events = append(b.events, event)
}

func newTestService(t *testing.T) (*Service, *storage.Manager) {
	t.Helper()
	cfg := common.NewDefaultConfig()
	cfg.Storage.Path = t.TempDir()
	mgr, err := storage.NewManager(cfg, common.NewSilentLogger())
	require.NoError(t, err)
	t.Cleanup(func() { mgr.Close() })
	return NewService(mgr, common.NewSilentLogger()), mgr
}

func TestBeginRunMintsUniqueIDs(t *testing.T) {
	svc, _ := newTestService(t)
	a := svc.BeginRun()
	b := svc.BeginRun()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestLogFillsDefaultsAndPersists(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	event := &models.PipelineEvent{
		RunID:     "run-1",
		Phase:     models.PhaseCollection,
		EventType: "collection_completed",
		Symbol:    "NVDA",
	}
	svc.Log(ctx, event)

	assert.NotEmpty(t, event.ID)
	assert.False(t, event.Timestamp.IsZero())
	assert.Equal(t, models.EventStatusSuccess, event.Status)

	stored, err := svc.Query(ctx, interfaces.EventQuery{RunID: "run-1"})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "NVDA", stored[0].Symbol)
	assert.Equal(t, "collection_completed", stored[0].EventType)
}

func TestLogPreservesExplicitStatus(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	svc.Log(ctx, &models.PipelineEvent{
		RunID:     "run-1",
		Phase:     models.PhaseTrading,
		EventType: "signal_blocked",
		Status:    models.EventStatusWarning,
	})

	stored, err := svc.Query(ctx, interfaces.EventQuery{RunID: "run-1"})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, models.EventStatusWarning, stored[0].Status)
}

func TestLogBroadcasts(t *testing.T) {
	svc, _ := newTestService(t)
	sink := &captureBroadcaster{}
	svc.SetBroadcaster(sink)

	svc.Log(context.Background(), &models.PipelineEvent{
		Phase:     models.PhaseRun,
		EventType: "pipeline_started",
	})
	svc.Log(context.Background(), &models.PipelineEvent{
		Phase:     models.PhaseRun,
		EventType: "pipeline_completed",
	})

	require.Len(t, sink.events, 2)
	assert.Equal(t, "pipeline_started", sink.events[0].EventType)
	assert.Equal(t, "pipeline_completed", sink.events[1].EventType)
}

func TestLogAfterCloseDoesNotPanic(t *testing.T) {
	svc, mgr := newTestService(t)
	sink := &captureBroadcaster{}
	svc.SetBroadcaster(sink)
	require.NoError(t, mgr.Close())

	// Append fails against the closed store; Log swallows it and skips
	// the broadcast.
	svc.Log(context.Background(), &models.PipelineEvent{
		Phase:     models.PhaseRun,
		EventType: "pipeline_started",
	})
	assert.Empty(t, sink.events)
}

func TestQueryFilters(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	svc.Log(ctx, &models.PipelineEvent{RunID: "run-1", Phase: models.PhaseCollection, EventType: "a", Symbol: "NVDA"})
	svc.Log(ctx, &models.PipelineEvent{RunID: "run-1", Phase: models.PhaseAnalysis, EventType: "b", Symbol: "NVDA"})
	svc.Log(ctx, &models.PipelineEvent{RunID: "run-2", Phase: models.PhaseCollection, EventType: "c", Symbol: "AAPL"})

	byRun, err := svc.Query(ctx, interfaces.EventQuery{RunID: "run-1"})
	require.NoError(t, err)
	assert.Len(t, byRun, 2)

	byPhase, err := svc.Query(ctx, interfaces.EventQuery{Phase: models.PhaseCollection})
	require.NoError(t, err)
	assert.Len(t, byPhase, 2)

	bySymbol, err := svc.Query(ctx, interfaces.EventQuery{Symbol: "AAPL"})
	require.NoError(t, err)
	require.Len(t, bySymbol, 1)
	assert.Equal(t, "c", bySymbol[0].EventType)
}
