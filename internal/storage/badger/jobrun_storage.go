package badger

import (
	"context"

	"github.com/bobmcallan/argus/internal/common"
	"github.com/bobmcallan/argus/internal/models"
)

type jobRunStorage struct {
	store  *Store
	logger *common.Logger
}

// NewJobRunStorage creates the scheduler job run store.
func NewJobRunStorage(store *Store, logger *common.Logger) *jobRunStorage {
	return &jobRunStorage{store: store, logger: logger}
}

func (s *jobRunStorage) Get(_ context.Context, job, date string) (*models.JobRun, error) {
	var run models.JobRun
	if err := s.store.db.Get(compositeKey(job, date), &run); err != nil {
		return nil, wrapStoreErr("job_runs", "get", err)
	}
	return &run, nil
}

func (s *jobRunStorage) Save(_ context.Context, run *models.JobRun) error {
	lock := s.store.tableLock("job_runs")
	lock.Lock()
	defer lock.Unlock()

	key := compositeKey(run.Job, run.Date)
	return wrapStoreErr("job_runs", "upsert", s.store.db.Upsert(key, *run))
}
