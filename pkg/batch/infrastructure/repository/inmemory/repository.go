// Package inmemory provides a RunRepository kept in process memory.
// It is used when no run-repository database is configured.
package inmemory

import (
	"context"
	"sync"

	model "github.com/tigerroll/stationcast/pkg/batch/core/domain/model"
	"github.com/tigerroll/stationcast/pkg/batch/core/domain/repository"
)

type InMemoryRunRepository struct {
	mu    sync.RWMutex
	runs  map[string]model.PipelineRun
	steps map[string]model.StepRun
	// order keeps step ids per run in insertion order.
	order map[string][]string
}

func NewInMemoryRunRepository() *InMemoryRunRepository {
	return &InMemoryRunRepository{
		runs:  make(map[string]model.PipelineRun),
		steps: make(map[string]model.StepRun),
		order: make(map[string][]string),
	}
}

func (r *InMemoryRunRepository) SaveRun(ctx context.Context, run *model.PipelineRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.ID] = snapshotRun(run)
	return nil
}

func (r *InMemoryRunRepository) UpdateRun(ctx context.Context, run *model.PipelineRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.runs[run.ID]
	if !ok {
		return repository.ErrRunNotFound
	}
	if stored.Version != run.Version {
		return repository.ErrOptimisticLock
	}
	run.Version++
	r.runs[run.ID] = snapshotRun(run)
	return nil
}

func (r *InMemoryRunRepository) SaveStep(ctx context.Context, step *model.StepRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.runs[step.PipelineRunID]; !ok {
		return repository.ErrRunNotFound
	}
	if _, exists := r.steps[step.ID]; !exists {
		r.order[step.PipelineRunID] = append(r.order[step.PipelineRunID], step.ID)
	}
	r.steps[step.ID] = *step
	return nil
}

func (r *InMemoryRunRepository) UpdateStep(ctx context.Context, step *model.StepRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.steps[step.ID]
	if !ok {
		return repository.ErrRunNotFound
	}
	if stored.Version != step.Version {
		return repository.ErrOptimisticLock
	}
	step.Version++
	r.steps[step.ID] = *step
	return nil
}

func (r *InMemoryRunRepository) FindLatestRun(ctx context.Context, jobName string) (*model.PipelineRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var latest *model.PipelineRun
	for _, stored := range r.runs {
		if stored.JobName != jobName {
			continue
		}
		if latest == nil || stored.CreateTime.After(latest.CreateTime) {
			s := stored
			latest = &s
		}
	}
	if latest == nil {
		return nil, repository.ErrRunNotFound
	}
	return r.hydrate(*latest), nil
}

func (r *InMemoryRunRepository) Close() error { return nil }

// hydrate returns a copy of stored with its step runs attached. Caller holds the lock.
func (r *InMemoryRunRepository) hydrate(stored model.PipelineRun) *model.PipelineRun {
	run := stored
	run.StepRuns = make([]*model.StepRun, 0, len(r.order[run.ID]))
	for _, id := range r.order[run.ID] {
		step := r.steps[id]
		run.StepRuns = append(run.StepRuns, &step)
	}
	return &run
}

func snapshotRun(run *model.PipelineRun) model.PipelineRun {
	s := *run
	s.StepRuns = nil
	s.ExecutionContext = nil
	return s
}

var _ repository.RunRepository = (*InMemoryRunRepository)(nil)
