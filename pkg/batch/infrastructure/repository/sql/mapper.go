package sql

import (
	model "github.com/tigerroll/stationcast/pkg/batch/core/domain/model"
)

func fromDomainRun(r *model.PipelineRun) *PipelineRunEntity {
	return &PipelineRunEntity{
		ID:          r.ID,
		JobName:     r.JobName,
		StartTime:   r.StartTime,
		EndTime:     r.EndTime,
		Status:      r.Status,
		ExitStatus:  r.ExitStatus,
		Failures:    r.Failures,
		Summary:     r.Summary,
		CreateTime:  r.CreateTime,
		LastUpdated: r.LastUpdated,
		Version:     r.Version,
	}
}

func toDomainRun(e *PipelineRunEntity) *model.PipelineRun {
	return &model.PipelineRun{
		ID:               e.ID,
		JobName:          e.JobName,
		StartTime:        e.StartTime,
		EndTime:          e.EndTime,
		Status:           e.Status,
		ExitStatus:       e.ExitStatus,
		Failures:         e.Failures,
		Summary:          e.Summary,
		CreateTime:       e.CreateTime,
		LastUpdated:      e.LastUpdated,
		Version:          e.Version,
		StepRuns:         make([]*model.StepRun, 0),
		ExecutionContext: model.NewExecutionContext(),
	}
}

func fromDomainStep(s *model.StepRun) *StepRunEntity {
	return &StepRunEntity{
		ID:            s.ID,
		PipelineRunID: s.PipelineRunID,
		StepName:      s.StepName,
		StartTime:     s.StartTime,
		EndTime:       s.EndTime,
		Status:        s.Status,
		ExitStatus:    s.ExitStatus,
		Failures:      s.Failures,
		ReadCount:     s.ReadCount,
		WriteCount:    s.WriteCount,
		FilterCount:   s.FilterCount,
		Summary:       s.Summary,
		LastUpdated:   s.LastUpdated,
		Version:       s.Version,
	}
}

func toDomainStep(e *StepRunEntity) *model.StepRun {
	return &model.StepRun{
		ID:            e.ID,
		PipelineRunID: e.PipelineRunID,
		StepName:      e.StepName,
		StartTime:     e.StartTime,
		EndTime:       e.EndTime,
		Status:        e.Status,
		ExitStatus:    e.ExitStatus,
		Failures:      e.Failures,
		ReadCount:     e.ReadCount,
		WriteCount:    e.WriteCount,
		FilterCount:   e.FilterCount,
		Summary:       e.Summary,
		LastUpdated:   e.LastUpdated,
		Version:       e.Version,
	}
}

// updateColumns lists the mutable columns of a run, keyed by column name.
func (e *PipelineRunEntity) updateColumns() map[string]interface{} {
	return map[string]interface{}{
		"end_time":     e.EndTime,
		"status":       e.Status,
		"exit_status":  e.ExitStatus,
		"failures":     e.Failures,
		"summary":      e.Summary,
		"last_updated": e.LastUpdated,
		"version":      e.Version,
	}
}

func (e *StepRunEntity) updateColumns() map[string]interface{} {
	return map[string]interface{}{
		"start_time":   e.StartTime,
		"end_time":     e.EndTime,
		"status":       e.Status,
		"exit_status":  e.ExitStatus,
		"failures":     e.Failures,
		"read_count":   e.ReadCount,
		"write_count":  e.WriteCount,
		"filter_count": e.FilterCount,
		"summary":      e.Summary,
		"last_updated": e.LastUpdated,
		"version":      e.Version,
	}
}
