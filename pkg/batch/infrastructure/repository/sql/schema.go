package sql

import (
	"time"

	model "github.com/tigerroll/stationcast/pkg/batch/core/domain/model"
)

// PipelineRunEntity is the persisted form of model.PipelineRun.
type PipelineRunEntity struct {
	ID          string
	JobName     string
	StartTime   time.Time
	EndTime     *time.Time
	Status      model.RunStatus
	ExitStatus  model.ExitStatus
	Failures    model.FailureList
	Summary     model.Summary
	CreateTime  time.Time
	LastUpdated time.Time
	Version     int
}

func (PipelineRunEntity) TableName() string {
	return "pipeline_run"
}

// StepRunEntity is the persisted form of model.StepRun.
type StepRunEntity struct {
	ID            string
	PipelineRunID string
	StepName      string
	StartTime     time.Time
	EndTime       *time.Time
	Status        model.RunStatus
	ExitStatus    model.ExitStatus
	Failures      model.FailureList
	ReadCount     int
	WriteCount    int
	FilterCount   int
	Summary       model.Summary
	LastUpdated   time.Time
	Version       int
}

func (StepRunEntity) TableName() string {
	return "pipeline_step_run"
}
