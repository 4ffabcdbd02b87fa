package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tigerroll/stationcast/pkg/batch/support/util/exception"
	"github.com/tigerroll/stationcast/pkg/batch/support/util/logger"
)

// RunStatus represents the state of a pipeline run or of one of its steps.
type RunStatus string

const (
	StatusStarting  RunStatus = "STARTING"
	StatusStarted   RunStatus = "STARTED"
	StatusCompleted RunStatus = "COMPLETED"
	StatusFailed    RunStatus = "FAILED"
	StatusStopped   RunStatus = "STOPPED"
	StatusUnknown   RunStatus = "UNKNOWN"
)

// String returns the string representation of the RunStatus.
func (s RunStatus) String() string {
	return string(s)
}

// IsFinished checks if the RunStatus represents a finished state.
func (s RunStatus) IsFinished() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusStopped:
		return true
	default:
		return false
	}
}

// ExitStatus represents the detailed status upon run/step completion.
type ExitStatus string

const (
	ExitStatusUnknown   ExitStatus = "UNKNOWN"
	ExitStatusCompleted ExitStatus = "COMPLETED"
	ExitStatusFailed    ExitStatus = "FAILED"
	ExitStatusStopped   ExitStatus = "STOPPED"
	ExitStatusNoOp      ExitStatus = "NO_OP"
)

// String returns the string representation of the ExitStatus.
func (s ExitStatus) String() string {
	return string(s)
}

// FailureList holds a list of error messages. It is stored as a JSON array.
type FailureList []string

// Value implements driver.Valuer.
func (fl FailureList) Value() (driver.Value, error) {
	if fl == nil {
		return "[]", nil
	}
	data, err := json.Marshal(fl)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (fl *FailureList) Scan(value interface{}) error {
	b, err := scanBytes(value)
	if err != nil {
		return fmt.Errorf("unsupported Scan type for FailureList: %w", err)
	}
	if len(b) == 0 {
		*fl = make(FailureList, 0)
		return nil
	}
	if err := json.Unmarshal(b, fl); err != nil {
		return fmt.Errorf("failed to unmarshal FailureList JSON: %w", err)
	}
	return nil
}

// Summary holds the persisted outcome figures of a run or step
// (dropped rows, partitions written, mse, r2, ...). It is stored as a JSON object.
type Summary map[string]interface{}

// Value implements driver.Valuer.
func (s Summary) Value() (driver.Value, error) {
	if s == nil {
		return "{}", nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (s *Summary) Scan(value interface{}) error {
	b, err := scanBytes(value)
	if err != nil {
		return fmt.Errorf("unsupported Scan type for Summary: %w", err)
	}
	*s = make(Summary)
	if len(b) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, s); err != nil {
		return fmt.Errorf("failed to unmarshal Summary JSON: %w", err)
	}
	return nil
}

func scanBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("%T", value)
	}
}

// PipelineRun is a single execution of the stationcast job.
type PipelineRun struct {
	ID          string
	JobName     string
	StartTime   time.Time
	EndTime     *time.Time
	Status      RunStatus
	ExitStatus  ExitStatus
	Failures    FailureList
	Summary     Summary
	CreateTime  time.Time
	LastUpdated time.Time
	Version     int
	StepRuns    []*StepRun
	// ExecutionContext carries in-process values between steps. It is never persisted.
	ExecutionContext ExecutionContext
}

// StepRun is a single execution of one step within a PipelineRun.
type StepRun struct {
	ID            string
	PipelineRunID string
	StepName      string
	StartTime     time.Time
	EndTime       *time.Time
	Status        RunStatus
	ExitStatus    ExitStatus
	Failures      FailureList
	// ReadCount is the number of input rows, WriteCount the rows produced,
	// FilterCount the rows dropped along the way.
	ReadCount   int
	WriteCount  int
	FilterCount int
	Summary     Summary
	LastUpdated time.Time
	Version     int
}

// NewID generates a new UUID string.
func NewID() string {
	return uuid.New().String()
}

// NewPipelineRun creates a new PipelineRun in STARTING state.
func NewPipelineRun(jobName string) *PipelineRun {
	now := time.Now()
	return &PipelineRun{
		ID:               NewID(),
		JobName:          jobName,
		StartTime:        now,
		Status:           StatusStarting,
		ExitStatus:       ExitStatusUnknown,
		Failures:         make(FailureList, 0),
		Summary:          make(Summary),
		CreateTime:       now,
		LastUpdated:      now,
		StepRuns:         make([]*StepRun, 0),
		ExecutionContext: NewExecutionContext(),
	}
}

// NewStepRun creates a new StepRun for run in STARTING state.
func NewStepRun(run *PipelineRun, stepName string) *StepRun {
	now := time.Now()
	sr := &StepRun{
		ID:            NewID(),
		PipelineRunID: run.ID,
		StepName:      stepName,
		StartTime:     now,
		Status:        StatusStarting,
		ExitStatus:    ExitStatusUnknown,
		Failures:      make(FailureList, 0),
		Summary:       make(Summary),
		LastUpdated:   now,
	}
	run.StepRuns = append(run.StepRuns, sr)
	return sr
}

func isValidTransition(current, next RunStatus) bool {
	switch current {
	case StatusStarting:
		return next == StatusStarted || next == StatusFailed || next == StatusStopped
	case StatusStarted:
		return next == StatusCompleted || next == StatusFailed || next == StatusStopped
	default:
		return false
	}
}

// TransitionTo changes the run status, rejecting transitions out of a finished state.
func (r *PipelineRun) TransitionTo(newStatus RunStatus) error {
	if !isValidTransition(r.Status, newStatus) {
		return fmt.Errorf("PipelineRun (ID: %s): Invalid state transition: %s -> %s", r.ID, r.Status, newStatus)
	}
	r.Status = newStatus
	return nil
}

// MarkAsStarted updates the PipelineRun status to STARTED.
func (r *PipelineRun) MarkAsStarted() {
	if err := r.TransitionTo(StatusStarted); err != nil {
		logger.Warnf("Could not update PipelineRun (ID: %s) status to STARTED: %v", r.ID, err)
		r.Status = StatusStarted
	}
	r.LastUpdated = time.Now()
}

// MarkAsCompleted updates the PipelineRun status to COMPLETED.
func (r *PipelineRun) MarkAsCompleted() {
	r.finish(StatusCompleted, ExitStatusCompleted)
}

// MarkAsStopped updates the PipelineRun status to STOPPED.
func (r *PipelineRun) MarkAsStopped() {
	r.finish(StatusStopped, ExitStatusStopped)
}

// MarkAsFailed updates the PipelineRun status to FAILED and records err.
func (r *PipelineRun) MarkAsFailed(err error) {
	r.finish(StatusFailed, ExitStatusFailed)
	r.Failures = addFailure(r.Failures, err, "PipelineRun", r.ID)
}

func (r *PipelineRun) finish(status RunStatus, exit ExitStatus) {
	if err := r.TransitionTo(status); err != nil {
		logger.Warnf("Could not update PipelineRun (ID: %s) status to %s: %v", r.ID, status, err)
		r.Status = status
	}
	r.ExitStatus = exit
	now := time.Now()
	r.EndTime = &now
	r.LastUpdated = now
}

// TransitionTo changes the step status, rejecting transitions out of a finished state.
func (s *StepRun) TransitionTo(newStatus RunStatus) error {
	if !isValidTransition(s.Status, newStatus) {
		return fmt.Errorf("StepRun (ID: %s): Invalid state transition: %s -> %s", s.ID, s.Status, newStatus)
	}
	s.Status = newStatus
	return nil
}

// MarkAsStarted updates the StepRun status to STARTED.
func (s *StepRun) MarkAsStarted() {
	if err := s.TransitionTo(StatusStarted); err != nil {
		logger.Warnf("Could not update StepRun (ID: %s) status to STARTED: %v", s.ID, err)
		s.Status = StatusStarted
	}
	s.LastUpdated = time.Now()
}

// MarkAsCompleted updates the StepRun status to COMPLETED with the given exit status.
func (s *StepRun) MarkAsCompleted(exit ExitStatus) {
	s.finish(StatusCompleted, exit)
}

// MarkAsStopped updates the StepRun status to STOPPED.
func (s *StepRun) MarkAsStopped() {
	s.finish(StatusStopped, ExitStatusStopped)
}

// MarkAsFailed updates the StepRun status to FAILED and records err.
func (s *StepRun) MarkAsFailed(err error) {
	s.finish(StatusFailed, ExitStatusFailed)
	s.Failures = addFailure(s.Failures, err, "StepRun", s.ID)
}

// Duration is the elapsed time of a finished step, or zero while it runs.
func (s *StepRun) Duration() time.Duration {
	if s.EndTime == nil {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}

func (s *StepRun) finish(status RunStatus, exit ExitStatus) {
	if err := s.TransitionTo(status); err != nil {
		logger.Warnf("Could not update StepRun (ID: %s) status to %s: %v", s.ID, status, err)
		s.Status = status
	}
	s.ExitStatus = exit
	now := time.Now()
	s.EndTime = &now
	s.LastUpdated = now
}

// addFailure appends the message of err unless it is already recorded.
func addFailure(failures FailureList, err error, kind, id string) FailureList {
	if err == nil {
		return failures
	}
	errMsg := exception.ExtractErrorMessage(err)
	for _, existing := range failures {
		if existing == errMsg {
			logger.Debugf("Skipped adding duplicate error '%s' to %s (ID: %s).", errMsg, kind, id)
			return failures
		}
	}
	return append(failures, errMsg)
}
