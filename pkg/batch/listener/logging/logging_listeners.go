package logging

import (
	"context"
	"fmt"
	"sort"
	"strings"

	port "github.com/tigerroll/stationcast/pkg/batch/core/application/port"
	model "github.com/tigerroll/stationcast/pkg/batch/core/domain/model"
	logger "github.com/tigerroll/stationcast/pkg/batch/support/util/logger"
)

// --- Job Execution Listener ---

type LoggingJobListener struct{}

func NewLoggingJobListener() port.JobExecutionListener {
	return &LoggingJobListener{}
}

func (l *LoggingJobListener) BeforeJob(ctx context.Context, run *model.PipelineRun) {
	logger.Infof("JobExecutionListener: BeforeJob - JobName: %s, ID: %s", run.JobName, run.ID)
}

func (l *LoggingJobListener) AfterJob(ctx context.Context, run *model.PipelineRun) {
	logger.Infof("JobExecutionListener: AfterJob - JobName: %s, Status: %s, ExitStatus: %s", run.JobName, run.Status, run.ExitStatus)
	for _, f := range run.Failures {
		logger.Errorf("JobExecutionListener: AfterJob - failure: %s", f)
	}
	if len(run.Summary) > 0 {
		logger.Infof("JobExecutionListener: AfterJob - Summary: %s", formatSummary(run.Summary))
	}
}

var _ port.JobExecutionListener = (*LoggingJobListener)(nil)

// --- Step Execution Listener ---

type LoggingStepListener struct{}

func NewLoggingStepListener() port.StepExecutionListener {
	return &LoggingStepListener{}
}

func (l *LoggingStepListener) BeforeStep(ctx context.Context, stepRun *model.StepRun) {
	logger.Infof("StepExecutionListener: BeforeStep - StepName: %s, ID: %s", stepRun.StepName, stepRun.ID)
}

func (l *LoggingStepListener) AfterStep(ctx context.Context, stepRun *model.StepRun) {
	logger.Infof("StepExecutionListener: AfterStep - StepName: %s, Status: %s, ExitStatus: %s, Read: %d, Write: %d, Filter: %d",
		stepRun.StepName, stepRun.Status, stepRun.ExitStatus, stepRun.ReadCount, stepRun.WriteCount, stepRun.FilterCount)
	if len(stepRun.Summary) > 0 {
		logger.Debugf("StepExecutionListener: AfterStep - Summary: %s", formatSummary(stepRun.Summary))
	}
}

var _ port.StepExecutionListener = (*LoggingStepListener)(nil)

// formatSummary renders s as "k=v" pairs in key order.
func formatSummary(s model.Summary) string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, s[k])
	}
	return strings.Join(parts, " ")
}
