// Package app wires the stationcast batch application with uber-fx.
package app

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	"github.com/tigerroll/stationcast/internal/job"
	"github.com/tigerroll/stationcast/internal/step/reader"
	"github.com/tigerroll/stationcast/internal/step/tasklet"
	"github.com/tigerroll/stationcast/internal/step/writer"
	"github.com/tigerroll/stationcast/internal/training"
	"github.com/tigerroll/stationcast/pkg/batch/core/application/port"
	config "github.com/tigerroll/stationcast/pkg/batch/core/config"
	model "github.com/tigerroll/stationcast/pkg/batch/core/domain/model"
	jobRunner "github.com/tigerroll/stationcast/pkg/batch/core/job/runner"
	infraMetrics "github.com/tigerroll/stationcast/pkg/batch/infrastructure/metrics"
	"github.com/tigerroll/stationcast/pkg/batch/infrastructure/repository/sql"
	batchlistener "github.com/tigerroll/stationcast/pkg/batch/listener"
	"github.com/tigerroll/stationcast/pkg/batch/support/util/logger"
)

// Options are the command-line overrides applied on top of the loaded configuration.
type Options struct {
	EnvFilePath    string
	EmbeddedConfig config.EmbeddedConfig
	// InputPath and InputFormat replace stationcast.pipeline.input when non-empty.
	InputPath   string
	InputFormat string
	// DBAdapters is the comma-separated list of DB providers to register.
	DBAdapters string
}

// runOutcome carries the job result out of the Fx lifecycle.
type runOutcome struct {
	run *model.PipelineRun
	err error
}

// RunApplication builds the Fx graph, runs the pipeline job once and shuts down.
// The returned run is nil when the application failed before the job started.
func RunApplication(appCtx context.Context, opts Options) (*model.PipelineRun, error) {
	outcome := &runOutcome{}

	app := fx.New(
		fx.Supply(
			opts.EmbeddedConfig,
			fx.Annotate(opts.EnvFilePath, fx.ResultTags(`name:"envFilePath"`)),
			fx.Annotate(
				appCtx,
				fx.As(new(context.Context)),
				fx.ResultTags(`name:"appCtx"`),
			),
			outcome,
		),

		logger.Module,
		config.Module,
		fx.Decorate(applyOverrides(opts)),
		infraMetrics.Module,

		fx.Options(DBProviderOptions(opts.DBAdapters)...),
		Module,
		sql.Module,
		batchlistener.Module,
		jobRunner.Module,

		reader.Module,
		writer.Module,
		training.Module,
		tasklet.Module,
		job.Module,

		fx.Invoke(fx.Annotate(startJobExecution, fx.ParamTags(
			"",              // lc fx.Lifecycle
			"",              // shutdowner fx.Shutdowner
			"",              // runner port.JobRunner
			"",              // job port.Job
			"",              // outcome *runOutcome
			`name:"appCtx"`, // appCtx context.Context
		))),
	)
	if err := app.Err(); err != nil {
		return nil, err
	}

	startCtx, cancel := context.WithTimeout(context.Background(), app.StartTimeout())
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return nil, err
	}

	sig := <-app.Wait()
	logger.Debugf("Shutdown signal received: %s", sig)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), app.StopTimeout())
	defer stopCancel()
	if err := app.Stop(stopCtx); err != nil {
		logger.Errorf("Application stop failed: %v", err)
		if outcome.err == nil {
			outcome.err = err
		}
	}
	if outcome.err == nil && outcome.run == nil {
		outcome.err = fmt.Errorf("application stopped before the job finished (%s)", sig)
	}
	return outcome.run, outcome.err
}

// applyOverrides returns an Fx decorator applying the command-line input overrides.
func applyOverrides(opts Options) func(*config.Config) (*config.Config, error) {
	return func(cfg *config.Config) (*config.Config, error) {
		in := &cfg.Stationcast.Pipeline.Input
		if opts.InputPath != "" {
			in.Path = opts.InputPath
			in.StorageRef = ""
			in.Format = reader.FormatOf(opts.InputFormat, opts.InputPath)
		} else if opts.InputFormat != "" {
			in.Format = reader.FormatOf(opts.InputFormat, in.Path)
		}
		if err := config.Validate(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}
}

// startJobExecution is invoked by Fx to run the pipeline job once the application has started.
func startJobExecution(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	runner port.JobRunner,
	pipelineJob port.Job,
	outcome *runOutcome,
	appCtx context.Context,
) {
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: onStartJobExecution(runner, pipelineJob, outcome, shutdowner, appCtx, done),
		OnStop:  onStopApplication(done),
	})
}

// onStartJobExecution launches the job in the background and requests shutdown when it ends.
func onStartJobExecution(
	runner port.JobRunner,
	pipelineJob port.Job,
	outcome *runOutcome,
	shutdowner fx.Shutdowner,
	appCtx context.Context,
	done chan struct{},
) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		go func() {
			exitCode := 0
			defer func() {
				if r := recover(); r != nil {
					logger.Errorf("Panic recovered in job execution: %v", r)
					outcome.err = fmt.Errorf("panic in job execution: %v", r)
					exitCode = 1
				}
				close(done)
				logger.Infof("Requesting application shutdown after job completion.")
				if err := shutdowner.Shutdown(fx.ExitCode(exitCode)); err != nil {
					logger.Errorf("Failed to shutdown application: %v", err)
				}
			}()

			run := model.NewPipelineRun(pipelineJob.JobName())
			logger.Infof("Starting job '%s' (Run ID: %s)...", pipelineJob.JobName(), run.ID)
			err := runner.Run(appCtx, pipelineJob, run)
			outcome.run, outcome.err = run, err
			if err != nil {
				exitCode = 1
				logger.Errorf("Job '%s' finished with status %s: %v", pipelineJob.JobName(), run.Status, err)
				return
			}
			logger.Infof("Job '%s' finished with status %s.", pipelineJob.JobName(), run.Status)
		}()
		return nil
	}
}

// onStopApplication waits for a running job to unwind before the lifecycle closes its connections.
func onStopApplication(done <-chan struct{}) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		select {
		case <-done:
		case <-ctx.Done():
			logger.Warnf("Job did not finish before the stop timeout.")
		}
		logger.Infof("Application is shutting down.")
		return nil
	}
}
