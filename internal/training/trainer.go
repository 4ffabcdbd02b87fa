package training

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tigerroll/stationcast/internal/domain/table"
	"github.com/tigerroll/stationcast/pkg/batch/adapter/storage"
	config "github.com/tigerroll/stationcast/pkg/batch/core/config"
	"github.com/tigerroll/stationcast/pkg/batch/engine/step/retry"
	"github.com/tigerroll/stationcast/pkg/batch/support/util/exception"
	"github.com/tigerroll/stationcast/pkg/batch/support/util/logger"
)

// Report is the outcome of one training run, serialised as report.json.
type Report struct {
	StationID   string    `json:"station_id"`
	Model       string    `json:"model"`
	RidgeLambda float64   `json:"ridge_lambda"`
	TrainRows   int       `json:"train_rows"`
	TestRows    int       `json:"test_rows"`
	DroppedRows int       `json:"dropped_rows"`
	GeneratedAt time.Time `json:"generated_at"`
	Evaluation
}

// Trainer runs dataset selection, split, fit and evaluation with one TrainingConfig.
type Trainer struct {
	cfg      config.TrainingConfig
	resolver storage.StorageConnectionResolver
	retry    retry.RetryPolicy
	now      func() time.Time
}

// NewTrainer creates a Trainer. resolver may be nil when reports are not uploaded.
func NewTrainer(cfg *config.Config, resolver storage.StorageConnectionResolver) *Trainer {
	return &Trainer{cfg: cfg.Stationcast.Training, resolver: resolver, retry: retry.NoRetry(), now: time.Now}
}

// WithRetry sets the policy applied to the report upload.
func (t *Trainer) WithRetry(policy retry.RetryPolicy) *Trainer {
	t.retry = policy
	return t
}

// Train fits a RidgeRegressor on the configured station of tbl and evaluates it on the held-out rows.
func (t *Trainer) Train(ctx context.Context, tbl *table.Table) (*Report, error) {
	ds, err := NewDataset(tbl, t.cfg.StationID)
	if err != nil {
		return nil, err
	}
	train, test, err := TrainTestSplit(ds, t.cfg.TestSize, t.cfg.Seed)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	model := NewRidgeRegressor(t.cfg.RidgeLambda)
	if err := model.Fit(train.X, train.Y); err != nil {
		return nil, err
	}
	ev, err := Evaluate(model, test, t.cfg.HistogramBins)
	if err != nil {
		return nil, err
	}

	report := &Report{
		StationID:   ds.StationID,
		Model:       "ridge",
		RidgeLambda: t.cfg.RidgeLambda,
		TrainRows:   train.Len(),
		TestRows:    test.Len(),
		DroppedRows: ds.Dropped,
		GeneratedAt: t.now().UTC(),
		Evaluation:  *ev,
	}
	logger.Infof("Mean Squared Error (MSE): %.3f", report.MSE)
	logger.Infof("R² Score: %.3f", report.R2)
	return report, nil
}

// Publish uploads report as JSON to the configured report storage.
// It returns the object name, or "" when no report storage is configured.
func (t *Trainer) Publish(ctx context.Context, report *Report) (string, error) {
	if t.cfg.ReportStorageRef == "" {
		logger.Debugf("No report storage configured; report.json not uploaded.")
		return "", nil
	}
	if t.resolver == nil {
		return "", exception.NewBatchErrorf(moduleName, "report storage '%s' configured but no storage resolver available", t.cfg.ReportStorageRef)
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", exception.NewBatchError(moduleName, "failed to encode report", err, false, false)
	}
	conn, err := t.resolver.ResolveStorageConnection(ctx, t.cfg.ReportStorageRef)
	if err != nil {
		return "", exception.NewBatchError(moduleName, fmt.Sprintf("failed to resolve storage connection '%s'", t.cfg.ReportStorageRef), err, false, false)
	}
	err = retry.Do(ctx, t.retry, "report upload", func(ctx context.Context) error {
		if err := conn.Upload(ctx, t.cfg.ReportBucket, t.cfg.ReportPath, bytes.NewReader(data), "application/json"); err != nil {
			return exception.NewBatchError(moduleName, fmt.Sprintf("failed to upload report to '%s'", t.cfg.ReportPath), err, false, true)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	logger.Infof("Uploaded training report to %s/%s.", t.cfg.ReportStorageRef, t.cfg.ReportPath)
	return t.cfg.ReportPath, nil
}
