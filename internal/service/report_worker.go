package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/vigilance-tracker-api/internal/models"
	"github.com/noah-isme/vigilance-tracker-api/internal/repository"
	"github.com/noah-isme/vigilance-tracker-api/pkg/jobs"
)

type exportGenerator interface {
	Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error)
}

// ReportWorker runs queued register exports and records their lifecycle on the job row.
type ReportWorker struct {
	repo       reportJobStore
	exporter   exportGenerator
	metrics    *MetricsService
	logger     *zap.Logger
	maxRetries int
}

func NewReportWorker(repo reportJobStore, exporter exportGenerator, metrics *MetricsService, maxRetries int, logger *zap.Logger) *ReportWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &ReportWorker{repo: repo, exporter: exporter, metrics: metrics, logger: logger, maxRetries: maxRetries}
}

// Handle is the queue handler. Jobs already finished or failed are skipped. A failed attempt before the
// last one returns the job to QUEUED so status polling shows the retry.
func (w *ReportWorker) Handle(ctx context.Context, job jobs.Job) error {
	record, err := w.repo.GetByID(ctx, job.ID)
	if err != nil {
		return err
	}
	if record.Terminal() {
		return nil
	}
	if err := w.mark(ctx, job.ID, models.ReportStatusProcessing, 10, repository.ReportJobUpdate{}); err != nil {
		return err
	}

	result, err := w.exporter.Generate(ctx, record)
	if err != nil {
		w.fail(ctx, job, record, err)
		return err
	}

	done := time.Now().UTC()
	noError := ""
	if err := w.mark(ctx, job.ID, models.ReportStatusFinished, 100, repository.ReportJobUpdate{
		ResultPath:   &result.RelativePath,
		ErrorMessage: &noError,
		FinishedAt:   &done,
	}); err != nil {
		w.logger.Warn("failed to mark report finished", zap.String("job_id", job.ID), zap.Error(err))
		return err
	}
	w.metrics.ObserveReportJob(string(record.Type), string(models.ReportStatusFinished))
	w.logger.Info("report job finished",
		zap.String("job_id", job.ID),
		zap.String("type", string(record.Type)),
		zap.Int("rows", result.Rows),
	)
	return nil
}

func (w *ReportWorker) fail(ctx context.Context, job jobs.Job, record *models.ReportJob, cause error) {
	msg := cause.Error()
	if job.Attempt < w.maxRetries {
		if err := w.mark(ctx, job.ID, models.ReportStatusQueued, 0, repository.ReportJobUpdate{ErrorMessage: &msg}); err != nil {
			w.logger.Warn("failed to requeue report", zap.String("job_id", job.ID), zap.Error(err))
		}
		return
	}
	done := time.Now().UTC()
	if err := w.mark(ctx, job.ID, models.ReportStatusFailed, 100, repository.ReportJobUpdate{ErrorMessage: &msg, FinishedAt: &done}); err != nil {
		w.logger.Warn("failed to mark report failed", zap.String("job_id", job.ID), zap.Error(err))
	}
	w.metrics.ObserveReportJob(string(record.Type), string(models.ReportStatusFailed))
	w.logger.Error("report job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(cause))
}

// mark writes status and progress together with any extra columns set on upd.
func (w *ReportWorker) mark(ctx context.Context, id string, status models.ReportStatus, progress int, upd repository.ReportJobUpdate) error {
	upd.Status = &status
	upd.Progress = &progress
	return w.repo.Update(ctx, id, upd)
}
