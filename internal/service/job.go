package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/gpufleet/reviewqueue/internal/events"
	"github.com/gpufleet/reviewqueue/internal/store"
	"github.com/gpufleet/reviewqueue/internal/store/model"
	"github.com/gpufleet/reviewqueue/pkg/metrics"
	"go.uber.org/zap"
)

const listJobsLimit = 50

// UnknownRunner tags claims from workers that did not identify their GPU.
const UnknownRunner = "unknown"

// JobCreateForm is the validated input of a submission.
type JobCreateForm struct {
	RepoURL string
	Class   string
}

func (f JobCreateForm) ToModel() model.ReviewJob {
	return model.NewReviewJob(f.RepoURL, f.Class)
}

// ClaimForm is the validated input of a worker poll.
type ClaimForm struct {
	Runner  string
	Classes []string
}

// CompleteForm is the validated input of a completion report.
type CompleteForm struct {
	JobID   uuid.UUID
	Status  model.JobStatus
	Content *string
	Error   *string
	GPU     *string
}

type JobService struct {
	store    store.Store
	evWriter *events.EventProducer
}

func NewJobService(store store.Store, evWriter *events.EventProducer) *JobService {
	return &JobService{store: store, evWriter: evWriter}
}

// CreateJob queues a new review job.
func (s *JobService) CreateJob(ctx context.Context, form JobCreateForm) (*model.ReviewJob, error) {
	job, err := s.store.Job().Create(ctx, form.ToModel())
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	metrics.JobsSubmittedTotal.WithLabelValues(job.Meta.Data().Class).Inc()
	s.emitEvent(ctx, events.JobSubmittedKind, job)

	zap.S().Named("job_service").Infow("job queued", "job_id", job.ID, "class", job.Meta.Data().Class)
	return job, nil
}

// ListJobs returns the most recent jobs, newest first.
func (s *JobService) ListJobs(ctx context.Context) (model.ReviewJobList, error) {
	jobs, err := s.store.Job().List(ctx, store.NewJobQueryFilter(),
		store.NewJobQueryOptions().WithSortOrder(store.SortByCreatedTimeDesc).WithLimit(listJobsLimit))
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}

// GetJob returns a single job by id.
func (s *JobService) GetJob(ctx context.Context, id uuid.UUID) (*model.ReviewJob, error) {
	job, err := s.store.Job().Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrJobNotFound(id)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// ClaimJob hands the oldest eligible queued job to the calling worker. A
// nil job with a nil error means the queue has nothing eligible, which is
// the normal outcome of polling, not a failure.
func (s *JobService) ClaimJob(ctx context.Context, form ClaimForm) (*model.ReviewJob, error) {
	runner := form.Runner
	if runner == "" {
		runner = UnknownRunner
	}

	ctx, err := s.store.NewTransactionContext(ctx)
	if err != nil {
		metrics.JobClaimsTotal.WithLabelValues(metrics.ClaimOutcomeError).Inc()
		return nil, fmt.Errorf("failed to start claim transaction: %w", err)
	}

	job, err := s.store.Job().Claim(ctx, runner, form.Classes)
	if err != nil {
		_, _ = store.Rollback(ctx)
		metrics.JobClaimsTotal.WithLabelValues(metrics.ClaimOutcomeError).Inc()
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}

	if _, err := store.Commit(ctx); err != nil {
		metrics.JobClaimsTotal.WithLabelValues(metrics.ClaimOutcomeError).Inc()
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}

	if job == nil {
		metrics.JobClaimsTotal.WithLabelValues(metrics.ClaimOutcomeEmpty).Inc()
		return nil, nil
	}

	metrics.JobClaimsTotal.WithLabelValues(metrics.ClaimOutcomeClaimed).Inc()
	s.emitEvent(ctx, events.JobClaimedKind, job)

	zap.S().Named("job_service").Infow("job claimed", "job_id", job.ID, "runner", runner)
	return job, nil
}

// CompleteJob transitions a job to its terminal status, merging the
// reported result into the metadata. A second completion for the same job
// is rejected so the first result is never silently overwritten.
func (s *JobService) CompleteJob(ctx context.Context, form CompleteForm) (*model.ReviewJob, error) {
	status := form.Status
	if status == "" {
		status = model.JobStatusDone
	}
	if !status.Terminal() {
		return nil, NewErrInvalidJobStatus(string(status))
	}

	meta := model.JobMeta{
		Content: form.Content,
		Error:   form.Error,
		GPU:     form.GPU,
	}

	ctx, err := s.store.NewTransactionContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start completion transaction: %w", err)
	}

	job, err := s.store.Job().Complete(ctx, form.JobID, status, meta)
	if err != nil {
		_, _ = store.Rollback(ctx)
		switch {
		case errors.Is(err, store.ErrRecordNotFound):
			return nil, NewErrJobNotFound(form.JobID)
		case errors.Is(err, store.ErrConflict):
			return nil, NewErrJobAlreadyCompleted(form.JobID)
		default:
			return nil, fmt.Errorf("failed to complete job: %w", err)
		}
	}

	if _, err := store.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit completion: %w", err)
	}

	metrics.JobsCompletedTotal.WithLabelValues(string(job.Status)).Inc()
	s.emitEvent(ctx, events.JobCompletedKind, job)

	zap.S().Named("job_service").Infow("job completed", "job_id", job.ID, "status", job.Status)
	return job, nil
}

// Stats returns the queue depth per job status.
func (s *JobService) Stats(ctx context.Context) (map[model.JobStatus]int64, error) {
	return s.store.Job().Stats(ctx)
}

func (s *JobService) emitEvent(ctx context.Context, kind string, job *model.ReviewJob) {
	if s.evWriter == nil {
		return
	}

	meta := job.Meta.Data()
	ev := events.JobEvent{
		JobID:  job.ID.String(),
		Status: string(job.Status),
		Class:  meta.Class,
	}
	if meta.Runner != nil {
		ev.Runner = *meta.Runner
	}

	if err := s.evWriter.WriteJSON(ctx, kind, ev); err != nil {
		zap.S().Named("job_service").Warnw("failed to emit job event", "kind", kind, "job_id", job.ID, "error", err)
	}
}
