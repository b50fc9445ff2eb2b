package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gpufleet/reviewqueue/internal/store/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Job is the interface for review-job database operations. Claim and
// Complete expect to run inside a transaction context created with
// Store.NewTransactionContext; their status transitions are guarded
// compare-and-swap updates so a lost race never half-applies.
type Job interface {
	Create(ctx context.Context, job model.ReviewJob) (*model.ReviewJob, error)
	Get(ctx context.Context, id uuid.UUID) (*model.ReviewJob, error)
	List(ctx context.Context, filter *JobQueryFilter, opts *JobQueryOptions) (model.ReviewJobList, error)
	Claim(ctx context.Context, runner string, classes []string) (*model.ReviewJob, error)
	Complete(ctx context.Context, id uuid.UUID, status model.JobStatus, meta model.JobMeta) (*model.ReviewJob, error)
	Stats(ctx context.Context) (map[model.JobStatus]int64, error)
	InitialMigration(ctx context.Context) error
}

type JobStore struct {
	db *gorm.DB
}

// Make sure we conform to Job interface
var _ Job = (*JobStore)(nil)

func NewJobStore(db *gorm.DB) Job {
	return &JobStore{db: db}
}

func (s *JobStore) InitialMigration(ctx context.Context) error {
	return s.getDB(ctx).AutoMigrate(&model.ReviewJob{})
}

// Create inserts a new job.
func (s *JobStore) Create(ctx context.Context, job model.ReviewJob) (*model.ReviewJob, error) {
	if err := s.getDB(ctx).WithContext(ctx).Create(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("creating job: %w", err)
	}

	return &job, nil
}

// Get returns a job based on its id.
func (s *JobStore) Get(ctx context.Context, id uuid.UUID) (*model.ReviewJob, error) {
	var job model.ReviewJob
	if err := s.getDB(ctx).WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying job: %w", err)
	}

	return &job, nil
}

// List lists jobs matching the filter.
func (s *JobStore) List(ctx context.Context, filter *JobQueryFilter, opts *JobQueryOptions) (model.ReviewJobList, error) {
	var jobs model.ReviewJobList
	tx := s.getDB(ctx).WithContext(ctx)

	if filter != nil {
		for _, fn := range filter.QueryFn {
			tx = fn(tx)
		}
	}

	if opts != nil {
		for _, fn := range opts.QueryFn {
			tx = fn(tx)
		}
	}

	if err := tx.Model(&jobs).Find(&jobs).Error; err != nil {
		return nil, err
	}

	return jobs, nil
}

// Claim atomically hands the oldest eligible queued job to runner. The
// selection locks the candidate row (FOR UPDATE SKIP LOCKED on postgres, so
// concurrent claimers skip past each other instead of queueing), and the
// transition is additionally guarded by status = queued: the update only
// lands if this call is the one that observed the job queued. Returns
// (nil, nil) when no eligible job exists.
func (s *JobStore) Claim(ctx context.Context, runner string, classes []string) (*model.ReviewJob, error) {
	db := s.getDB(ctx).WithContext(ctx)

	for {
		var job model.ReviewJob

		tx := db
		if tx.Dialector.Name() == "postgres" {
			tx = tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}
		filter := NewJobQueryFilter().ByStatus(model.JobStatusQueued).ByClasses(classes)
		for _, fn := range filter.QueryFn {
			tx = fn(tx)
		}

		err := tx.Order("created_at ASC").Order("id ASC").First(&job).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil
			}
			return nil, fmt.Errorf("selecting queued job: %w", err)
		}

		claimedAt := time.Now().UTC().Format(time.RFC3339)
		meta := job.Meta.Data().Merge(model.JobMeta{
			Runner:    &runner,
			ClaimedAt: &claimedAt,
		})

		result := db.Model(&model.ReviewJob{}).
			Where("id = ? AND status = ?", job.ID, model.JobStatusQueued).
			Updates(map[string]any{
				"status": model.JobStatusRunning,
				"meta":   model.MakeJSONField(meta),
			})
		if result.Error != nil {
			return nil, fmt.Errorf("claiming job %s: %w", job.ID, result.Error)
		}
		if result.RowsAffected == 0 {
			// lost the race for this candidate, pick the next one
			continue
		}

		job.Status = model.JobStatusRunning
		job.Meta = model.MakeJSONField(meta)
		return &job, nil
	}
}

// Complete moves a job to the given terminal status and merges meta
// additively. Completing a job that is already terminal returns ErrConflict
// and leaves the record untouched.
func (s *JobStore) Complete(ctx context.Context, id uuid.UUID, status model.JobStatus, meta model.JobMeta) (*model.ReviewJob, error) {
	db := s.getDB(ctx).WithContext(ctx)

	var job model.ReviewJob
	tx := db
	if tx.Dialector.Name() == "postgres" {
		tx = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := tx.First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying job: %w", err)
	}

	if job.Status.Terminal() {
		return nil, ErrConflict
	}

	merged := job.Meta.Data().Merge(meta)

	result := db.Model(&model.ReviewJob{}).
		Where("id = ? AND status NOT IN ?", job.ID, []model.JobStatus{model.JobStatusDone, model.JobStatusError}).
		Updates(map[string]any{
			"status": status,
			"meta":   model.MakeJSONField(merged),
		})
	if result.Error != nil {
		return nil, fmt.Errorf("completing job %s: %w", job.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrConflict
	}

	job.Status = status
	job.Meta = model.MakeJSONField(merged)
	return &job, nil
}

// Stats returns the number of jobs per status.
func (s *JobStore) Stats(ctx context.Context) (map[model.JobStatus]int64, error) {
	var rows []struct {
		Status model.JobStatus
		Total  int64
	}

	err := s.getDB(ctx).WithContext(ctx).
		Model(&model.ReviewJob{}).
		Select("status, count(*) as total").
		Group("status").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	stats := make(map[model.JobStatus]int64, len(rows))
	for _, row := range rows {
		stats[row.Status] = row.Total
	}
	return stats, nil
}

func (s *JobStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return s.db
}
