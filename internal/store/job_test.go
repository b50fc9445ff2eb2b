package store_test

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/gpufleet/reviewqueue/internal/config"
	st "github.com/gpufleet/reviewqueue/internal/store"
	"github.com/gpufleet/reviewqueue/internal/store/model"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"
)

const (
	insertJobStm = "INSERT INTO review_jobs (id, repo_url, status, meta, created_at) VALUES ('%s', 'https://example.com/org/repo', '%s', '%s', '%s');"
)

func claimInTx(s st.Store, runner string, classes []string) (*model.ReviewJob, error) {
	ctx, err := s.NewTransactionContext(context.TODO())
	if err != nil {
		return nil, err
	}
	job, err := s.Job().Claim(ctx, runner, classes)
	if err != nil {
		_, _ = st.Rollback(ctx)
		return nil, err
	}
	_, err = st.Commit(ctx)
	return job, err
}

var _ = Describe("job store", Ordered, func() {
	var (
		s      st.Store
		gormdb *gorm.DB
	)

	BeforeAll(func() {
		cfg := config.NewDefault()
		cfg.Database.Type = "sqlite"
		cfg.Database.Name = ":memory:"

		db, err := st.InitDB(cfg)
		Expect(err).To(BeNil())

		s = st.NewStore(db)
		gormdb = db

		Expect(s.InitialMigration(context.TODO())).To(Succeed())
	})

	AfterAll(func() {
		s.Close()
	})

	AfterEach(func() {
		gormdb.Exec("DELETE from review_jobs;")
	})

	Context("create", func() {
		It("creates a queued job with the class in meta", func() {
			job, err := s.Job().Create(context.TODO(), model.NewReviewJob("https://example.com/org/repo", "heavy"))
			Expect(err).To(BeNil())
			Expect(job.Status).To(Equal(model.JobStatusQueued))
			Expect(job.Meta.Data().Class).To(Equal("heavy"))

			found, err := s.Job().Get(context.TODO(), job.ID)
			Expect(err).To(BeNil())
			Expect(found.RepoURL).To(Equal("https://example.com/org/repo"))
			Expect(found.Meta.Data().Class).To(Equal("heavy"))
		})

		It("defaults the class to quick", func() {
			job, err := s.Job().Create(context.TODO(), model.NewReviewJob("https://example.com/org/repo", ""))
			Expect(err).To(BeNil())
			Expect(job.Meta.Data().Class).To(Equal(model.DefaultJobClass))
		})
	})

	Context("get", func() {
		It("returns ErrRecordNotFound for an unknown id", func() {
			_, err := s.Job().Get(context.TODO(), uuid.New())
			Expect(err).To(MatchError(st.ErrRecordNotFound))
		})
	})

	Context("list", func() {
		It("returns jobs newest first", func() {
			tx := gormdb.Exec(fmt.Sprintf(insertJobStm, uuid.NewString(), "queued", `{"class":"quick"}`, "2025-06-14 12:00:00"))
			Expect(tx.Error).To(BeNil())
			second := uuid.NewString()
			tx = gormdb.Exec(fmt.Sprintf(insertJobStm, second, "queued", `{"class":"quick"}`, "2025-06-14 12:00:05"))
			Expect(tx.Error).To(BeNil())

			jobs, err := s.Job().List(context.TODO(), st.NewJobQueryFilter(),
				st.NewJobQueryOptions().WithSortOrder(st.SortByCreatedTimeDesc).WithLimit(50))
			Expect(err).To(BeNil())
			Expect(jobs).To(HaveLen(2))
			Expect(jobs[0].ID.String()).To(Equal(second))
		})

		It("filters by status", func() {
			tx := gormdb.Exec(fmt.Sprintf(insertJobStm, uuid.NewString(), "queued", `{"class":"quick"}`, "2025-06-14 12:00:00"))
			Expect(tx.Error).To(BeNil())
			tx = gormdb.Exec(fmt.Sprintf(insertJobStm, uuid.NewString(), "running", `{"class":"quick"}`, "2025-06-14 12:00:01"))
			Expect(tx.Error).To(BeNil())

			jobs, err := s.Job().List(context.TODO(), st.NewJobQueryFilter().ByStatus(model.JobStatusQueued), nil)
			Expect(err).To(BeNil())
			Expect(jobs).To(HaveLen(1))
		})

		It("filters by class", func() {
			tx := gormdb.Exec(fmt.Sprintf(insertJobStm, uuid.NewString(), "queued", `{"class":"quick"}`, "2025-06-14 12:00:00"))
			Expect(tx.Error).To(BeNil())
			heavy := uuid.NewString()
			tx = gormdb.Exec(fmt.Sprintf(insertJobStm, heavy, "queued", `{"class":"heavy"}`, "2025-06-14 12:00:01"))
			Expect(tx.Error).To(BeNil())

			jobs, err := s.Job().List(context.TODO(), st.NewJobQueryFilter().ByClasses([]string{"heavy"}), nil)
			Expect(err).To(BeNil())
			Expect(jobs).To(HaveLen(1))
			Expect(jobs[0].ID.String()).To(Equal(heavy))

			// empty class list matches everything
			jobs, err = s.Job().List(context.TODO(), st.NewJobQueryFilter().ByClasses(nil), nil)
			Expect(err).To(BeNil())
			Expect(jobs).To(HaveLen(2))
		})
	})

	Context("claim", func() {
		It("claims the oldest queued job first", func() {
			oldest := uuid.NewString()
			tx := gormdb.Exec(fmt.Sprintf(insertJobStm, oldest, "queued", `{"class":"quick"}`, "2025-06-14 12:00:00"))
			Expect(tx.Error).To(BeNil())
			tx = gormdb.Exec(fmt.Sprintf(insertJobStm, uuid.NewString(), "queued", `{"class":"quick"}`, "2025-06-14 12:00:05"))
			Expect(tx.Error).To(BeNil())

			job, err := claimInTx(s, "gpu-1", nil)
			Expect(err).To(BeNil())
			Expect(job).ToNot(BeNil())
			Expect(job.ID.String()).To(Equal(oldest))
			Expect(job.Status).To(Equal(model.JobStatusRunning))
			Expect(job.Meta.Data().Runner).To(HaveValue(Equal("gpu-1")))
			Expect(job.Meta.Data().ClaimedAt).ToNot(BeNil())
			// class survives the claim merge
			Expect(job.Meta.Data().Class).To(Equal("quick"))
		})

		It("returns claimed jobs in submission order", func() {
			first := uuid.NewString()
			second := uuid.NewString()
			third := uuid.NewString()
			for i, id := range []string{first, second, third} {
				tx := gormdb.Exec(fmt.Sprintf(insertJobStm, id, "queued", `{"class":"quick"}`, fmt.Sprintf("2025-06-14 12:00:0%d", i)))
				Expect(tx.Error).To(BeNil())
			}

			for _, expected := range []string{first, second, third} {
				job, err := claimInTx(s, "gpu-1", nil)
				Expect(err).To(BeNil())
				Expect(job.ID.String()).To(Equal(expected))
			}
		})

		It("returns nil when no job is queued", func() {
			job, err := claimInTx(s, "gpu-1", nil)
			Expect(err).To(BeNil())
			Expect(job).To(BeNil())
		})

		It("skips jobs outside the requested classes", func() {
			tx := gormdb.Exec(fmt.Sprintf(insertJobStm, uuid.NewString(), "queued", `{"class":"heavy"}`, "2025-06-14 12:00:00"))
			Expect(tx.Error).To(BeNil())

			job, err := claimInTx(s, "gpu-1", []string{"quick"})
			Expect(err).To(BeNil())
			Expect(job).To(BeNil())

			job, err = claimInTx(s, "gpu-1", []string{"quick", "heavy"})
			Expect(err).To(BeNil())
			Expect(job).ToNot(BeNil())
			Expect(job.Meta.Data().Class).To(Equal("heavy"))
		})

		It("matches any class when the filter is empty", func() {
			tx := gormdb.Exec(fmt.Sprintf(insertJobStm, uuid.NewString(), "queued", `{"class":"heavy"}`, "2025-06-14 12:00:00"))
			Expect(tx.Error).To(BeNil())

			job, err := claimInTx(s, "gpu-1", []string{})
			Expect(err).To(BeNil())
			Expect(job).ToNot(BeNil())
		})

		It("hands a single job to exactly one of many concurrent claimers", func() {
			jobID := uuid.NewString()
			tx := gormdb.Exec(fmt.Sprintf(insertJobStm, jobID, "queued", `{"class":"quick"}`, "2025-06-14 12:00:00"))
			Expect(tx.Error).To(BeNil())

			const claimers = 8
			results := make([]*model.ReviewJob, claimers)
			errs := make([]error, claimers)

			var wg sync.WaitGroup
			for i := 0; i < claimers; i++ {
				wg.Add(1)
				go func(n int) {
					defer wg.Done()
					results[n], errs[n] = claimInTx(s, fmt.Sprintf("gpu-%d", n), nil)
				}(i)
			}
			wg.Wait()

			winners := 0
			var winner int
			for i := 0; i < claimers; i++ {
				Expect(errs[i]).To(BeNil())
				if results[i] != nil {
					winners++
					winner = i
				}
			}
			Expect(winners).To(Equal(1))

			job, err := s.Job().Get(context.TODO(), uuid.MustParse(jobID))
			Expect(err).To(BeNil())
			Expect(job.Status).To(Equal(model.JobStatusRunning))
			Expect(job.Meta.Data().Runner).To(HaveValue(Equal(fmt.Sprintf("gpu-%d", winner))))
		})
	})

	Context("complete", func() {
		It("moves a running job to done and merges meta additively", func() {
			tx := gormdb.Exec(fmt.Sprintf(insertJobStm, uuid.NewString(), "queued", `{"class":"quick"}`, "2025-06-14 12:00:00"))
			Expect(tx.Error).To(BeNil())

			claimed, err := claimInTx(s, "gpu-1", nil)
			Expect(err).To(BeNil())

			content := "all good"
			gpu := "rtx3060"
			done, err := s.Job().Complete(context.TODO(), claimed.ID, model.JobStatusDone, model.JobMeta{Content: &content, GPU: &gpu})
			Expect(err).To(BeNil())
			Expect(done.Status).To(Equal(model.JobStatusDone))

			meta := done.Meta.Data()
			Expect(meta.Class).To(Equal("quick"))
			Expect(meta.Runner).To(HaveValue(Equal("gpu-1")))
			Expect(meta.ClaimedAt).ToNot(BeNil())
			Expect(meta.Content).To(HaveValue(Equal("all good")))
			Expect(meta.GPU).To(HaveValue(Equal("rtx3060")))
		})

		It("returns ErrRecordNotFound for an unknown job", func() {
			_, err := s.Job().Complete(context.TODO(), uuid.New(), model.JobStatusDone, model.JobMeta{})
			Expect(err).To(MatchError(st.ErrRecordNotFound))
		})

		It("rejects a second completion with ErrConflict", func() {
			tx := gormdb.Exec(fmt.Sprintf(insertJobStm, uuid.NewString(), "queued", `{"class":"quick"}`, "2025-06-14 12:00:00"))
			Expect(tx.Error).To(BeNil())

			claimed, err := claimInTx(s, "gpu-1", nil)
			Expect(err).To(BeNil())

			_, err = s.Job().Complete(context.TODO(), claimed.ID, model.JobStatusDone, model.JobMeta{})
			Expect(err).To(BeNil())

			_, err = s.Job().Complete(context.TODO(), claimed.ID, model.JobStatusError, model.JobMeta{})
			Expect(err).To(MatchError(st.ErrConflict))

			// the first completion is untouched
			job, err := s.Job().Get(context.TODO(), claimed.ID)
			Expect(err).To(BeNil())
			Expect(job.Status).To(Equal(model.JobStatusDone))
			Expect(job.Meta.Data().Runner).To(HaveValue(Equal("gpu-1")))
		})
	})

	Context("stats", func() {
		It("counts jobs per status", func() {
			tx := gormdb.Exec(fmt.Sprintf(insertJobStm, uuid.NewString(), "queued", `{"class":"quick"}`, "2025-06-14 12:00:00"))
			Expect(tx.Error).To(BeNil())
			tx = gormdb.Exec(fmt.Sprintf(insertJobStm, uuid.NewString(), "queued", `{"class":"quick"}`, "2025-06-14 12:00:01"))
			Expect(tx.Error).To(BeNil())
			tx = gormdb.Exec(fmt.Sprintf(insertJobStm, uuid.NewString(), "done", `{"class":"quick"}`, "2025-06-14 12:00:02"))
			Expect(tx.Error).To(BeNil())

			stats, err := s.Job().Stats(context.TODO())
			Expect(err).To(BeNil())
			Expect(stats[model.JobStatusQueued]).To(Equal(int64(2)))
			Expect(stats[model.JobStatusDone]).To(Equal(int64(1)))
		})
	})

	Context("transaction", func() {
		It("rolls back a claim without leaving partial state", func() {
			jobID := uuid.NewString()
			tx := gormdb.Exec(fmt.Sprintf(insertJobStm, jobID, "queued", `{"class":"quick"}`, "2025-06-14 12:00:00"))
			Expect(tx.Error).To(BeNil())

			ctx, err := s.NewTransactionContext(context.TODO())
			Expect(err).To(BeNil())

			job, err := s.Job().Claim(ctx, "gpu-1", nil)
			Expect(err).To(BeNil())
			Expect(job).ToNot(BeNil())

			_, err = st.Rollback(ctx)
			Expect(err).To(BeNil())

			found, err := s.Job().Get(context.TODO(), uuid.MustParse(jobID))
			Expect(err).To(BeNil())
			Expect(found.Status).To(Equal(model.JobStatusQueued))
			Expect(found.Meta.Data().Runner).To(BeNil())
		})
	})
})
