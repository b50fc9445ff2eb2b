package mappers

import (
	apiv1 "github.com/gpufleet/reviewqueue/api/v1alpha1"
	"github.com/gpufleet/reviewqueue/internal/store/model"
)

func JobToApi(job *model.ReviewJob) *apiv1.Job {
	meta := job.Meta.Data()
	return &apiv1.Job{
		Id:      job.ID.String(),
		RepoUrl: job.RepoURL,
		Status:  string(job.Status),
		Meta: apiv1.JobMeta{
			Class:     meta.Class,
			Runner:    meta.Runner,
			ClaimedAt: meta.ClaimedAt,
			Content:   meta.Content,
			Error:     meta.Error,
			Gpu:       meta.GPU,
		},
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	}
}

func JobListToApi(jobs model.ReviewJobList) []apiv1.Job {
	out := make([]apiv1.Job, 0, len(jobs))
	for i := range jobs {
		out = append(out, *JobToApi(&jobs[i]))
	}
	return out
}
