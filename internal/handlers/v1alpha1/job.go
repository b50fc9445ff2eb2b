package v1alpha1

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	apiv1 "github.com/gpufleet/reviewqueue/api/v1alpha1"
	"github.com/gpufleet/reviewqueue/internal/auth"
	"github.com/gpufleet/reviewqueue/internal/handlers/v1alpha1/mappers"
	"github.com/gpufleet/reviewqueue/internal/handlers/validator"
	"github.com/gpufleet/reviewqueue/internal/service"
	"github.com/gpufleet/reviewqueue/internal/store/model"
	"github.com/gpufleet/reviewqueue/pkg/log"
)

func (h *ServiceHandler) SubmitJob(w http.ResponseWriter, r *http.Request) {
	user := auth.MustHaveUser(r.Context())
	logger := log.NewDebugLogger("job_handler").WithContext(r.Context()).Operation("submit_job").WithParam("user", user.Username).Build()

	var req apiv1.SubmitJobRequest
	if err := decodeBody(r, &req); err != nil {
		logger.Error(err).Log()
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, apiv1.Error{Error: "Invalid request body"})
		return
	}

	if err := h.validator.Struct(req); err != nil {
		logger.Error(err).Log()
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, apiv1.ValidationError{Error: "Validation failed", Issues: validator.Issues(err)})
		return
	}

	job, err := h.jobSrv.CreateJob(r.Context(), service.JobCreateForm{RepoURL: req.RepoUrl, Class: req.Klass})
	if err != nil {
		logger.Error(err).Log()
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, apiv1.Error{Error: "Internal server error"})
		return
	}

	logger.Success().WithParam("job_id", job.ID).Log()
	render.JSON(w, r, apiv1.JobReply{Job: mappers.JobToApi(job)})
}

func (h *ServiceHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	logger := log.NewDebugLogger("job_handler").WithContext(r.Context()).Operation("list_jobs").Build()

	jobs, err := h.jobSrv.ListJobs(r.Context())
	if err != nil {
		logger.Error(err).Log()
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, apiv1.Error{Error: "Internal server error"})
		return
	}

	logger.Success().WithParam("count", len(jobs)).Log()
	render.JSON(w, r, apiv1.JobListReply{Jobs: mappers.JobListToApi(jobs)})
}

func (h *ServiceHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	logger := log.NewDebugLogger("job_handler").WithContext(r.Context()).Operation("get_job").Build()

	jobID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		logger.Error(err).Log()
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, apiv1.ValidationError{Error: "Validation failed", Issues: []string{"id must be a valid uuid"}})
		return
	}

	job, err := h.jobSrv.GetJob(r.Context(), jobID)
	if err != nil {
		logger.Error(err).Log()
		switch err.(type) {
		case *service.ErrJobNotFound:
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, apiv1.Error{Error: err.Error()})
		default:
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, apiv1.Error{Error: "Internal server error"})
		}
		return
	}

	logger.Success().WithParam("job_id", job.ID).Log()
	render.JSON(w, r, apiv1.JobReply{Job: mappers.JobToApi(job)})
}

func (h *ServiceHandler) ClaimJob(w http.ResponseWriter, r *http.Request) {
	logger := log.NewDebugLogger("job_handler").WithContext(r.Context()).Operation("claim_job").Build()

	var req apiv1.ClaimJobRequest
	if err := decodeBody(r, &req); err != nil {
		logger.Error(err).Log()
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, apiv1.Error{Error: "Invalid request body"})
		return
	}

	if err := h.validator.Struct(req); err != nil {
		logger.Error(err).Log()
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, apiv1.ValidationError{Error: "Validation failed", Issues: validator.Issues(err)})
		return
	}

	form := service.ClaimForm{Classes: req.Classes}
	if req.Gpu != nil {
		form.Runner = *req.Gpu
	}

	job, err := h.jobSrv.ClaimJob(r.Context(), form)
	if err != nil {
		logger.Error(err).Log()
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, apiv1.Error{Error: "Internal server error"})
		return
	}

	// an empty queue is a normal poll outcome
	if job == nil {
		logger.Success().WithParam("claimed", false).Log()
		render.JSON(w, r, apiv1.JobReply{Job: nil})
		return
	}

	logger.Success().WithParam("job_id", job.ID).Log()
	render.JSON(w, r, apiv1.JobReply{Job: mappers.JobToApi(job)})
}

func (h *ServiceHandler) CompleteJob(w http.ResponseWriter, r *http.Request) {
	logger := log.NewDebugLogger("job_handler").WithContext(r.Context()).Operation("complete_job").Build()

	var req apiv1.CompleteJobRequest
	if err := decodeBody(r, &req); err != nil {
		logger.Error(err).Log()
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, apiv1.Error{Error: "Invalid request body"})
		return
	}

	if err := h.validator.Struct(req); err != nil {
		logger.Error(err).Log()
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, apiv1.ValidationError{Error: "Validation failed", Issues: validator.Issues(err)})
		return
	}

	jobID, err := uuid.Parse(req.JobId)
	if err != nil {
		logger.Error(err).Log()
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, apiv1.ValidationError{Error: "Validation failed", Issues: []string{"jobId must be a valid uuid"}})
		return
	}

	job, err := h.jobSrv.CompleteJob(r.Context(), service.CompleteForm{
		JobID:   jobID,
		Status:  model.JobStatus(req.Status),
		Content: req.Content,
		Error:   req.Error,
		GPU:     req.Gpu,
	})
	if err != nil {
		logger.Error(err).Log()
		switch err.(type) {
		case *service.ErrJobNotFound:
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, apiv1.Error{Error: err.Error()})
		case *service.ErrJobAlreadyCompleted:
			render.Status(r, http.StatusConflict)
			render.JSON(w, r, apiv1.Error{Error: err.Error()})
		case *service.ErrInvalidJobStatus:
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, apiv1.ValidationError{Error: "Validation failed", Issues: []string{err.Error()}})
		default:
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, apiv1.Error{Error: "Internal server error"})
		}
		return
	}

	logger.Success().WithParam("job_id", job.ID).WithParam("status", job.Status).Log()
	render.JSON(w, r, apiv1.JobReply{Job: mappers.JobToApi(job)})
}

// decodeBody reads req from the body, treating an empty body as the zero
// value so optional payloads validate like explicit empty objects.
func decodeBody(r *http.Request, req any) error {
	if err := render.DecodeJSON(r.Body, req); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}
