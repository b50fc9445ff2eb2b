// Package v1alpha1 implements the HTTP handlers of the review-queue API.
package v1alpha1

import (
	"github.com/gpufleet/reviewqueue/internal/handlers/validator"
	"github.com/gpufleet/reviewqueue/internal/service"
)

type ServiceHandler struct {
	jobSrv    *service.JobService
	validator *validator.Validator
}

func NewServiceHandler(jobSrv *service.JobService) *ServiceHandler {
	v := validator.NewValidator()
	v.Register(validator.NewJobValidationRules()...)

	return &ServiceHandler{
		jobSrv:    jobSrv,
		validator: v,
	}
}
