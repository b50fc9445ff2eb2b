package service

import (
	"fmt"

	"github.com/google/uuid"
)

type ErrJobNotFound struct {
	error
}

func NewErrJobNotFound(id uuid.UUID) *ErrJobNotFound {
	return &ErrJobNotFound{fmt.Errorf("job %s not found", id)}
}

type ErrJobAlreadyCompleted struct {
	error
}

func NewErrJobAlreadyCompleted(id uuid.UUID) *ErrJobAlreadyCompleted {
	return &ErrJobAlreadyCompleted{fmt.Errorf("job %s is already in a terminal state", id)}
}

type ErrInvalidJobStatus struct {
	error
}

func NewErrInvalidJobStatus(status string) *ErrInvalidJobStatus {
	return &ErrInvalidJobStatus{fmt.Errorf("status %q is not a terminal job status", status)}
}
