// Package client provides the HTTP client used by GPU worker nodes to
// pull review jobs and report results.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	apiv1 "github.com/gpufleet/reviewqueue/api/v1alpha1"
	"github.com/gpufleet/reviewqueue/internal/auth"
)

var (
	ErrUnauthorized = errors.New("worker token rejected")
	ErrNotFound     = errors.New("job not found")
	ErrConflict     = errors.New("job already completed")
)

// WorkerClient talks to the worker-side endpoints of the review queue.
type WorkerClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewWorkerClient(baseURL string, token string, timeout time.Duration) *WorkerClient {
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &WorkerClient{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Claim asks the queue for a job. A nil job means nothing was eligible.
func (c *WorkerClient) Claim(ctx context.Context, req apiv1.ClaimJobRequest) (*apiv1.Job, error) {
	reply, err := c.post(ctx, "/api/v1/reviews/claim", req)
	if err != nil {
		return nil, err
	}
	return reply.Job, nil
}

// Complete reports a terminal result for a previously claimed job.
func (c *WorkerClient) Complete(ctx context.Context, req apiv1.CompleteJobRequest) (*apiv1.Job, error) {
	reply, err := c.post(ctx, "/api/v1/reviews/complete", req)
	if err != nil {
		return nil, err
	}
	return reply.Job, nil
}

// Poll calls Claim until a job is handed out or ctx is cancelled. Empty
// polls back off up to ten times the base interval.
func (c *WorkerClient) Poll(ctx context.Context, req apiv1.ClaimJobRequest, interval time.Duration) (*apiv1.Job, error) {
	wait := interval
	for {
		job, err := c.Claim(ctx, req)
		if err != nil {
			return nil, err
		}
		if job != nil {
			return job, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}

		wait *= 2
		if wait > 10*interval {
			wait = 10 * interval
		}
	}
}

func (c *WorkerClient) post(ctx context.Context, path string, req any) (*apiv1.JobReply, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(auth.WorkerTokenHeader, c.token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call review queue: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return nil, ErrUnauthorized
	case http.StatusNotFound:
		return nil, ErrNotFound
	case http.StatusConflict:
		return nil, ErrConflict
	default:
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("review queue returned status %d: %s", resp.StatusCode, string(data))
	}

	var reply apiv1.JobReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &reply, nil
}
