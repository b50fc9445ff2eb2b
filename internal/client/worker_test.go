package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	apiv1 "github.com/gpufleet/reviewqueue/api/v1alpha1"
	"github.com/gpufleet/reviewqueue/internal/auth"
	"github.com/gpufleet/reviewqueue/internal/client"
)

var _ = Describe("worker client", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("Claim", func() {
		It("sends the worker token and returns the claimed job", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				Expect(r.Method).To(Equal(http.MethodPost))
				Expect(r.URL.Path).To(Equal("/api/v1/reviews/claim"))
				Expect(r.Header.Get(auth.WorkerTokenHeader)).To(Equal("secret"))

				var req apiv1.ClaimJobRequest
				Expect(json.NewDecoder(r.Body).Decode(&req)).To(Succeed())
				Expect(req.Classes).To(Equal([]string{"quick"}))

				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(apiv1.JobReply{Job: &apiv1.Job{Id: "job-1", Status: "running"}})
			}))
			defer server.Close()

			c := client.NewWorkerClient(server.URL, "secret", 5*time.Second)
			job, err := c.Claim(ctx, apiv1.ClaimJobRequest{Classes: []string{"quick"}})
			Expect(err).To(BeNil())
			Expect(job).NotTo(BeNil())
			Expect(job.Id).To(Equal("job-1"))
			Expect(job.Status).To(Equal("running"))
		})

		It("returns a nil job on an empty queue", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(apiv1.JobReply{Job: nil})
			}))
			defer server.Close()

			c := client.NewWorkerClient(server.URL, "secret", 5*time.Second)
			job, err := c.Claim(ctx, apiv1.ClaimJobRequest{})
			Expect(err).To(BeNil())
			Expect(job).To(BeNil())
		})

		It("surfaces a rejected token", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
			}))
			defer server.Close()

			c := client.NewWorkerClient(server.URL, "wrong", 5*time.Second)
			_, err := c.Claim(ctx, apiv1.ClaimJobRequest{})
			Expect(err).To(MatchError(client.ErrUnauthorized))
		})
	})

	Describe("Complete", func() {
		It("maps 404 and 409 to sentinel errors", func() {
			status := http.StatusNotFound
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
			}))
			defer server.Close()

			c := client.NewWorkerClient(server.URL, "secret", 5*time.Second)
			_, err := c.Complete(ctx, apiv1.CompleteJobRequest{JobId: "job-1"})
			Expect(err).To(MatchError(client.ErrNotFound))

			status = http.StatusConflict
			_, err = c.Complete(ctx, apiv1.CompleteJobRequest{JobId: "job-1"})
			Expect(err).To(MatchError(client.ErrConflict))
		})
	})

	Describe("Poll", func() {
		It("retries empty polls until a job shows up", func() {
			calls := 0
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls++
				w.Header().Set("Content-Type", "application/json")
				if calls < 3 {
					_ = json.NewEncoder(w).Encode(apiv1.JobReply{Job: nil})
					return
				}
				_ = json.NewEncoder(w).Encode(apiv1.JobReply{Job: &apiv1.Job{Id: "job-1", Status: "running"}})
			}))
			defer server.Close()

			c := client.NewWorkerClient(server.URL, "secret", 5*time.Second)
			job, err := c.Poll(ctx, apiv1.ClaimJobRequest{}, 5*time.Millisecond)
			Expect(err).To(BeNil())
			Expect(job).NotTo(BeNil())
			Expect(calls).To(Equal(3))
		})

		It("stops when the context is cancelled", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(apiv1.JobReply{Job: nil})
			}))
			defer server.Close()

			pollCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
			defer cancel()

			c := client.NewWorkerClient(server.URL, "secret", 5*time.Second)
			_, err := c.Poll(pollCtx, apiv1.ClaimJobRequest{}, 10*time.Millisecond)
			Expect(err).To(MatchError(context.DeadlineExceeded))
		})
	})
})
