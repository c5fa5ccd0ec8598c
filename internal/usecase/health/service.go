package health

import (
	"context"
	"time"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates total failure.
	Unhealthy Status = "error"
)

// Check is an individual component health check outcome.
type Check struct {
	OK        bool
	LatencyMS int64
	Error     string
}

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]Check
}

// Service coordinates component health checks.
type Service struct {
	store     StorePinger
	embedding EmbeddingChecker
}

// New creates a Service. embedding can be nil when the pipeline runs with
// deterministic embeddings only.
func New(store StorePinger, embedding EmbeddingChecker) *Service {
	return &Service{store: store, embedding: embedding}
}

// Check probes all components. The store is the only mandatory component;
// a failing embedding provider degrades the pipeline because the fallback
// embedder keeps queries answerable.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]Check)

	checks["vector_store"] = probe(ctx, s.store.Ping)
	if s.embedding != nil {
		checks["embedding_provider"] = probe(ctx, s.embedding.HealthCheck)
	}

	failing := 0
	for _, c := range checks {
		if !c.OK {
			failing++
		}
	}

	status := Healthy
	switch {
	case failing == len(checks):
		status = Unhealthy
	case failing > 0:
		status = Degraded
	}

	return Report{Status: status, Checks: checks}
}

func probe(ctx context.Context, fn func(context.Context) error) Check {
	start := time.Now()
	err := fn(ctx)
	c := Check{OK: err == nil, LatencyMS: time.Since(start).Milliseconds()}
	if err != nil {
		c.Error = err.Error()
	}
	return c
}
