package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure, such as running on the fallback
	// backend only.
	Degraded Status = "degraded"
	// Unhealthy indicates the store cannot serve requests.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status        Status
	Ready         bool
	Documents     int
	ActiveBackend string
	Checks        map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	store     StoreProber
	embedding EmbeddingChecker
}

// New creates a Service. embedding can be nil.
func New(store StoreProber, embedding EmbeddingChecker) *Service {
	return &Service{store: store, embedding: embedding}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	ready := s.store.Ready()
	if ready {
		checks["store"] = CheckOK
	} else {
		checks["store"] = CheckError
	}

	if s.store.HasPrimary() {
		if s.store.PrimaryActive() {
			checks["primary"] = CheckOK
		} else {
			checks["primary"] = CheckError
		}
	}

	if s.embedding != nil {
		if err := s.embedding.HealthCheck(ctx); err != nil {
			checks["embedding"] = CheckError
		} else {
			checks["embedding"] = CheckOK
		}
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}
	if checks["store"] == CheckError {
		status = Unhealthy
	}

	return Report{
		Status:        status,
		Ready:         ready,
		Documents:     s.store.Count(ctx),
		ActiveBackend: s.store.ActiveBackend(),
		Checks:        checks,
	}
}
