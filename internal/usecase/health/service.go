package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
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
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	db         DBPinger
	embedding  ProviderChecker
	generation ProviderChecker
	idx        IndexReader
}

// New creates a Service. db may be nil when no cache store is configured;
// embedding and generation may share one checker.
func New(db DBPinger, embedding, generation ProviderChecker, idx IndexReader) *Service {
	return &Service{db: db, embedding: embedding, generation: generation, idx: idx}
}

// Check runs health checks against all configured components. Provider
// trouble degrades the report rather than failing it: the pipeline still
// serves fallback answers with providers down.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	if s.db != nil {
		if err := s.db.Ping(ctx); err != nil {
			checks["cache"] = CheckError
		} else {
			checks["cache"] = CheckOK
		}
	}

	if s.embedding != nil {
		if err := s.embedding.HealthCheck(ctx); err != nil {
			checks["embedding"] = CheckError
		} else {
			checks["embedding"] = CheckOK
		}
	}

	if s.generation != nil {
		if err := s.generation.HealthCheck(ctx); err != nil {
			checks["generation"] = CheckError
		} else {
			checks["generation"] = CheckOK
		}
	}

	if s.Ready() {
		checks["index"] = CheckOK
	} else {
		checks["index"] = CheckError
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}

	return Report{Status: status, Checks: checks}
}

// Ready reports whether the service can answer queries: an index snapshot is
// installed and non-empty.
func (s *Service) Ready() bool {
	snapshot := s.idx.Current()
	return snapshot != nil && snapshot.Len() > 0
}
