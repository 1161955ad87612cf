package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// HealthStatus is the health state of a component.
type HealthStatus string

const (
	// StatusHealthy indicates the component is healthy.
	StatusHealthy HealthStatus = "healthy"
	// StatusUnhealthy indicates the component is unhealthy.
	StatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheck is a component health probe.
type HealthCheck func(ctx context.Context) error

// ComponentHealth is the probe result of one component.
type ComponentHealth struct {
	Status  HealthStatus `json:"status"`
	Error   string       `json:"error,omitempty"`
	Latency string       `json:"latency,omitempty"`
}

// HealthResponse is the overall health check response.
type HealthResponse struct {
	Status     HealthStatus               `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]ComponentHealth `json:"components"`
}

// ReadinessResponse is the readiness check response.
type ReadinessResponse struct {
	Ready      bool                       `json:"ready"`
	Timestamp  time.Time                  `json:"timestamp"`
	Components map[string]ComponentHealth `json:"components"`
}

// HealthChecker runs registered health and readiness checks.
type HealthChecker struct {
	mu              sync.RWMutex
	healthChecks    map[string]HealthCheck
	readinessChecks map[string]HealthCheck
	version         string
	timeout         time.Duration
}

// NewHealthChecker creates a health checker reporting the given version.
func NewHealthChecker(version string) *HealthChecker {
	return &HealthChecker{
		healthChecks:    make(map[string]HealthCheck),
		readinessChecks: make(map[string]HealthCheck),
		version:         version,
		timeout:         5 * time.Second,
	}
}

// RegisterHealthCheck registers a health check for a component.
func (hc *HealthChecker) RegisterHealthCheck(name string, check HealthCheck) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.healthChecks[name] = check
}

// RegisterReadinessCheck registers a readiness check for a component.
func (hc *HealthChecker) RegisterReadinessCheck(name string, check HealthCheck) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.readinessChecks[name] = check
}

// SetTimeout sets the per-run check timeout.
func (hc *HealthChecker) SetTimeout(timeout time.Duration) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.timeout = timeout
}

// CheckHealth runs every health check and aggregates the results.
func (hc *HealthChecker) CheckHealth(ctx context.Context) *HealthResponse {
	checks, timeout := hc.snapshot(hc.healthChecks)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	components := runChecks(ctx, checks)

	status := StatusHealthy
	for _, c := range components {
		if c.Status == StatusUnhealthy {
			status = StatusUnhealthy
			break
		}
	}

	return &HealthResponse{
		Status:     status,
		Timestamp:  time.Now().UTC(),
		Version:    hc.version,
		Components: components,
	}
}

// CheckReadiness runs every readiness check; all must pass.
func (hc *HealthChecker) CheckReadiness(ctx context.Context) *ReadinessResponse {
	checks, timeout := hc.snapshot(hc.readinessChecks)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	components := runChecks(ctx, checks)

	ready := true
	for _, c := range components {
		if c.Status != StatusHealthy {
			ready = false
			break
		}
	}

	return &ReadinessResponse{
		Ready:      ready,
		Timestamp:  time.Now().UTC(),
		Components: components,
	}
}

func (hc *HealthChecker) snapshot(src map[string]HealthCheck) (map[string]HealthCheck, time.Duration) {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	checks := make(map[string]HealthCheck, len(src))
	for name, check := range src {
		checks[name] = check
	}
	return checks, hc.timeout
}

// runChecks executes the checks concurrently.
func runChecks(ctx context.Context, checks map[string]HealthCheck) map[string]ComponentHealth {
	components := make(map[string]ComponentHealth, len(checks))
	if len(checks) == 0 {
		return components
	}

	type result struct {
		name   string
		health ComponentHealth
	}

	var wg sync.WaitGroup
	results := make(chan result, len(checks))

	for name, check := range checks {
		wg.Add(1)
		go func(name string, check HealthCheck) {
			defer wg.Done()

			start := time.Now()
			err := check(ctx)

			health := ComponentHealth{
				Status:  StatusHealthy,
				Latency: time.Since(start).String(),
			}
			if err != nil {
				health.Status = StatusUnhealthy
				if ctx.Err() != nil {
					health.Error = "check timed out"
				} else {
					health.Error = err.Error()
				}
			}

			results <- result{name: name, health: health}
		}(name, check)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	for r := range results {
		components[r.name] = r.health
	}

	return components
}

// HealthHandler returns an HTTP handler for the health endpoint.
func (hc *HealthChecker) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := hc.CheckHealth(r.Context())

		statusCode := http.StatusOK
		if health.Status == StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}

		writeJSON(w, statusCode, health)
	}
}

// ReadinessHandler returns an HTTP handler for the readiness endpoint.
func (hc *HealthChecker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		readiness := hc.CheckReadiness(r.Context())

		statusCode := http.StatusOK
		if !readiness.Ready {
			statusCode = http.StatusServiceUnavailable
		}

		writeJSON(w, statusCode, readiness)
	}
}

// LivenessHandler returns an HTTP handler reporting process liveness.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"alive":     true,
			"timestamp": time.Now().UTC(),
		})
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

// RedisHealthCheck probes Redis via the given ping function.
func RedisHealthCheck(pingFunc func(ctx context.Context) error) HealthCheck {
	return func(ctx context.Context) error {
		if pingFunc == nil {
			return fmt.Errorf("redis ping function not provided")
		}
		return pingFunc(ctx)
	}
}

// GenericHealthCheck wraps any probe function.
func GenericHealthCheck(checkFunc func(ctx context.Context) error) HealthCheck {
	return checkFunc
}
