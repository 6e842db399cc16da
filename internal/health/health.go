// Package health runs dependency checks for the HTTP health endpoint.
package health

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type HealthState string

const (
	HealthStateHealthy   HealthState = "healthy"
	HealthStateUnhealthy HealthState = "unhealthy"
)

// Check tests one dependency. A nil error means healthy.
type Check interface {
	Name() string
	Check(ctx context.Context) error
}

// CheckFunc adapts a function to the Check interface.
type CheckFunc struct {
	CheckName string
	Fn        func(ctx context.Context) error
}

func (f CheckFunc) Name() string                    { return f.CheckName }
func (f CheckFunc) Check(ctx context.Context) error { return f.Fn(ctx) }

// Reporter is implemented by checks that attach a snapshot of their component
// to the health response.
type Reporter interface {
	Details() any
}

type ComponentHealth struct {
	Name     string        `json:"name"`
	Status   HealthState   `json:"status"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
	Details  any           `json:"details,omitempty"`
}

type HealthStatus struct {
	Overall        HealthState       `json:"status"`
	Timestamp      time.Time         `json:"timestamp"`
	Version        string            `json:"version"`
	Uptime         string            `json:"uptime"`
	GoroutineCount int               `json:"goroutine_count"`
	Components     []ComponentHealth `json:"components,omitempty"`
}

// Checker runs its registered checks concurrently, each under a timeout.
type Checker struct {
	version   string
	timeout   time.Duration
	logger    *logrus.Logger
	startTime time.Time

	mutex  sync.RWMutex
	checks []Check
}

// NewChecker creates a checker. A zero timeout defaults to five seconds.
func NewChecker(version string, timeout time.Duration, logger *logrus.Logger) *Checker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Checker{
		version:   version,
		timeout:   timeout,
		logger:    logger,
		startTime: time.Now(),
	}
}

// Register adds a check.
func (hc *Checker) Register(check Check) {
	hc.mutex.Lock()
	defer hc.mutex.Unlock()
	hc.checks = append(hc.checks, check)
}

// Run executes every check and aggregates the result. Any failing component
// makes the overall state unhealthy.
func (hc *Checker) Run(ctx context.Context) *HealthStatus {
	hc.mutex.RLock()
	checks := append([]Check(nil), hc.checks...)
	hc.mutex.RUnlock()

	results := make([]ComponentHealth, len(checks))
	var wg sync.WaitGroup
	for i, check := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = hc.runCheck(ctx, check)
		}()
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })

	status := &HealthStatus{
		Overall:        HealthStateHealthy,
		Timestamp:      time.Now().UTC(),
		Version:        hc.version,
		Uptime:         time.Since(hc.startTime).Round(time.Second).String(),
		GoroutineCount: runtime.NumGoroutine(),
		Components:     results,
	}
	for _, r := range results {
		if r.Status != HealthStateHealthy {
			status.Overall = HealthStateUnhealthy
		}
	}
	return status
}

func (hc *Checker) runCheck(ctx context.Context, check Check) ComponentHealth {
	checkCtx, cancel := context.WithTimeout(ctx, hc.timeout)
	defer cancel()

	start := time.Now()
	err := check.Check(checkCtx)
	result := ComponentHealth{
		Name:     check.Name(),
		Status:   HealthStateHealthy,
		Duration: time.Since(start),
	}
	if r, ok := check.(Reporter); ok {
		result.Details = r.Details()
	}
	if err != nil {
		result.Status = HealthStateUnhealthy
		result.Error = err.Error()
		hc.logger.WithError(err).WithField("component", result.Name).Warn("Health check failed")
	}
	return result
}
