package health

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	json "github.com/eleven-am/flowcore/internal/xjson"
)

// Check reports whether one dependency is usable.
type Check func(ctx context.Context) error

type Checker struct {
	mu      sync.RWMutex
	checks  map[string]Check
	timeout time.Duration
	logger  *slog.Logger
}

type Status struct {
	Healthy    bool              `json:"healthy"`
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

func NewChecker(timeout time.Duration, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	return &Checker{
		checks:  make(map[string]Check),
		timeout: timeout,
		logger:  logger.With("component", "health-checker"),
	}
}

func (hc *Checker) Register(name string, check Check) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.checks[name] = check
}

// GetHealth runs every check under the checker timeout. One failing check
// makes the whole status unhealthy.
func (hc *Checker) GetHealth(ctx context.Context) Status {
	hc.mu.RLock()
	names := make([]string, 0, len(hc.checks))
	for name := range hc.checks {
		names = append(names, name)
	}
	checks := make(map[string]Check, len(hc.checks))
	for k, v := range hc.checks {
		checks[k] = v
	}
	hc.mu.RUnlock()
	sort.Strings(names)

	status := Status{
		Healthy:    true,
		Status:     "healthy",
		Components: make(map[string]string, len(names)),
	}

	for _, name := range names {
		checkCtx, cancel := context.WithTimeout(ctx, hc.timeout)
		err := checks[name](checkCtx)
		cancel()

		if err != nil {
			hc.logger.Warn("health check failed", "check", name, "error", err)
			status.Healthy = false
			status.Status = "unhealthy"
			status.Components[name] = err.Error()
			continue
		}
		status.Components[name] = "ok"
	}

	return status
}

func (hc *Checker) IsReady(ctx context.Context) bool {
	return hc.GetHealth(ctx).Healthy
}

func (hc *Checker) GetHealthJSON(ctx context.Context) ([]byte, error) {
	return json.Marshal(hc.GetHealth(ctx))
}
