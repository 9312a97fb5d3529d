package controllers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/enxoval-backend/api/responses"
	"github.com/angelmondragon/enxoval-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/enxoval-backend/pkg/errors"
	"github.com/angelmondragon/enxoval-backend/pkg/logger"
)

const (
	envHeader        = "X-Enxoval-Env"
	readinessTimeout = 3 * time.Second
)

// Readiness check states.
const (
	CheckOK       = "ok"
	CheckError    = "error"
	CheckDisabled = "disabled"
)

// Pinger is any dependency the readiness check pings.
type Pinger interface {
	Ping(ctx context.Context) error
}

type DependencyCheck struct {
	Status    string `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	started := time.Now()
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]any{
			"status":         "live",
			"uptime_seconds": int64(time.Since(started).Seconds()),
		})
	}
}

// HealthReady pings the dependencies concurrently. A nil pinger is an
// optional dependency that is not configured and never fails readiness.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		checks := runChecks(ctx, logg, deps)
		for _, check := range checks {
			if check.Status == CheckError {
				responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeDependency, "dependency unavailable").WithDetails(checks))
				return
			}
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}

func runChecks(ctx context.Context, logg *logger.Logger, deps map[string]Pinger) map[string]DependencyCheck {
	var (
		mu     sync.Mutex
		checks = make(map[string]DependencyCheck, len(deps))
		group  errgroup.Group
	)
	for name, dep := range deps {
		if dep == nil {
			checks[name] = DependencyCheck{Status: CheckDisabled}
			continue
		}
		group.Go(func() error {
			start := time.Now()
			err := dep.Ping(ctx)
			check := DependencyCheck{Status: CheckOK, LatencyMS: time.Since(start).Milliseconds()}
			if err != nil {
				check.Status = CheckError
				logg.Warn(logg.WithFields(ctx, map[string]any{"dependency": name, "error": err.Error()}), "readiness check failed")
			}
			mu.Lock()
			checks[name] = check
			mu.Unlock()
			return nil
		})
	}
	_ = group.Wait()
	return checks
}
