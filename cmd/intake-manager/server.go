package main

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"loan-intake/internal/common/logger"
)

var errServerClosed = http.ErrServerClosed

const readyTimeout = 5 * time.Second

// readinessChecks maps a dependency name to its ping.
type readinessChecks map[string]func(ctx context.Context) error

// run pings every dependency concurrently and returns the failures by name.
func (c readinessChecks) run(ctx context.Context) map[string]string {
	var (
		mu       sync.Mutex
		failures = map[string]string{}
	)

	g, gctx := errgroup.WithContext(ctx)
	for name, check := range c {
		name, check := name, check
		g.Go(func() error {
			if err := check(gctx); err != nil {
				mu.Lock()
				failures[name] = err.Error()
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return failures
}

func (c readinessChecks) names() []string {
	out := make([]string, 0, len(c))
	for name := range c {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func newServer(addr string, checks readinessChecks, log logger.Logger) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           newMux(checks, log),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func newMux(checks readinessChecks, log logger.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		failures := checks.run(ctx)
		if len(failures) > 0 {
			log.Warn("readiness check failed", map[string]interface{}{"failures": failures})
			writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
				"status":   "not_ready",
				"failures": failures,
				"time":     time.Now().Format(time.RFC3339),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":       "ready",
			"dependencies": checks.names(),
			"time":         time.Now().Format(time.RFC3339),
		})
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
