package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/mhcsweep/mhcsweep/internal/ctxlog"
)

// progressTracker holds the sweep position reported by the status server.
type progressTracker struct {
	mu     sync.Mutex
	mode   string
	done   int
	total  int
	allele string
}

func (p *progressTracker) update(done, total int, allele string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done = done
	p.total = total
	p.allele = allele
}

type progressSnapshot struct {
	Mode   string `json:"mode"`
	Done   int    `json:"done"`
	Total  int    `json:"total"`
	Allele string `json:"allele,omitempty"`
}

func (p *progressTracker) snapshot() progressSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return progressSnapshot{Mode: p.mode, Done: p.done, Total: p.total, Allele: p.allele}
}

// startStatusServer runs a small HTTP server for liveness checks and sweep
// progress. Long sweeps are usually watched this way rather than by tailing
// logs. The server is shut down when ctx is cancelled.
func (a *App) startStatusServer(ctx context.Context, port int) {
	logger := ctxlog.FromContext(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	})
	mux.HandleFunc("/progress", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(a.progress.snapshot()); err != nil {
			logger.Warn("Failed to encode progress response.", "error", err)
		}
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Status server shutdown failed.", "error", err)
		}
	}()

	go func() {
		logger.Info("Status server listening.", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Status server failed.", "error", err)
		}
	}()
}
