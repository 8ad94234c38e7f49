package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/specialistvlad/blockgrid/internal/ctxlog"
	"github.com/specialistvlad/blockgrid/internal/scheduler"
	"github.com/specialistvlad/blockgrid/internal/transport/socketio"
)

// SocketIOPath is where workers connect.
const SocketIOPath = "/socket.io/"

// statusHandler serves the current progress snapshot as JSON.
func (a *App) statusHandler(core *scheduler.Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := core.Snapshot(r.Context())
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, scheduler.ErrNotRunning) {
				status = http.StatusServiceUnavailable
			}
			http.Error(w, err.Error(), status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(snap); err != nil {
			a.logger.Warn("Failed to write status response.", "error", err)
		}
	}
}

// runSchedulerServer serves /health, /status and the worker endpoint on
// listen until ctx is cancelled.
func (a *App) runSchedulerServer(ctx context.Context, listen string, core *scheduler.Core, sio *socketio.Server) error {
	logger := ctxlog.FromContext(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", a.healthHandler)
	mux.HandleFunc("/status", a.statusHandler(core))
	mux.Handle(SocketIOPath, sio.Handler())

	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", listen, err)
	}
	a.addr = ln.Addr().String()
	close(a.listening)

	srv := &http.Server{Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := sio.Close(); err != nil {
			logger.Warn("Failed to close Socket.IO server.", "error", err)
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Scheduler server shutdown failed", "error", err)
		}
	}()

	logger.Info("🛰️ Scheduler listening for workers", "address", fmt.Sprintf("http://%s%s", a.addr, SocketIOPath))
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("scheduler server failed: %w", err)
	}
	return nil
}
