// Package main provides the GanApp desktop bridge: the sync core plus
// a localhost REST/WebSocket surface the desktop shell talks to.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/Barneycle/ganapp-core/cmd/desktop/handlers"
	"github.com/Barneycle/ganapp-core/internal/config"
	"github.com/Barneycle/ganapp-core/internal/logging"
	"github.com/Barneycle/ganapp-core/internal/models"
	"github.com/Barneycle/ganapp-core/internal/netmon"
	"github.com/Barneycle/ganapp-core/internal/remote"
	"github.com/Barneycle/ganapp-core/internal/store"
	"github.com/Barneycle/ganapp-core/internal/sync"
	"github.com/Barneycle/ganapp-core/internal/sync/conflict"
	"github.com/Barneycle/ganapp-core/internal/sync/queue"
)

func main() {
	// .env is optional, config falls back to the real environment.
	_ = godotenv.Load()

	cfg := config.MustLoad()
	if err := logging.Init(cfg.LogLevel, cfg.Env == "local"); err != nil {
		os.Stderr.WriteString("failed to init logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logging.Sync()

	if err := run(cfg); err != nil {
		logging.Error("desktop bridge failed", err)
		logging.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	if err := os.MkdirAll(cfg.DB.DataDir, 0o755); err != nil {
		return err
	}

	st, err := store.Open(cfg.DBPath(), cfg.DB.BusyTimeout)
	if err != nil {
		return err
	}
	defer st.Close()

	backend := remote.NewClient(&remote.Config{
		BaseURL: cfg.Remote.BaseURL,
		APIKey:  cfg.Remote.APIKey,
		Timeout: cfg.Remote.Timeout,
	})

	monitor := netmon.NewMonitor(&netmon.DialProber{
		Addrs:   cfg.Network.ProbeAddrs,
		Timeout: cfg.Network.ProbeTimeout,
	}, &netmon.MonitorConfig{
		PollInterval: cfg.Network.PollInterval,
		Debounce:     cfg.Network.Debounce,
	})

	q := queue.NewQueue(st, queue.NewRegistry(), conflict.NewResolver(), &queue.Config{
		MaxAttempts: cfg.Sync.MaxAttempts,
		BackoffBase: cfg.Sync.BackoffBase,
		BackoffCap:  cfg.Sync.BackoffCap,
	})

	core := sync.NewSyncer(st, q, monitor, cfg.Sync.DrainInterval)
	for _, dt := range []models.DataType{
		models.DataTypeEvent,
		models.DataTypeRegistration,
		models.DataTypeSurveyResponse,
		models.DataTypeAttendanceLog,
		models.DataTypeCertificate,
	} {
		core.Register(dt, backend)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := core.Start(ctx); err != nil {
		return err
	}
	defer core.Stop()

	hub := NewWSHub()
	go hub.Watch(ctx, q, monitor)

	server := &http.Server{
		Addr:              cfg.Desktop.HTTPAddr,
		Handler:           buildRoutes(core, hub),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("desktop bridge listening", zap.String("addr", cfg.Desktop.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	logging.Info("shutting down desktop bridge")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// buildRoutes registers the localhost API surface.
func buildRoutes(core *sync.Syncer, hub *WSHub) *http.ServeMux {
	syncHandler := handlers.NewSyncHandler(core)
	queueHandler := handlers.NewQueueHandler(core.Queue())
	noticeHandler := handlers.NewNoticeHandler(core)
	recordHandler := handlers.NewRecordHandler(core.Store())

	mux := http.NewServeMux()

	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","service":"ganapp-desktop"}`))
	})

	mux.HandleFunc("/api/sync/status", syncHandler.GetStatus)
	mux.HandleFunc("/api/sync/drain", syncHandler.TriggerDrain)
	mux.HandleFunc("/api/sync/retry", syncHandler.Retry)
	mux.HandleFunc("/api/submit", syncHandler.Submit)
	mux.HandleFunc("/api/queue", queueHandler.GetQueue)
	mux.HandleFunc("/api/queue/count", queueHandler.GetCount)
	mux.HandleFunc("/api/notices", noticeHandler.ListNotices)
	mux.HandleFunc("/api/notices/dismiss", noticeHandler.Dismiss)
	mux.HandleFunc("/api/records/{type}", recordHandler.ListRecords)
	mux.HandleFunc("/api/records/{type}/{id}", recordHandler.GetRecord)
	mux.HandleFunc("/ws", HandleWebSocket(hub))

	return mux
}
