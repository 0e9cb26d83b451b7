// Entry point for the quizhook worker: webhook in, rendered quiz page,
// extracted attachments, heuristic answer, submission out.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/quizhook/browser"
	"github.com/hazyhaar/quizhook/extract"
	"github.com/hazyhaar/quizhook/fetch"
	"github.com/hazyhaar/quizhook/journal"
	"github.com/hazyhaar/quizhook/quiz"
	"github.com/hazyhaar/quizhook/render"
)

func main() {
	settings, err := quiz.LoadSettings(os.Getenv("QUIZHOOK_CONFIG"))
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}

	// Logging.
	var lvl slog.Level
	switch settings.LogLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	if settings.Secret == "" {
		slog.Warn("QUIZ_SECRET is not set; all webhook calls will be rejected")
	}

	// Signal context.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Session journal (optional).
	var store *journal.Store
	if settings.JournalDB != "" {
		store, err = journal.Open(settings.JournalDB)
		if err != nil {
			slog.Error("journal", "error", err)
			os.Exit(1)
		}
		defer store.Close()
	}

	// Browser. A failed launch is not fatal: sessions degrade to
	// placeholder answers until Chrome comes back.
	mgr := browser.NewManager(browser.Config{
		RemoteURL:        settings.BrowserURL,
		SettleDelay:      time.Duration(settings.SettleDelayMs) * time.Millisecond,
		BlockedResources: []string{"fonts", "media"},
		Logger:           logger,
	})
	if err := mgr.Start(ctx); err != nil {
		slog.Error("browser start failed, continuing without renderer", "error", err)
	}
	defer mgr.Close()

	renderer := render.New(render.Config{
		Manager:            mgr,
		ScreenshotFallback: settings.EnableOCR,
		Logger:             logger,
	})
	fetcher := fetch.New(fetch.Config{
		Timeout:  time.Duration(settings.DownloadTimeoutSeconds) * time.Second,
		MaxBytes: settings.MaxDownloadBytes,
	})
	extractor := extract.New(extract.Config{
		OCREnabled: settings.EnableOCR,
		OCRBinary:  settings.OCRBinary,
		Logger:     logger,
	})

	runner := quiz.NewRunner(quiz.Config{
		Timeout:          settings.WorkerTimeout(),
		FetchConcurrency: settings.FetchConcurrency,
		Render:           renderer.Render,
		Fetcher:          fetcher,
		Extractor:        extractor,
		Journal:          store,
		Logger:           logger,
	})

	// MCP over stdio replaces the HTTP surface entirely.
	if settings.MCPTransport == "stdio" {
		srv := mcp.NewServer(&mcp.Implementation{
			Name:    "quizhook",
			Version: "1.0.0",
		}, nil)
		runner.RegisterMCP(srv)
		slog.Info("MCP stdio serving")
		if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
			slog.Error("MCP stdio", "error", err)
			os.Exit(1)
		}
		return
	}

	hook := &webhookHandler{
		secret: settings.Secret,
		email:  settings.Email,
		solve: func(ctx context.Context, s *quiz.Session) {
			runner.Solve(ctx, s)
		},
	}

	// Router.
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "ok"})
	})
	r.Post("/webhook", hook.ServeHTTP)

	srv := &http.Server{
		Addr:              ":" + settings.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", settings.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
	slog.Info("server stopped")
}
