package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/parallelrag/ragd/internal/api"
	"github.com/parallelrag/ragd/internal/catalog"
	"github.com/parallelrag/ragd/internal/config"
	"github.com/parallelrag/ragd/internal/metrics"
	"github.com/parallelrag/ragd/internal/orchestrator"
	"github.com/parallelrag/ragd/internal/provider"
	"github.com/parallelrag/ragd/internal/retrieval"
	"github.com/parallelrag/ragd/internal/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the ragd server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running ragd server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show ragd system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "ragd.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func buildRegistry(cfg config.Config) provider.Registry {
	return provider.Registry{
		"huggingface": provider.NewHuggingFace(cfg.Provider.HuggingFaceAPIKey),
	}
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "ragd version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Initialize structured logging.
	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	// Write PID file. Check if server is already running via health endpoint.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("ragd is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("ragd is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open session storage.
	sessions, err := session.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening session storage: %w", err)
	}
	defer func() {
		if err := sessions.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing session storage: %v\n", err)
		}
	}()

	// Metrics workbook in the data directory; host sampler by default.
	metricsStore, err := metrics.NewStore(cfg.Storage.DataDir, nil)
	if err != nil {
		return fmt.Errorf("opening metrics store: %w", err)
	}
	slog.Info("metrics workbook ready", "path", metricsStore.Path())

	// Chat pipeline.
	registry := buildRegistry(cfg)
	models := catalog.Default()
	retriever := retrieval.NewClient(cfg.Retrieval.BaseURL, cfg.Retrieval.Rerank)
	guardrail := retrieval.NewGuardrail(retriever)
	engine := orchestrator.New(models, registry, guardrail)

	if key := cfg.Provider.HuggingFaceAPIKey; key == "" {
		printWarning("HUGGINGFACE_API_KEY is not set; chat requests will fail until it is configured")
	}

	deps := api.Deps{
		Engine:    engine,
		Sessions:  sessions,
		Metrics:   metricsStore,
		Catalog:   models,
		Providers: registry,
	}
	handler := api.NewHandler(deps)

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Build and start MCP server (stdio transport in a goroutine).
	mcpSrv := api.NewMCPServer(deps)
	stdioSrv := server.NewStdioServer(mcpSrv)
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
	}()
	slog.Info("MCP server started (stdio transport)")

	// Start server in a goroutine.
	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "ragd listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for signal or server error.
	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// Graceful shutdown with timeout.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("ragd is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop ragd (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to ragd (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		defer resp.Body.Close()
		if resp.StatusCode == 200 {
			var health struct {
				Summary string `json:"summary"`
			}
			json.NewDecoder(resp.Body).Decode(&health)
			printStatus("Server", "running on port %d", cfg.Server.Port)
			if health.Summary != "" {
				printStatus("Providers", "%s", health.Summary)
			}
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	// Check the external retrieval service.
	retrResp, err := client.Get(cfg.Retrieval.BaseURL + "/health")
	if err != nil {
		printStatus("Retriever", "not reachable at %s", cfg.Retrieval.BaseURL)
	} else {
		retrResp.Body.Close()
		printStatus("Retriever", "running at %s", cfg.Retrieval.BaseURL)
	}

	if cfg.Provider.HuggingFaceAPIKey != "" {
		printStatus("HuggingFace", "API key configured")
	} else {
		printStatus("HuggingFace", "API key missing")
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	printStatus("Corpus dir", "%s", cfg.Storage.CorpusDir)
	return nil
}
