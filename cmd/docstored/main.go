package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"docstore/internal/auth"
	"docstore/internal/catalog"
	"docstore/internal/docstore"
	"docstore/internal/server"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

// getenv returns the value of the environment variable named by key or
// fallback if the variable is not present.
func getenv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func Run(ctx context.Context) error {

	listen := flag.String("listen", getenv("DOCSTORE_LISTEN", "8000"), "HTTP listen port")
	dataDir := flag.String("data-dir", getenv("DOCSTORE_DATA_DIR", "./data"), "directory to store PDFs and page images")
	dbPath := flag.String("db", getenv("DOCSTORE_DB", "./data/catalog.db"), "path to the SQLite catalog database")
	stripes := flag.Int("lock-stripes", docstore.DefaultLockStripes, "number of lock stripes")
	authUser := flag.String("auth-user", getenv("DOCSTORE_AUTH_USER", ""), "Basic auth username (auth disabled if empty)")
	authPass := flag.String("auth-pass", getenv("DOCSTORE_AUTH_PASS", ""), "Basic auth password")

	flag.Parse()

	handler := log.NewWithOptions(os.Stdout, log.Options{
		Level:           log.DebugLevel,
		TimeFormat:      time.RFC3339,
		ReportTimestamp: true,
		TimeFunction:    log.NowUTC,
		ReportCaller:    true,
	})

	slog.SetDefault(slog.New(handler))

	// Ensure data directory is absolute for easier debugging.
	absDataDir, err := filepath.Abs(*dataDir)
	if err != nil {
		return fmt.Errorf("failed to resolve data directory: %w", err)
	}

	store, err := docstore.New(absDataDir, docstore.WithLockStripes(*stripes))
	if err != nil {
		return fmt.Errorf("failed to create storage engine: %w", err)
	}

	cat, err := catalog.Open(*dbPath)
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}
	defer cat.Close()

	opts := []server.Option{}
	if *authUser != "" {
		opts = append(opts, server.WithAuthEngine(auth.NewBasicEngine(*authUser, *authPass)))
	}

	srv := server.NewServer(store, cat, opts...)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", *listen),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 20 * time.Second,
		ReadTimeout:       20 * time.Second,
		WriteTimeout:      20 * time.Second,
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	eg.Go(func() error {
		slog.Info("Starting docstore HTTP server", "port", *listen, "data_dir", absDataDir)
		err := httpServer.ListenAndServe()
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	slog.Info("Docstore started")
	return eg.Wait()

}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := Run(ctx); err != nil {
		slog.Error("Docstore exited with error", "error", err)
	}
}
