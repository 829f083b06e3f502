// Command mock-backend runs a deterministic fake LLM vendor for local
// development. It speaks the streaming dialects of every supported
// provider and answers each prompt by echoing it back word by word.
//
// Point aichat at it with AICHAT_BASE_URL=http://localhost:9090 for any
// provider.
//
// Configuration:
//
//	MOCK_PORT       - Listen port (default: 9090)
//	MOCK_DELAY      - Pause between tokens, e.g. "50ms" (default: 0)
//	MOCK_FAIL_AFTER - Abort the stream after this many tokens (default: never)
package main

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rhuss/aichat/pkg/provider/mockvendor"
)

func main() {
	if err := run(); err != nil {
		slog.Error("mock backend failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	opts, err := loadOptions()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	addr := ":" + cmp.Or(os.Getenv("MOCK_PORT"), "9090")
	srv := &http.Server{Addr: addr, Handler: mockvendor.Handler(opts), ReadHeaderTimeout: 10 * time.Second}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("mock backend starting", "addr", addr, "delay", opts.Delay, "fail_after", opts.FailAfter)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("mock backend shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func loadOptions() (mockvendor.Options, error) {
	var o mockvendor.Options
	if v := os.Getenv("MOCK_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return o, fmt.Errorf("MOCK_DELAY: %w", err)
		}
		o.Delay = d
	}
	if v := os.Getenv("MOCK_FAIL_AFTER"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return o, fmt.Errorf("MOCK_FAIL_AFTER: %w", err)
		}
		o.FailAfter = n
	}
	return o, nil
}
