// cmd/admission-cli/main.go
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"parent-portal/internal/common/config"
	"parent-portal/internal/common/logger"
	"parent-portal/internal/common/metrics"
	"parent-portal/internal/storage/kv"
)

const (
	exitOK      = 0
	exitFailed  = 1
	exitUsage   = 2
	storageOpen = "draft storage connection"
)

const usage = `usage: admission-cli <command> [flags]

commands:
  validate -record FILE [-section NAME]   validate a record, all sections by default
  draft show                              print the saved draft
  draft save -record FILE                 store FILE as the draft
  draft clear                             remove the saved draft
  set -path PATH -value VALUE [-json]     change one field of the saved draft
  submit [-record FILE] [flags]           submit the saved draft (or FILE)
`

type app struct {
	cfg   *config.Config
	log   logger.Logger
	store kv.Store
	out   io.Writer
}

func main() {
	os.Exit(realMain())
}

func realMain() int {
	if len(os.Args) < 2 || os.Args[1] == "help" || os.Args[1] == "-h" {
		fmt.Fprint(os.Stderr, usage)
		return exitUsage
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		return exitFailed
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog).WithFields(map[string]interface{}{
		"app":     cfg.App.Name,
		"command": os.Args[1],
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Enabled {
		srv := serveMetrics(cfg.Metrics.Address, log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	var store kv.Store
	err = retryWithBackoff(ctx, func() error {
		var err error
		store, err = kv.Open(ctx, cfg.Storage)
		return err
	}, nil, 3, time.Second, log, storageOpen)
	if err != nil {
		log.Error("draft storage unavailable", map[string]interface{}{
			"driver": cfg.Storage.Driver,
			"error":  err,
		})
		return exitFailed
	}
	if c, ok := store.(kv.Closer); ok {
		defer c.Close()
	}

	a := &app{cfg: cfg, log: log, store: store, out: os.Stdout}
	return a.run(ctx, os.Args[1], os.Args[2:])
}

func (a *app) run(ctx context.Context, cmd string, args []string) int {
	switch cmd {
	case "validate":
		return a.validate(args)
	case "draft":
		return a.draft(ctx, args)
	case "set":
		return a.set(ctx, args)
	case "submit":
		return a.submit(ctx, args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		return exitUsage
	}
}

func serveMetrics(addr string, log logger.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn("metrics server stopped", map[string]interface{}{"error": err})
		}
	}()
	log.Info("metrics endpoint listening", map[string]interface{}{"address": addr})
	return srv
}
