package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hdx-tools/pcode-detector/internal/listener"
	"github.com/hdx-tools/pcode-detector/internal/monitoring"
)

var (
	listenPort  int
	listenSpool string
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Classify resources as change events arrive",
	Long: `Accepts {"dataset_id": "...", "resource_id": "..."} events on POST /events
and from *.json files dropped into the spool directory. Events are
classified one at a time with catalog write-back and alerting enabled.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if listenPort != 0 {
			cfg.Listener.Port = listenPort
		}
		if listenSpool != "" {
			cfg.Listener.SpoolDir = listenSpool
		}

		env, err := initDetector(ctx, "listen", nil)
		if err != nil {
			return err
		}
		defer env.Close()

		workers := newBackground(ctx)
		// Runs before env.Close so an in-flight classification can finish
		// recording its verdict.
		defer workers.stopAndWait()

		queue := listener.NewQueue(cfg.Listener.QueueSize)
		worker := listener.NewWorker(env.Catalog, env.Classifier)
		workers.run(func(ctx context.Context) { queue.Run(ctx, worker) })

		if cfg.Listener.SpoolDir != "" {
			spool, err := listener.NewSpool(cfg.Listener.SpoolDir, queue)
			if err != nil {
				return err
			}
			workers.run(spool.Run)
			zap.L().Info("watching spool directory", zap.String("dir", cfg.Listener.SpoolDir))
		}

		if cfg.Store.Driver != "none" && cfg.Store.Driver != "" {
			checker := monitoring.NewChecker(
				monitoring.NewCollector(env.Store),
				monitoring.NewAlerter(cfg.Monitor, env.Sink),
				cfg.Monitor,
			)
			workers.run(checker.Run)
		}

		if cfg.Listener.Port <= 0 {
			<-ctx.Done()
			return nil
		}
		return serveEvents(ctx, cfg.Listener.Port, listener.NewRouter(queue))
	},
}

// background tracks the goroutines started by listen.
type background struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newBackground(parent context.Context) *background {
	ctx, cancel := context.WithCancel(parent)
	return &background{ctx: ctx, cancel: cancel}
}

func (b *background) run(fn func(context.Context)) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		fn(b.ctx)
	}()
}

// stopAndWait cancels the shared context and blocks until every goroutine
// has returned.
func (b *background) stopAndWait() {
	b.cancel()
	b.wg.Wait()
}

func init() {
	listenCmd.Flags().IntVar(&listenPort, "port", 0, "HTTP port (default from config)")
	listenCmd.Flags().StringVar(&listenSpool, "spool", "", "spool directory to watch (default from config)")
	rootCmd.AddCommand(listenCmd)
}

// serveEvents runs the HTTP endpoint until ctx is done.
func serveEvents(ctx context.Context, port int, handler http.Handler) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	zap.L().Info("starting server", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return eris.Wrap(err, "server listen")
	}
	return nil
}
