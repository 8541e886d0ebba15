package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Sternrassler/onenote-dump/internal/auth"
	"github.com/Sternrassler/onenote-dump/internal/config"
	"github.com/Sternrassler/onenote-dump/pkg/client"
	"github.com/Sternrassler/onenote-dump/pkg/logging"
	"github.com/Sternrassler/onenote-dump/pkg/metrics"
	"github.com/Sternrassler/onenote-dump/pkg/onenote"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "onenote-dump",
		Short: "Export OneNote notebooks to Markdown",
		Long: `onenote-dump walks a OneNote notebook through Microsoft Graph and writes
every page as a Markdown file, mirroring section groups, sections and page
nesting as directories.

HTTP 429 responses are retried with exponential backoff starting at 15 minutes.`,
		SilenceUsage: true,
	}

	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(newDumpCmd())
	root.AddCommand(newNotebooksCmd())
	return root
}

// app holds what a command needs to talk to Graph.
type app struct {
	cfg     *config.Config
	client  *client.Client
	service *onenote.Service
	logger  zerolog.Logger

	redis   *redis.Client
	metrics *http.Server
}

func newApp(cmd *cobra.Command) (*app, error) {
	configFile, _ := cmd.Flags().GetString("config")
	v, err := config.New(cmd.Flags(), configFile)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(v)
	if err != nil {
		return nil, err
	}

	logger := logging.Setup(logging.Config{
		Level:  logging.VerboseLevel(cfg.Log.Verbose),
		Pretty: cfg.Log.Pretty,
		Output: cmd.ErrOrStderr(),
	})

	ctx := cmd.Context()
	ts, err := auth.TokenSource(ctx, cfg.Auth)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger}

	if opts := cfg.RedisOptions(); opts != nil {
		a.redis = redis.NewClient(opts)
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.redis.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
		}
		logger.Info().Str("addr", opts.Addr).Msg("Connected to Redis")
	}

	a.client, err = client.New(cfg.ClientConfig(ts, a.redis))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create graph client: %w", err)
	}
	a.service = onenote.NewService(a.client, a.client.BaseURL())

	if cfg.Metrics.Addr != "" {
		a.serveMetrics(cfg.Metrics.Addr)
	}
	return a, nil
}

func (a *app) serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	})

	a.metrics = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		a.logger.Info().Str("addr", addr).Msg("Serving metrics")
		if err := a.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()
}

// Close stops the metrics server and the Redis connection.
func (a *app) Close() {
	if a.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.metrics.Shutdown(ctx)
	}
	if a.redis != nil {
		a.redis.Close()
	}
}
