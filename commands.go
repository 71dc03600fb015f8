package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"albumvibe/config"
	"albumvibe/enrich"
	"albumvibe/handlers"
	"albumvibe/models"
	"albumvibe/sentry"
	"albumvibe/spotify"
)

const (
	shutdownTimeout = 10 * time.Second
	flushTimeout    = 2 * time.Second
)

func newApp(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "albumvibe",
		Usage: "Look up an album's danceability, energy and similar tracks",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to an optional TOML configuration file",
			},
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the search front end",
				Action: serve,
			},
			{
				Name:      "lookup",
				Usage:     "Enrich a single query and print the result as JSON",
				ArgsUsage: "<query>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return lookup(ctx, cmd, out)
				},
			},
		},
	}
}

// bootstrap loads configuration and wires the catalog client into a pipeline.
func bootstrap(cmd *cli.Command) (*config.Config, *enrich.Pipeline, error) {
	cfg := config.Load()
	if path := cmd.String("config"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, nil, err
		}
	}
	setupLogging(cfg.Options.LogLevel)

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	if err := sentry.Init(cfg.Sentry); err != nil {
		log.Warnf("Sentry init failed, continuing without it: %v", err)
	}

	tokens := spotify.NewTokenProvider(cfg.Spotify, &http.Client{Timeout: cfg.Options.RequestTimeout()})
	client := spotify.NewClient(cfg.Spotify, tokens)
	pipeline := enrich.NewPipeline(client, enrich.NewAggregator(client, cfg.Options.FeatureWorkers))
	return cfg, pipeline, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, pipeline, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	defer sentry.Flush(flushTimeout)

	router := handlers.NewRouter(pipeline, handlers.Options{
		RequestTimeout: cfg.Options.RequestTimeout(),
		EnableSentry:   cfg.Sentry.IsEnabled(),
	})
	srv := &http.Server{
		Addr:              ":" + cfg.Options.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func lookup(ctx context.Context, cmd *cli.Command, out io.Writer) error {
	query := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
	if query == "" {
		return errors.New("lookup: a query is required")
	}

	cfg, pipeline, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	defer sentry.Flush(flushTimeout)

	ctx, cancel := context.WithTimeout(ctx, cfg.Options.RequestTimeout())
	defer cancel()
	ctx, transaction := sentry.StartLookupTransaction(ctx, "albumvibe.lookup", query)
	defer transaction.Finish()

	result, err := pipeline.Enrich(ctx, query)
	if errors.Is(err, models.ErrNotFound) {
		_, err = fmt.Fprintln(out, "no results")
		return err
	}
	if err != nil {
		sentry.ReportError(ctx, err)
		return fmt.Errorf("lookup %q: %w", query, err)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
