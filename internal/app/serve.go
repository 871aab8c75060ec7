package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/0xfaulty/tgcontest/internal/annotate"
	"github.com/0xfaulty/tgcontest/internal/cli"
	"github.com/0xfaulty/tgcontest/internal/config"
	"github.com/0xfaulty/tgcontest/internal/db"
	"github.com/0xfaulty/tgcontest/internal/hotindex"
	"github.com/0xfaulty/tgcontest/internal/httpapi"
	"github.com/0xfaulty/tgcontest/internal/logging"
	"github.com/0xfaulty/tgcontest/internal/loop"
	"github.com/0xfaulty/tgcontest/internal/rank"
	"github.com/0xfaulty/tgcontest/internal/rating"
	"github.com/0xfaulty/tgcontest/internal/store"
)

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	host := fs.String("host", "0.0.0.0", "Host interface to bind")
	port := fs.Int("port", 0, "HTTP port (overrides PORT if set)")
	readTimeout := fs.Duration("read-timeout", 10*time.Second, "HTTP read timeout")
	writeTimeout := fs.Duration("write-timeout", 30*time.Second, "HTTP write timeout")
	shutdownTimeout := fs.Duration("shutdown-timeout", 10*time.Second, "Graceful shutdown timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	if *port > 0 {
		cfg.Port = *port
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}

	dbCtx, dbCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer dbCancel()

	pool, err := db.NewPool(dbCtx, cfg)
	if err != nil {
		if cfg.DBFailIfMissing {
			logger.Error().Err(err).Msg("serve failed to connect to database")
			fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
			return 1
		}
		logger.Warn().Err(err).Msg("continuing without a database connection")
	}
	if pool != nil {
		defer pool.Close()
	}

	docStore, ratings, annotator, err := buildCollaborators(dbCtx, cfg, pool, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize collaborators: %v\n", err)
		return 1
	}

	hot := hotindex.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		<-sigCh
		cancel()
	}()

	clusteringLoop, err := loop.New(docStore, hot, cfg, ratings, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize clustering loop: %v\n", err)
		return 1
	}
	go clusteringLoop.Run(ctx)

	srv := httpapi.NewServer(hot, docStore, annotator, ratings, rank.Params{
		HalfLife: time.Duration(cfg.RankHalfLifeHours * float64(time.Hour)),
	}, logger, httpapi.Options{
		Host:            *host,
		Port:            cfg.Port,
		ReadTimeout:     *readTimeout,
		WriteTimeout:    *writeTimeout,
		ShutdownTimeout: *shutdownTimeout,
	})

	if err := srv.Start(ctx); err != nil {
		logger.Error().Err(err).Str("host", *host).Int("port", cfg.Port).Msg("server failed")
		fmt.Fprintf(os.Stderr, "Server failed: %v\n", err)
		return 1
	}

	return 0
}

// buildCollaborators wires DocumentStore, the agency rating table, and the
// Annotator for `serve`. `rate` does not use it; it loads the rating file
// on its own.
func buildCollaborators(ctx context.Context, cfg *config.Config, pool *db.Pool, logger zerolog.Logger) (store.DocumentStore, map[string]float64, annotate.Annotator, error) {
	var docStore store.DocumentStore
	if pool != nil {
		s, err := store.NewPostgresStore(ctx, pool)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("init document store: %w", err)
		}
		docStore = s
	}

	ratings, err := loadAgencyRatings(cfg.AgencyRatingPath)
	if err != nil {
		logger.Warn().Err(err).Str("path", cfg.AgencyRatingPath).Msg("failed to load agency ratings, defaulting every host to 1.0")
		ratings = nil
	}

	annotator := annotate.NewHTMLAnnotator(nil, nil, cfg.SkipIrrelevantDocs)
	return docStore, ratings, annotator, nil
}

func loadAgencyRatings(path string) (map[string]float64, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return rating.Load(f)
}
