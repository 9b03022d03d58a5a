// Command aircore runs the air quality toolchain for the Avenida
// Constitución station: the hourly ingestion/forecast pipeline, the read
// API, and model registry administration.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/airgijon/aircore/internal/api"
	"github.com/airgijon/aircore/internal/config"
	"github.com/airgijon/aircore/internal/evolution"
	"github.com/airgijon/aircore/internal/pipeline"
	"github.com/airgijon/aircore/internal/store"
	"github.com/airgijon/aircore/internal/waqi"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	root := &cobra.Command{
		Use:   "aircore",
		Short: "Air quality pipeline and API for the Constitución station",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			} else {
				zerolog.SetGlobalLevel(zerolog.InfoLevel)
			}
		},
	}
	root.PersistentFlags().Bool("verbose", false, "enable debug logging")

	root.AddCommand(pipelineCmd(), serveCmd(), modelCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func pipelineCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Run one ingestion, aggregation and forecast cycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if dryRun {
				cfg.DryRun = true
			}

			ctx, cancel := signalContext()
			defer cancel()

			db, err := store.New(ctx, cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer db.Close()

			feed := waqi.NewClient(waqi.Config{
				BaseURL:        cfg.FeedBaseURL,
				Token:          cfg.FeedToken,
				StationID:      cfg.FeedStationID,
				Timeout:        cfg.RequestTimeout,
				MaxRetries:     cfg.MaxRetries,
				RetryBaseDelay: cfg.RetryBaseDelay,
			})

			runner := pipeline.New(cfg, feed, db)
			summary, err := runner.Run(ctx, time.Now().In(cfg.Location()))
			if err != nil {
				log.Error().Err(err).Msg("pipeline run failed")
				return err
			}

			log.Info().
				Str("processed_date", summary.ProcessedDate.Format("2006-01-02")).
				Str("quality", string(summary.Quality)).
				Bool("average_written", summary.AverageWritten).
				Str("yesterday_source", string(summary.YesterdaySource)).
				Int("predictions_written", summary.PredictionsWritten).
				Msg("pipeline run finished")
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "compute everything but skip database writes")
	return cmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-side REST API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			ctx, cancel := signalContext()
			defer cancel()

			db, err := store.New(ctx, cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer db.Close()

			assembler := evolution.New(db, cfg.StationID, cfg.Parameter, cfg.HistoricalDays, cfg.Location())
			server := api.New(cfg, db, assembler)

			log.Info().Str("addr", cfg.ListenAddr()).Msg("starting API server")
			return server.Run(ctx)
		},
	}
}

func modelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Administer the prediction model registry",
	}
	cmd.AddCommand(modelListCmd(), modelActivateCmd())
	return cmd
}

func modelListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered prediction models",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			ctx, cancel := signalContext()
			defer cancel()

			db, err := store.New(ctx, cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer db.Close()

			models, err := db.ListModels(ctx)
			if err != nil {
				return fmt.Errorf("list models: %w", err)
			}

			for _, m := range models {
				marker := " "
				if m.Active {
					marker = "*"
				}
				fmt.Printf("%s %4d  %-40s  %s → %s\n",
					marker, m.ID, m.Name, formatDate(m.ValidFrom), formatDate(m.ValidTo))
			}
			return nil
		},
	}
}

func modelActivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "activate <id>",
		Short: "Make the given model the single active one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid model id %q: %w", args[0], err)
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			ctx, cancel := signalContext()
			defer cancel()

			db, err := store.New(ctx, cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer db.Close()

			if err := db.ActivateModel(ctx, id); err != nil {
				return fmt.Errorf("activate model %d: %w", id, err)
			}

			log.Info().Int64("model_id", id).Msg("model activated")
			return nil
		},
	}
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("2006-01-02")
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
