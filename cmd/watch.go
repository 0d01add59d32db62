package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/facewatch/facewatch/internal/alert"
	"github.com/facewatch/facewatch/internal/config"
	"github.com/facewatch/facewatch/internal/database/postgres"
	"github.com/facewatch/facewatch/internal/detect"
	"github.com/facewatch/facewatch/internal/gallery"
	"github.com/facewatch/facewatch/internal/notify"
	"github.com/facewatch/facewatch/internal/pipeline"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the frame watching and alerting daemon",
	Long: `Watch polls the frames directory for new CCTV captures, matches detected
faces against the subject gallery and records matches. Two background jobs
turn matches into notifications and drive them through the call tree.

Requires FRAMES_DIR and DATABASE_URL to be set.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if cfg.Pipeline.FramesDir == "" {
		return errors.New("FRAMES_DIR environment variable is required")
	}
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	logger := newLogger()

	if err := postgres.Initialize(&cfg.Database); err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	pool := postgres.GetGlobalPool()
	defer pool.Close()

	subjects := postgres.NewSubjectRepository(pool)
	matches := postgres.NewMatchRepository(pool)
	notifications := postgres.NewNotificationRepository(pool)
	recipients := postgres.NewRecipientRepository(pool)
	deliveries := postgres.NewDeliveryRepository(pool)

	detector := detect.NewClient(cfg.Detector.URL, cfg.Detector.Dim)
	cache := gallery.New(subjects, detector, cfg.Gallery.RefreshInterval, logger)
	processor := pipeline.NewProcessor(cfg.Pipeline, cache, detector, matches, logger)
	watcher := pipeline.NewWatcher(cfg.Pipeline.FramesDir, cfg.Pipeline.PollInterval, cfg.Pipeline.Workers, processor.Process, logger)

	recorder := alert.NewRecorder(matches, notifications, cfg.Alerting.ThrottleWindow, logger)
	dispatcher := alert.NewDispatcher(notifications, recipients, matches, deliveries,
		[]notify.ChannelSender{
			notify.NewEmailSender(cfg.SMTP),
			notify.NewSMSSender(cfg.Twilio),
			notify.NewVoiceSender(cfg.Twilio),
		}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("facewatch started",
		"frames_dir", cfg.Pipeline.FramesDir,
		"poll_interval", cfg.Pipeline.PollInterval,
		"workers", cfg.Pipeline.Workers,
		"match_threshold", cfg.Pipeline.MatchThreshold)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return watcher.Run(ctx)
	})
	g.Go(func() error {
		runEvery(ctx, cfg.Alerting.RecordInterval, func(ctx context.Context) {
			if err := recorder.RecordNew(ctx); err != nil {
				logger.Error("notification recording failed", "error", err)
			}
		})
		return nil
	})
	g.Go(func() error {
		runEvery(ctx, cfg.Alerting.DispatchInterval, func(ctx context.Context) {
			if err := dispatcher.DispatchPending(ctx); err != nil {
				logger.Error("notification dispatch failed", "error", err)
			}
		})
		return nil
	})

	err := g.Wait()
	logger.Info("facewatch stopped")
	return err
}

// runEvery invokes fn on every tick until the context is canceled.
func runEvery(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}
