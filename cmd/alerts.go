package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/facewatch/facewatch/internal/alert"
	"github.com/facewatch/facewatch/internal/config"
	"github.com/facewatch/facewatch/internal/database"
	"github.com/facewatch/facewatch/internal/database/postgres"
	"github.com/facewatch/facewatch/internal/notify"
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Manage match notifications",
}

var alertsRecordCmd = &cobra.Command{
	Use:   "record",
	Short: "Create notifications for recent matches",
	Long: `Scan the match log and create one PENDING notification per recently
matched subject. A subject already notified inside the throttle window
is skipped. The watch daemon runs this automatically.`,
	RunE: runAlertsRecord,
}

var alertsDispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Dispatch pending notifications through the call tree",
	Long: `Send every PENDING notification through the escalation call tree:
email first, then SMS, then voice, contacting recipients level by level.
The watch daemon runs this automatically.`,
	RunE: runAlertsDispatch,
}

func init() {
	rootCmd.AddCommand(alertsCmd)
	alertsCmd.AddCommand(alertsRecordCmd)
	alertsCmd.AddCommand(alertsDispatchCmd)
}

func initPostgres(cfg *config.Config) (*postgres.Pool, error) {
	if cfg.Database.URL == "" {
		return nil, errors.New("DATABASE_URL environment variable is required")
	}
	if err := postgres.Initialize(&cfg.Database); err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	return postgres.GetGlobalPool(), nil
}

func runAlertsRecord(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	pool, err := initPostgres(cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	ctx := context.Background()
	matches := postgres.NewMatchRepository(pool)
	notifications := postgres.NewNotificationRepository(pool)

	recorder := alert.NewRecorder(matches, notifications, cfg.Alerting.ThrottleWindow, newLogger())
	if err := recorder.RecordNew(ctx); err != nil {
		return fmt.Errorf("failed to record notifications: %w", err)
	}

	pending, err := notifications.ListByStatus(ctx, database.StatusPending)
	if err != nil {
		return fmt.Errorf("failed to list pending notifications: %w", err)
	}
	fmt.Printf("Notification scan complete, %d pending\n", len(pending))
	return nil
}

func runAlertsDispatch(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	pool, err := initPostgres(cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	ctx := context.Background()
	matches := postgres.NewMatchRepository(pool)
	notifications := postgres.NewNotificationRepository(pool)
	recipients := postgres.NewRecipientRepository(pool)
	deliveries := postgres.NewDeliveryRepository(pool)

	pending, err := notifications.ListByStatus(ctx, database.StatusPending)
	if err != nil {
		return fmt.Errorf("failed to list pending notifications: %w", err)
	}
	if len(pending) == 0 {
		fmt.Println("No pending notifications.")
		return nil
	}
	fmt.Printf("Dispatching %d pending notifications...\n", len(pending))

	dispatcher := alert.NewDispatcher(notifications, recipients, matches, deliveries,
		[]notify.ChannelSender{
			notify.NewEmailSender(cfg.SMTP),
			notify.NewSMSSender(cfg.Twilio),
			notify.NewVoiceSender(cfg.Twilio),
		}, newLogger())
	if err := dispatcher.DispatchPending(ctx); err != nil {
		return fmt.Errorf("dispatch failed: %w", err)
	}

	fmt.Println("Dispatch complete.")
	return nil
}
