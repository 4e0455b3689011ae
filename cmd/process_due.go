package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adhocore/gronx"
	"github.com/spf13/cobra"

	"github.com/NKRTECH/unified-inbox/internal/config"
	"github.com/NKRTECH/unified-inbox/internal/dispatch"
	"github.com/NKRTECH/unified-inbox/internal/events"
	"github.com/NKRTECH/unified-inbox/internal/scheduler"
)

func processDueCmd() *cobra.Command {
	var every string

	cmd := &cobra.Command{
		Use:   "process-due",
		Short: "Send every due scheduled message",
		Long: "Processes due scheduled messages once and exits, or keeps running " +
			"on a cron cadence when --every is given (e.g. --every \"*/5 * * * *\").",
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging()
			log := slog.Default()

			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			stores, err := openStores(cfg)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer stores.Close()

			registry, err := buildRegistry(cfg, events.NewHub(nil, log))
			if err != nil {
				return fmt.Errorf("build channel registry: %w", err)
			}

			dispatchSvc := dispatch.New(stores, registry, nil, log)
			schedulerSvc := scheduler.New(stores, dispatchSvc, log)

			if every == "" {
				return runProcessOnce(context.Background(), schedulerSvc, log)
			}

			gron := gronx.New()
			if !gron.IsValid(every) {
				return fmt.Errorf("invalid cron expression %q", every)
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			log.Info("process-due loop starting", "every", every)

			ticker := time.NewTicker(time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					log.Info("process-due loop stopped")
					return nil
				case tick := <-ticker.C:
					due, err := gron.IsDue(every, tick)
					if err != nil || !due {
						continue
					}
					if err := runProcessOnce(ctx, schedulerSvc, log); err != nil {
						log.Error("process-due run failed", "error", err)
					}
				}
			}
		},
	}

	cmd.Flags().StringVar(&every, "every", "", "cron expression; keep running and process on this cadence")
	return cmd
}

func runProcessOnce(ctx context.Context, s *scheduler.Service, log *slog.Logger) error {
	res, err := s.ProcessDue(ctx)
	if err != nil {
		return err
	}
	log.Info("due processing complete",
		"processed", res.Processed,
		"succeeded", res.Succeeded,
		"failed", res.Failed,
		"duration_ms", res.ProcessingTime.Milliseconds())
	for _, e := range res.Errors {
		fmt.Fprintln(os.Stderr, e)
	}
	return nil
}
