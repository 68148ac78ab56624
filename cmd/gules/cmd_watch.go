package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/gules/internal/activity"
	"github.com/user/gules/internal/render"
	"github.com/user/gules/internal/scheduler"
	"github.com/user/gules/internal/types"
)

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().String("schedule", "", "cron expression or descriptor (default from watch.schedule)")
}

var watchCmd = &cobra.Command{
	Use:   "watch <session-id>...",
	Short: "Keep sessions synced on a schedule until they settle",
	Long: "Keep sessions synced on a schedule. A session stops being watched once it " +
		"completes, fails or is paused; the command returns when no session is left " +
		"or on interrupt.",
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		if err := requireAPIKey(cfg); err != nil {
			return err
		}
		if !cfg.Cache.Enabled {
			return fmt.Errorf("cache is disabled (cache.enabled = false)")
		}
		schedule, _ := cmd.Flags().GetString("schedule")
		if schedule == "" {
			schedule = cfg.Watch.Schedule
		}

		ids := make([]types.SessionID, 0, len(args))
		for _, arg := range args {
			id, err := types.ParseSessionID(arg)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}

		client := newClient(cfg)
		svc := newService(cfg)
		syncOne := func(ctx context.Context, id types.SessionID) bool {
			res, err := svc.EnsureSynced(ctx, id, false)
			if err != nil {
				slog.Warn("scheduled sync failed", "session_id", id, "error", err)
			}
			if err != nil || res.RecordsAdded > 0 {
				render.SyncResult(os.Stdout, id, res, err)
			}

			sess, sessErr := client.GetSession(ctx, id)
			if sessErr != nil {
				slog.Debug("session state unavailable", "session_id", id, "error", sessErr)
			}
			cached, _ := svc.Filter(ctx, id, nil)
			label, done := settled(sess, sessErr, cached)
			if done {
				fmt.Fprintf(os.Stdout, "%s: session %s, no longer watching\n", id, label)
			}
			return done
		}

		sched := scheduler.New(syncOne, slog.Default())
		for _, id := range ids {
			if err := sched.Watch(id, schedule); err != nil {
				return err
			}
		}

		ctx := cmd.Context()
		for _, id := range ids {
			if syncOne(ctx, id) {
				sched.Unwatch(id)
			}
		}
		if sched.Watched() == 0 {
			return nil
		}

		sched.Start(ctx)
		fmt.Fprintf(os.Stderr, "Watching %d session(s) on %q. Press Ctrl-C to stop.\n", sched.Watched(), schedule)
		select {
		case <-ctx.Done():
		case <-sched.Idle():
		}
		sched.Stop()
		return nil
	},
}

// settled decides whether a watched session needs no further syncs. The
// remote state is authoritative; when it could not be read, a trailing
// completed or failed activity in the cache decides.
func settled(sess *types.Session, sessErr error, cached []*activity.Activity) (string, bool) {
	if sessErr == nil && sess != nil {
		return sess.State.DisplayName(), sess.State.Settled()
	}
	if len(cached) == 0 {
		return "", false
	}
	switch cached[len(cached)-1].Kind.(type) {
	case activity.SessionCompleted:
		return types.StateCompleted.DisplayName(), true
	case activity.SessionFailed:
		return types.StateFailed.DisplayName(), true
	}
	return "", false
}
