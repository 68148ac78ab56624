package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/gules/internal/render"
	"github.com/user/gules/internal/types"
)

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheStatsCmd, cacheListCmd, cacheHistoryCmd, cacheDeleteCmd, cacheClearCmd)
	cacheHistoryCmd.Flags().IntP("limit", "n", 20, "Number of runs to show (0 for all)")
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the local cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache usage",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := newService(loadConfig()).Stats(cmd.Context())
		if err != nil {
			return fmt.Errorf("cache stats: %w", err)
		}
		render.Stats(os.Stdout, st, time.Now())
		return nil
	},
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached sessions, least recently synced first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := newService(loadConfig()).Sessions(cmd.Context())
		if err != nil {
			return fmt.Errorf("list cache: %w", err)
		}
		if len(entries) == 0 {
			fmt.Println("No cached sessions.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SESSION\tACTIVITIES\tCOMPLETE\tLAST SYNCED")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%d\t%t\t%s\n",
				e.SessionID,
				e.ActivityCount,
				e.NextPageToken == "",
				e.LastSyncedAt.Local().Format("2006-01-02 15:04:05"),
			)
		}
		return w.Flush()
	},
}

var cacheHistoryCmd = &cobra.Command{
	Use:   "history <session-id>",
	Short: "Show recorded sync runs for a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := types.ParseSessionID(args[0])
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")
		recs, err := newService(loadConfig()).History(cmd.Context(), id, limit)
		if err != nil {
			return fmt.Errorf("sync history: %w", err)
		}
		render.History(os.Stdout, recs, time.Now())
		return nil
	},
}

var cacheDeleteCmd = &cobra.Command{
	Use:     "delete <session-id>",
	Aliases: []string{"rm"},
	Short:   "Remove one session from the cache",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := types.ParseSessionID(args[0])
		if err != nil {
			return err
		}
		ok, err := newService(loadConfig()).Evict(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("delete cached session: %w", err)
		}
		if !ok {
			return fmt.Errorf("session not cached: %s", id)
		}
		fmt.Fprintf(os.Stdout, "Session %s removed from cache.\n", id)
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := newService(loadConfig()).ClearAll(cmd.Context())
		if err != nil {
			return fmt.Errorf("clear cache: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Cleared %d cached session(s).\n", n)
		return nil
	},
}
