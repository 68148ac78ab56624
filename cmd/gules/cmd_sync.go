package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/gules/internal/render"
	"github.com/user/gules/internal/types"
)

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().Bool("full", false, "refetch the whole session instead of resuming")
}

var syncCmd = &cobra.Command{
	Use:   "sync <session-id>...",
	Short: "Fetch new activities into the cache",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		full, _ := cmd.Flags().GetBool("full")
		cfg := loadConfig()
		if err := requireAPIKey(cfg); err != nil {
			return err
		}
		if !cfg.Cache.Enabled {
			return fmt.Errorf("cache is disabled (cache.enabled = false)")
		}
		svc := newService(cfg)

		failed := 0
		for _, arg := range args {
			id, err := types.ParseSessionID(arg)
			if err != nil {
				return err
			}
			res, err := svc.EnsureSynced(cmd.Context(), id, full)
			render.SyncResult(os.Stdout, id, res, err)
			if err != nil {
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d session(s) failed to sync", failed, len(args))
		}
		return nil
	},
}
