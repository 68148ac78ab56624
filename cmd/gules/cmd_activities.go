package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/gules/internal/cache"
	"github.com/user/gules/internal/filter"
	"github.com/user/gules/internal/render"
	"github.com/user/gules/internal/types"
)

func init() {
	rootCmd.AddCommand(activitiesCmd)
	addActivityFlags(activitiesCmd)
}

func addActivityFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringSliceP("type", "t", nil, "only activities of this type (repeatable; e.g. agent, user, plan, progress, completed, failed)")
	f.Bool("has-bash-output", false, "only activities with bash output")
	f.String("has-artifact", "", "only activities with an artifact of this type (bashOutput, changeSet, media)")
	f.IntP("last", "n", 0, "only the last N matching activities")
	f.StringP("format", "f", string(render.FormatTable), "output format: json, yaml, table, full, content")
	f.Bool("no-cache", false, "fetch from the API without reading or writing the cache")
	f.Bool("refresh", false, "resync the whole session before filtering")
	f.Bool("offline", false, "read the cache only")
	cmd.MarkFlagsMutuallyExclusive("no-cache", "offline")
	cmd.MarkFlagsMutuallyExclusive("refresh", "offline")
}

var activitiesCmd = &cobra.Command{
	Use:     "activities <session-id>",
	Aliases: []string{"act"},
	Short:   "Show a session's activities",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := types.ParseSessionID(args[0])
		if err != nil {
			return err
		}
		format, _ := cmd.Flags().GetString("format")
		f, err := render.ParseFormat(format)
		if err != nil {
			return err
		}
		pred, err := predicateFromFlags(cmd)
		if err != nil {
			return err
		}

		var opts cache.QueryOptions
		opts.NoCache, _ = cmd.Flags().GetBool("no-cache")
		opts.Refresh, _ = cmd.Flags().GetBool("refresh")
		opts.Offline, _ = cmd.Flags().GetBool("offline")

		cfg := loadConfig()
		if !opts.Offline {
			if err := requireAPIKey(cfg); err != nil {
				return err
			}
		}

		res, err := newService(cfg).Query(cmd.Context(), id, pred, opts)
		if err != nil {
			return err
		}
		if res.SyncErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: sync failed, showing cached activities: %v\n", res.SyncErr)
		}
		return render.Activities(os.Stdout, res.Activities, f)
	},
}

func predicateFromFlags(cmd *cobra.Command) (*filter.Predicate, error) {
	var opts []filter.Option
	if kinds, _ := cmd.Flags().GetStringSlice("type"); len(kinds) > 0 {
		opts = append(opts, filter.Kinds(kinds...))
	}
	if bash, _ := cmd.Flags().GetBool("has-bash-output"); bash {
		opts = append(opts, filter.HasArtifact("bashOutput"))
	}
	if art, _ := cmd.Flags().GetString("has-artifact"); art != "" {
		opts = append(opts, filter.HasArtifact(art))
	}
	if cmd.Flags().Changed("last") {
		n, _ := cmd.Flags().GetInt("last")
		opts = append(opts, filter.Last(n))
	}
	return filter.New(opts...)
}
