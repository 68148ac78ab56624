package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/gules/internal/activity"
	"github.com/user/gules/internal/render"
	"github.com/user/gules/internal/types"
)

func init() {
	rootCmd.AddCommand(activityCmd)
	activityCmd.AddCommand(activityGetCmd)
	activityGetCmd.Flags().StringP("format", "f", string(render.FormatFull), "output format: json, yaml, table, full, content")
}

var activityCmd = &cobra.Command{
	Use:   "activity",
	Short: "Inspect single activities",
}

var activityGetCmd = &cobra.Command{
	Use:   "get <session-id> <activity-id> | get sessions/<id>/activities/<id>",
	Short: "Fetch one activity from the API",
	Long:  "Fetch one activity from the API. The cache is neither read nor written.",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sid, aid, err := parseActivityRef(args)
		if err != nil {
			return err
		}
		format, _ := cmd.Flags().GetString("format")
		f, err := render.ParseFormat(format)
		if err != nil {
			return err
		}
		cfg := loadConfig()
		if err := requireAPIKey(cfg); err != nil {
			return err
		}

		a, err := fetchActivity(cmd.Context(), newClient(cfg), sid, aid)
		if err != nil {
			return err
		}
		return render.Activities(os.Stdout, []*activity.Activity{a}, f)
	},
}

type activityGetter interface {
	GetActivity(ctx context.Context, id types.SessionID, activityID types.ActivityID) (json.RawMessage, error)
}

func fetchActivity(ctx context.Context, c activityGetter, sid types.SessionID, aid types.ActivityID) (*activity.Activity, error) {
	raw, err := c.GetActivity(ctx, sid, aid)
	if err != nil {
		return nil, fmt.Errorf("get activity %s: %w", aid, err)
	}
	return activity.Decode(raw, sid), nil
}

// parseActivityRef accepts a session id with a bare or "activities/<id>"
// activity id, or a single full resource name.
func parseActivityRef(args []string) (types.SessionID, types.ActivityID, error) {
	var sessionArg, activityArg string
	switch len(args) {
	case 1:
		before, after, ok := strings.Cut(strings.TrimSpace(args[0]), "/activities/")
		if !ok {
			return "", "", fmt.Errorf("expected sessions/<id>/activities/<id>, got %q", args[0])
		}
		sessionArg, activityArg = before, after
	case 2:
		sessionArg, activityArg = args[0], args[1]
	default:
		return "", "", fmt.Errorf("expected a session and an activity id")
	}

	sid, err := types.ParseSessionID(sessionArg)
	if err != nil {
		return "", "", err
	}
	aid := strings.TrimPrefix(strings.TrimSpace(activityArg), "activities/")
	if aid == "" || strings.ContainsAny(aid, "/\\") {
		return "", "", fmt.Errorf("invalid activity id %q", activityArg)
	}
	return sid, types.ActivityID(aid), nil
}
