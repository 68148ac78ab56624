package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/gules/internal/render"
	"github.com/user/gules/internal/types"
)

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionListCmd, sessionGetCmd)

	sessionListCmd.Flags().Int("page-size", 20, "number of sessions to fetch")
	sessionListCmd.Flags().String("page-token", "", "continue from a previous listing")
	sessionGetCmd.Flags().Bool("json", false, "print the raw session as JSON")
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect remote sessions",
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		if err := requireAPIKey(cfg); err != nil {
			return err
		}
		size, _ := cmd.Flags().GetInt("page-size")
		token, _ := cmd.Flags().GetString("page-token")

		page, err := newClient(cfg).ListSessions(cmd.Context(), token, size)
		if err != nil {
			return err
		}
		render.Sessions(os.Stdout, page.Sessions)
		if page.NextPageToken != "" {
			cmd.Printf("\nMore sessions: --page-token %s\n", page.NextPageToken)
		}
		return nil
	},
}

var sessionGetCmd = &cobra.Command{
	Use:   "get <session-id>",
	Short: "Show one session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := types.ParseSessionID(args[0])
		if err != nil {
			return err
		}
		cfg := loadConfig()
		if err := requireAPIKey(cfg); err != nil {
			return err
		}
		s, err := newClient(cfg).GetSession(cmd.Context(), id)
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(s)
		}
		render.Session(os.Stdout, s)
		return nil
	},
}
