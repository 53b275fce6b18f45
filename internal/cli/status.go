package cli

import (
	"fmt"

	"github.com/soyeahso/skillswap/internal/config"
	"github.com/soyeahso/skillswap/internal/version"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show session state and configuration summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "skillswap %s (commit %s)\n\n", version.Version, version.Commit)

			fmt.Fprintf(out, "Config:   %s\n", paths.Config)
			fmt.Fprintf(out, "Data:     %s\n", paths.Data)
			fmt.Fprintln(out)

			fmt.Fprintf(out, "API:      %s (timeout %s)\n", cfg.API.BaseURL, cfg.API.Timeout())
			if cfg.Realtime.Enabled {
				fmt.Fprintf(out, "Realtime: %s\n", cfg.API.RealtimeURL)
			} else {
				fmt.Fprintln(out, "Realtime: disabled")
			}
			fmt.Fprintf(out, "Devices:  backend=%s simulate=%s\n", cfg.Devices.Backend, cfg.Devices.Simulate)

			a, err := openApp(cfg, paths, log)
			if err != nil {
				fmt.Fprintf(out, "Session:  error opening store: %v\n", err)
			} else {
				defer a.Close()
				fmt.Fprintf(out, "Session:  %s (store=%s)\n", a.auth.State(), cfg.Auth.Store)
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				fmt.Fprintf(out, "\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Fprintf(out, "  - %s: %s\n", issue.Path, issue.Message)
				}
			}
			return nil
		},
	}

	return cmd
}
