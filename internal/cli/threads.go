package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/soyeahso/skillswap/internal/conversation"
	"github.com/spf13/cobra"
)

func newThreadsCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "threads",
		Short: "List message threads (accepted swaps) with unread counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(cfg, paths, log)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.requireUser(ctx); err != nil {
				return err
			}
			viewer := a.convs.Viewer()

			swaps, err := a.api.Swaps(ctx)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "THREAD\tWITH\tEXCHANGE\tCREDITS\tSTATUS\tUNREAD")
			for _, s := range swaps {
				if !s.HasThread() && !all {
					continue
				}
				unread := "-"
				if s.HasThread() {
					_, err := a.convs.LoadThread(ctx, s.ID)
					if err != nil && !errors.Is(err, conversation.ErrStale) {
						log.Warn().Err(err).Str("thread", s.ID).Msg("could not load thread")
					} else {
						unread = fmt.Sprint(a.convs.UnreadCount(s.ID))
					}
				}
				fmt.Fprintf(w, "%s\t%s\t%s <-> %s\t%s\t%s\t%s\n",
					s.ID, s.OtherParty(viewer).Name, s.OfferedSkill, s.WantedSkill,
					s.Credits.StringFixed(2), s.Status, unread)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "include pending and rejected swaps")
	return cmd
}
