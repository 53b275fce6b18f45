package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/soyeahso/skillswap/internal/domain"
	"github.com/soyeahso/skillswap/internal/realtime"
	"github.com/spf13/cobra"
)

func newMessagesCmd() *cobra.Command {
	var (
		noMark bool
		follow bool
	)

	cmd := &cobra.Command{
		Use:   "messages <thread>",
		Short: "Show a thread and mark its unread messages as read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			threadID := args[0]
			out := cmd.OutOrStdout()

			a, err := openApp(cfg, paths, log)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.requireUser(ctx); err != nil {
				return err
			}

			msgs, err := a.convs.LoadThread(ctx, threadID)
			if err != nil {
				return err
			}
			viewer := a.convs.Viewer()
			for _, m := range msgs {
				printMessage(out, m, viewer)
			}

			if !noMark {
				n, err := a.convs.Select(ctx, threadID)
				if err != nil {
					log.Warn().Err(err).Msg("some messages could not be marked read")
				}
				if n > 0 {
					fmt.Fprintf(cmd.ErrOrStderr(), "marked %d message(s) read\n", n)
				}
			}

			if !follow {
				return nil
			}
			if !cfg.Realtime.Enabled {
				return errors.New("--follow needs realtime.enabled: true")
			}

			sink := &printingSink{out: out, viewer: viewer, next: a.convs}
			l := realtime.NewListener(cfg.API.RealtimeURL, a.auth, sink, log)
			return l.Run(ctx, []string{threadID})
		},
	}

	cmd.Flags().BoolVar(&noMark, "no-mark", false, "do not mark unread messages as read")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep listening for new messages on the realtime channel")
	return cmd
}

func printMessage(w io.Writer, m domain.Message, viewer string) {
	who := m.SenderID
	if who == viewer {
		who = "you"
	}
	marker := " "
	if !m.IsRead && m.SenderID != viewer {
		marker = "*"
	}
	line := fmt.Sprintf("%s %s  %-10s %s", marker, m.CreatedAt.Local().Format(time.DateTime), who, m.Content)
	if m.ReplyTo != "" {
		line += fmt.Sprintf("  (reply to %s)", m.ReplyTo)
	}
	if m.Attachment != nil {
		line += fmt.Sprintf("  [%s %s]", m.Attachment.Kind, m.Attachment.URL)
	}
	fmt.Fprintln(w, line)
}

// printingSink echoes pushed messages before handing them to the store.
type printingSink struct {
	out    io.Writer
	viewer string
	next   realtime.Sink
}

func (p *printingSink) Append(msg domain.Message) error {
	if err := p.next.Append(msg); err != nil {
		return err
	}
	printMessage(p.out, msg, p.viewer)
	return nil
}

func (p *printingSink) ApplyRead(ids []string) int {
	return p.next.ApplyRead(ids)
}
