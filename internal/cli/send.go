package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/soyeahso/skillswap/internal/composer"
	"github.com/soyeahso/skillswap/internal/voice"
	"github.com/spf13/cobra"
)

func newSendCmd() *cobra.Command {
	var (
		file    string
		replyTo string
		record  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "send <thread> [text...]",
		Short: "Send a message with an optional file, voice note or reply reference",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			threadID := args[0]

			a, err := openApp(cfg, paths, log)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.requireUser(ctx); err != nil {
				return err
			}

			c := composer.New(threadID, a.api, a.convs, a.hooks, log, composer.Options{Validator: a.validator})
			defer c.Close()

			if err := c.SetText(strings.Join(args[1:], " ")); err != nil {
				return err
			}

			if replyTo != "" {
				if _, err := a.convs.LoadThread(ctx, threadID); err != nil {
					return err
				}
				target, ok := a.convs.Message(replyTo)
				if !ok {
					return fmt.Errorf("message %s not found in thread %s", replyTo, threadID)
				}
				if err := c.ReplyTo(target); err != nil {
					return err
				}
			}

			if file != "" {
				if err := c.AttachPath(file); err != nil {
					return err
				}
			}

			if record > 0 {
				if err := recordVoice(cmd, a, c, record); err != nil {
					return err
				}
			}

			msg, err := c.Send(ctx)
			if err != nil {
				if errors.Is(err, composer.ErrEmptyMessage) {
					return errors.New("nothing to send: give message text, --file or --voice")
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent %s\n", msg.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "attach a file (max 10 MiB)")
	cmd.Flags().StringVar(&replyTo, "reply", "", "id of the message to reply to")
	cmd.Flags().DurationVar(&record, "voice", 0, "record a voice note of this length and attach it")
	return cmd
}

func recordVoice(cmd *cobra.Command, a *app, c *composer.Composer, d time.Duration) error {
	ctx := cmd.Context()
	rec := voice.NewRecorder(a.devices, c, log, voice.Options{
		ContentType: cfg.Voice.ContentType,
		OnTick: func(elapsed time.Duration) {
			fmt.Fprintf(cmd.ErrOrStderr(), "\rrecording %s", elapsed)
		},
	})
	if err := rec.Start(ctx); err != nil {
		return err
	}
	if rec.State() != voice.Recording {
		// Microphone unavailable; the draft is untouched and the rest of the
		// message is still sent.
		fmt.Fprintln(cmd.ErrOrStderr(), "microphone unavailable, sending without a voice note")
		return nil
	}

	select {
	case <-time.After(d):
	case <-ctx.Done():
		rec.Cancel()
		return ctx.Err()
	}

	up, err := rec.Stop()
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	log.Debug().Str("name", up.Name).Int64("bytes", up.Size()).Msg("voice note attached")
	return nil
}
