package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/soyeahso/skillswap/internal/call"
	"github.com/spf13/cobra"
)

func newCallCmd() *cobra.Command {
	var (
		hold     time.Duration
		mute     bool
		videoOff bool
	)

	cmd := &cobra.Command{
		Use:   "call <audio|video>",
		Short: "Open a local call session, hold it, then close it and report device release",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			variant, err := call.ParseVariant(args[0])
			if err != nil {
				return err
			}

			a, err := openApp(cfg, paths, log)
			if err != nil {
				return err
			}
			defer a.Close()

			s := call.NewSession(variant, a.devices, a.hooks, log)
			defer s.Close(ctx)

			if err := s.Open(ctx); err != nil {
				return err
			}
			snap := s.Snapshot()
			if snap.Phase == call.Live {
				if mute {
					if _, err := s.ToggleMute(); err != nil {
						return err
					}
				}
				if videoOff {
					if _, err := s.ToggleVideo(); err != nil {
						return err
					}
				}
				snap = s.Snapshot()
			}
			printSnapshot(out, snap)

			select {
			case <-time.After(hold):
			case <-ctx.Done():
			}

			s.Close(ctx)
			st := a.devices.Stats()
			fmt.Fprintf(out, "closed: acquired=%d released=%d\n", st.Acquired, st.Released)
			return nil
		},
	}

	cmd.Flags().DurationVar(&hold, "hold", 0, "how long to keep the call open")
	cmd.Flags().BoolVar(&mute, "mute", false, "mute the microphone once live")
	cmd.Flags().BoolVar(&videoOff, "video-off", false, "turn the camera off once live (video calls)")
	return cmd
}

func printSnapshot(w io.Writer, s call.Snapshot) {
	switch s.Phase {
	case call.Errored:
		fmt.Fprintf(w, "%s call: %s\n  %s\n", s.Variant, s.Failure.Kind, s.Failure.Message)
	case call.Live:
		fmt.Fprintf(w, "%s call live (muted=%t videoOff=%t)\n", s.Variant, s.Muted, s.VideoOff)
	default:
		fmt.Fprintf(w, "%s call %s\n", s.Variant, s.Phase)
	}
}
