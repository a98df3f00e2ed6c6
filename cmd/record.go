package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"meeting-recorder/capture"
	"meeting-recorder/config"
	"meeting-recorder/pkg/identity"
	"meeting-recorder/pkg/push"
	server2 "meeting-recorder/server"
)

func record(cfg *config.Config) *cobra.Command {
	var (
		userId    string
		pushToken string
	)

	cmd := &cobra.Command{
		Use:   "record",
		Short: "record a meeting from the default microphone, Ctrl+C to stop and upload",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := server2.SetupLogger(cfg)
			for _, w := range cfg.Warnings() {
				zerolog.Ctx(ctx).Warn().Msg(w)
			}

			deps, err := server2.NewDependencies(ctx, cfg)
			if err != nil {
				return err
			}

			ctx = identity.WithUserID(ctx, userId)
			if pushToken != "" {
				ctx = push.WithToken(ctx, pushToken)
			}

			if err := deps.Recording.Start(ctx); err != nil {
				return userError(err)
			}

			sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()
			waitForInterrupt(sigCtx, cmd, func() int { return deps.Recording.Status().ElapsedSeconds })

			// ctx, not sigCtx: the handoff must run after the interrupt.
			result, err := deps.Recording.Stop(ctx)
			if err != nil {
				return userError(err)
			}
			if result == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing was recorded")
				return nil
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "meeting %s saved (%s, status %s)\n", result.MeetingId, capture.FormatDuration(result.DurationSeconds), result.Status)
			fmt.Fprintf(out, "audio: %s\n", result.AudioUrl)
			return nil
		},
	}

	cmd.Flags().StringVar(&userId, "user", "", "id of the user the meeting belongs to")
	cmd.Flags().StringVar(&pushToken, "push-token", "", "device push token to notify when processing finishes")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func waitForInterrupt(ctx context.Context, cmd *cobra.Command, elapsed func() int) {
	t := time.NewTicker(time.Second)
	defer t.Stop()

	out := cmd.OutOrStdout()
	for {
		fmt.Fprintf(out, "\rrecording %s  (Ctrl+C to stop)", capture.FormatDuration(elapsed()))
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return
		case <-t.C:
		}
	}
}
