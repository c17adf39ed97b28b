package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"kwik.app/dispatch/internal/model"
	"kwik.app/dispatch/internal/stream"
	"kwik.app/dispatch/internal/triage"
)

func newListenCmd() *cobra.Command {
	var phone string

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Relay stdin lines to the emotion stream and build a call record on exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, builder, err := setup()
			if err != nil {
				return err
			}
			if !cfg.EmotionStream.Enabled() {
				return errors.New("EMOTION_STREAM_URL and EMOTION_STREAM_API_KEY are required")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			client := stream.NewClient(stream.Config{
				URL:      cfg.EmotionStream.URL,
				APIKey:   cfg.EmotionStream.APIKey,
				ConfigID: cfg.EmotionStream.ConfigID,
			}, stream.Handlers{
				OnMessage: func(msg model.ConversationMessage) {
					if msg.Text != "" {
						fmt.Fprintf(cmd.ErrOrStderr(), "[%s] %s\n", msg.Type, msg.Text)
					}
				},
				OnError: func(err error) {
					slog.WarnContext(ctx, "emotion stream error", "error", err)
				},
			})
			if err := client.Connect(ctx); err != nil {
				return fmt.Errorf("connecting to emotion stream: %w", err)
			}

			relayLines(ctx, cmd.InOrStdin(), client)
			if err := client.Close(); err != nil {
				slog.WarnContext(ctx, "closing emotion stream", "error", err)
			}

			top := client.TopEmotions(5)
			flags := client.AnalyzeForEmergencyFlags()
			slog.InfoContext(ctx, "conversation finished",
				"top_emotions", top,
				"high_priority", flags.IsHighPriority,
				"distress_level", flags.DistressLevel)

			return buildAndPrint(context.WithoutCancel(ctx), cmd.OutOrStdout(), builder, triage.BuildRequest{
				CallerNumber: phone,
				Transcript:   client.Transcript(),
				Emotions:     client.Readings(),
			})
		},
	}

	cmd.Flags().StringVar(&phone, "phone", "", "caller phone number")
	_ = cmd.MarkFlagRequired("phone")

	return cmd
}

type textSender interface {
	SendText(text string) error
	Done() <-chan struct{}
}

// relayLines sends each non-blank input line to the stream. It returns at end
// of input or when the connection goes away.
func relayLines(ctx context.Context, in io.Reader, sender textSender) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sender.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if err := sender.SendText(line); err != nil {
				slog.WarnContext(ctx, "failed to send text", "error", err)
				return
			}
		}
	}
}
