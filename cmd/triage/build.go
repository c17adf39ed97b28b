package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"kwik.app/dispatch/internal/model"
	"kwik.app/dispatch/internal/triage"
)

func newBuildCmd() *cobra.Command {
	var phone, transcriptPath, emotionsPath string

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build a call record from a transcript and emotion readings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			transcript, err := readTranscript(transcriptPath)
			if err != nil {
				return err
			}
			emotions, err := readEmotions(emotionsPath)
			if err != nil {
				return err
			}

			_, builder, err := setup()
			if err != nil {
				return err
			}

			return buildAndPrint(cmd.Context(), cmd.OutOrStdout(), builder, triage.BuildRequest{
				CallerNumber: phone,
				Transcript:   transcript.Text(),
				Emotions:     emotions,
			})
		},
	}

	cmd.Flags().StringVar(&phone, "phone", "", "caller phone number")
	cmd.Flags().StringVar(&transcriptPath, "transcript", "", "transcript file (.txt or .json segments)")
	cmd.Flags().StringVar(&emotionsPath, "emotions", "", "emotion readings JSON file")
	_ = cmd.MarkFlagRequired("phone")

	return cmd
}

// readTranscript reads plain text, or a JSON transcript when the file ends in .json.
func readTranscript(path string) (model.Transcript, error) {
	if path == "" {
		return model.Transcript{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Transcript{}, fmt.Errorf("reading transcript: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		var t model.Transcript
		if err := json.Unmarshal(data, &t); err != nil {
			return model.Transcript{}, fmt.Errorf("parsing transcript: %w", err)
		}
		return t, nil
	}
	return model.TranscriptFromText(strings.TrimSpace(string(data))), nil
}

// readEmotions accepts a list of {"emotion","intensity"} readings or a single
// {"label": intensity} frame.
func readEmotions(path string) ([]model.EmotionReading, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading emotions: %w", err)
	}

	var readings []model.EmotionReading
	if err := json.Unmarshal(data, &readings); err == nil {
		return readings, nil
	}

	var frame model.EmotionFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("parsing emotions: %w", err)
	}
	return frame, nil
}
