package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"kwik.app/dispatch/common/id"
	"kwik.app/dispatch/common/logger"
	"kwik.app/dispatch/core/config"
	"kwik.app/dispatch/internal/triage"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "triage",
		Short:        "Build emergency call records outside the server",
		SilenceUsage: true,
	}
	root.AddCommand(newBuildCmd(), newListenCmd())
	return root
}

// setup loads CLI config and returns a builder wired like the server's.
func setup() (config.Config, *triage.Builder, error) {
	cfg, err := config.Load(config.ServiceTypeCLI)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("loading config: %w", err)
	}
	logger.Setup(cfg)

	if err := id.Init(3); err != nil {
		return config.Config{}, nil, fmt.Errorf("initializing id generator: %w", err)
	}

	builder, _, err := triage.NewBuilderFromConfig(cfg)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, builder, nil
}

func buildAndPrint(ctx context.Context, w io.Writer, builder *triage.Builder, req triage.BuildRequest) error {
	call, err := builder.Build(ctx, req)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(call)
}
