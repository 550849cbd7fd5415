package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "run every configured validator as a participant of a local network",
}

var builder = NewNodeBuilder("consensus", runCmd.Flags())

func init() {
	// RunE is assigned here rather than in the literal to avoid an
	// initialization cycle through builder.
	runCmd.RunE = runNode
	rootCmd.AddCommand(runCmd)
}

func runNode(cmd *cobra.Command, _ []string) error {
	node, err := builder.Build()
	if err != nil {
		return err
	}
	defer func() {
		err := node.Close()
		if err != nil {
			builder.Logger.Error().Err(err).Msg("could not close node")
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err = node.Run(ctx)
	if err != nil && ctx.Err() == nil {
		return err
	}
	builder.Logger.Info().Msg("node shutdown complete")
	return nil
}
