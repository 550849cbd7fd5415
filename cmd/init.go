package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/garpnet/consensus-core/config"
)

var flagOutput string

// initCmd writes the default configuration to a file
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "write the default configuration to a file",
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeDefaultConfig(flagOutput)
	},
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().StringVar(&flagOutput, "output", "consensus.yaml", "path of the configuration file; the extension selects the format")
}

// writeDefaultConfig writes every configuration key with its default value.
func writeDefaultConfig(path string) error {
	flags := pflag.NewFlagSet("defaults", pflag.ContinueOnError)
	config.InitializeFlags(flags, config.DefaultConfig())

	conf := viper.New()
	err := config.BindFlags(conf, flags)
	if err != nil {
		return err
	}
	err = conf.SafeWriteConfigAs(path)
	if err != nil {
		return fmt.Errorf("could not write configuration to %s: %w", path, err)
	}
	fmt.Printf("configuration written to %s\n", path)
	return nil
}
