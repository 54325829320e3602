package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ritu-thombre99/catalyst/core/logging"
	"github.com/ritu-thombre99/catalyst/runtime/quantum"
)

func main() {
	var debug bool

	rootCmd := &cobra.Command{
		Use:   "catalyst [command]",
		Short: "Run staged hybrid workloads and inspect their staging artifacts",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if debug {
				logging.SetGlobalLogLevel(logging.LogLevelDebug)
			}
		},
	}

	// Add flags
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug output")

	rootCmd.AddCommand(devicesCommand())
	rootCmd.AddCommand(demoCommand())
	rootCmd.AddCommand(inspectCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// devicesCommand lists the execution devices built into this binary.
func devicesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List registered execution devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range quantum.DefaultRegistry().Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}
