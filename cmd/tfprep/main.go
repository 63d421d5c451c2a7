// Command tfprep conditions 8-bit filterbank streams.
//
// Usage:
//
//	tfprep defaults > tfprep.yaml
//	tfprep run --config tfprep.yaml --header hdr.yaml --input raw.u8 --output out.u8
//	tfprep kernels
package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cwbudde/algo-tfprep/log"
)

func main() {
	if err := newRootCommand(log.GetLogger()).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand(logger *logrus.Logger) *cobra.Command {
	var debug bool
	root := &cobra.Command{
		Use:           "tfprep",
		Short:         "Time-frequency conditioning for radio filterbank data",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if debug {
				logger.SetLevel(logrus.DebugLevel)
			}
		},
	}
	root.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug output")

	root.AddCommand(
		newDefaultsCommand(),
		newRunCommand(logger),
		newKernelsCommand(),
	)
	return root
}
