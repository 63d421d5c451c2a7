package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cwbudde/algo-tfprep/internal/cpu"
	"github.com/cwbudde/algo-tfprep/internal/kernel"
)

func newKernelsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "kernels",
		Short: "List the numeric kernels and whether this CPU runs them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			features := cpu.DetectFeatures()
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			if _, err := fmt.Fprintf(tw, "Kernel\tSIMD\tPriority\tSupported\n------\t----\t--------\t---------\n"); err != nil {
				return fmt.Errorf("write header: %w", err)
			}
			for _, e := range kernel.Global.ListEntries() {
				if _, err := fmt.Fprintf(tw, "%s\t%s\t%d\t%t\n", e.Name, e.SIMDLevel, e.Priority, cpu.Supports(features, e.SIMDLevel)); err != nil {
					return fmt.Errorf("write row: %w", err)
				}
			}
			auto := kernel.Scalar
			if e := kernel.Global.Lookup(features); e != nil {
				auto = e.Name
			}
			if _, err := fmt.Fprintf(tw, "%s\t\t\t-> %s\n", kernel.Auto, auto); err != nil {
				return fmt.Errorf("write row: %w", err)
			}
			return tw.Flush()
		},
	}
}
