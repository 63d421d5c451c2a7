package main

import (
	"github.com/spf13/cobra"

	"github.com/cwbudde/algo-tfprep/config"
	"github.com/cwbudde/algo-tfprep/pipeline"
)

func newDefaultsCommand() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "defaults",
		Short: "Print the default configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if path != "" {
				return config.WriteDefault(path)
			}
			data, err := config.Marshal(pipeline.DefaultConfig())
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().StringVarP(&path, "write", "w", "", "Write to this file instead of stdout")
	return cmd
}
