package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/equitraccion/site/pkg/sitectl/output"
	"github.com/equitraccion/site/pkg/version"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show sitectl version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := version.GetBuildInfo()

			writer := cmd.OutOrStdout()
			format := output.FormatTable
			if rt, err := getRuntime(cmd); err == nil {
				writer = rt.Writer()
				format = rt.OutputFormat()
			}

			if format != output.FormatTable {
				return output.WriteObject(writer, format, info)
			}
			_, _ = fmt.Fprintf(writer, "sitectl %s (commit: %s, built: %s)\n", info.Version, info.GitCommit, info.BuildDate)
			return nil
		},
	}
}
