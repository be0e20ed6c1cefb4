package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hurou927/kin-subset/internal/graph"
	"github.com/hurou927/kin-subset/internal/tables"
)

func newAnalyzeCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze the relatedness graph and output its components",
		Long:  `Reads the input tables, builds the relatedness graph, and outputs its related components in the specified format. No individual is removed.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var files tables.Files
			defer files.Close()

			g, _, err := o.buildGraph(ctx, cmd, &files)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			switch o.analyzeFormat {
			case "mermaid":
				return graph.WriteMermaid(w, g)
			case "text":
				return graph.WriteText(w, g)
			default:
				return fmt.Errorf("unknown format: %s (supported: mermaid, text)", o.analyzeFormat)
			}
		},
	}

	cmd.Flags().StringVar(&o.analyzeFormat, "format", "text", "output format: mermaid or text")
	return cmd
}
