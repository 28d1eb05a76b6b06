package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/signalnine/crucible/internal/report"
	"github.com/signalnine/crucible/internal/result"
)

var flagCombineOut string

func newCombineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "combine <results...>",
		Short: "Merge result sets from independently-run suites",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sets := make([]*result.Set, 0, len(args))
			for _, path := range args {
				set, err := result.ReadSet(path)
				if err != nil {
					return err
				}
				sets = append(sets, set)
			}
			combined := result.Combine(sets...)
			if flagCombineOut != "" {
				if err := result.WriteSet(flagCombineOut, combined); err != nil {
					return err
				}
				fmt.Printf("Wrote %s/results.json\n", flagCombineOut)
			}
			return report.Generate(combined, flagFormat, os.Stdout)
		},
	}
	cmd.Flags().StringVar(&flagCombineOut, "out", "", "directory to write the merged results.json")
	cmd.Flags().StringVar(&flagFormat, "format", "table", "output format (table, markdown, json)")
	return cmd
}
