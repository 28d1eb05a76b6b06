package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/signalnine/crucible/internal/stage"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available suites and their stages",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("Suites:")
			for _, spec := range stage.Suites() {
				fmt.Printf("  - %s: %s\n", spec.Name, spec.Summary)
				suite := spec.Build(stage.Params{Env: "example"})
				for _, info := range suite.TestInfo() {
					if !info.ReportOn {
						continue
					}
					fmt.Printf("      %s (%s)\n", info.Title, info.TestID)
				}
			}
			return nil
		},
	}
}
