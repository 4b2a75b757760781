package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/offgrid-dt/core/control"
)

var controllersCmd = &cobra.Command{
	Use:   "controllers",
	Short: "List the available controllers in comparison order",
	RunE: func(cmd *cobra.Command, _ []string) error {
		for _, name := range control.Names() {
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), name); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(controllersCmd)
}
