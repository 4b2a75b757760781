package cmd

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/kilianp07/offgrid-dt/app"
	"github.com/kilianp07/offgrid-dt/pkg/export"
)

var compareFlags struct {
	days int
	seed uint64
	out  string
}

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Simulate every controller on the same household and print their KPIs as CSV",
	RunE:  runCompare,
}

func init() {
	compareCmd.Flags().IntVar(&compareFlags.days, "days", 0, "number of simulated days")
	compareCmd.Flags().Uint64Var(&compareFlags.seed, "seed", 0, "random seed for the daily task draw")
	compareCmd.Flags().StringVarP(&compareFlags.out, "out", "o", "", "also write the table to this file")
	rootCmd.AddCommand(compareCmd)
}

func runCompare(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyOverrides(cfg, "", compareFlags.days, compareFlags.seed); err != nil {
		return err
	}
	ctx, cancel := runContext(cfg)
	defer cancel()

	return withService(cfg, func(svc *app.Service) error {
		runs, err := svc.Compare(ctx)
		if err != nil {
			return err
		}
		for _, s := range runs {
			if err := writeSummaryFiles(cfg.Simulation.OutDir, s); err != nil {
				return err
			}
		}
		if compareFlags.out != "" {
			if err := writeFile(compareFlags.out, func(w io.Writer) error { return export.WriteComparisonCSV(w, runs) }); err != nil {
				return err
			}
		}
		return export.WriteComparisonCSV(cmd.OutOrStdout(), runs)
	})
}
