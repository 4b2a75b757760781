package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/offgrid-dt/app"
	"github.com/kilianp07/offgrid-dt/core/demand"
	"github.com/kilianp07/offgrid-dt/pkg/export"
)

var planFlags struct {
	dayAhead bool
	format   string
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print the household's nominal energy plan, and optionally the day-ahead advisories",
	RunE:  runPlan,
}

func init() {
	planCmd.Flags().BoolVar(&planFlags.dayAhead, "day-ahead", false, "simulate the first day and print the day-ahead matching")
	planCmd.Flags().StringVar(&planFlags.format, "format", "yaml", "day-ahead output format: json, yaml or csv")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	templates := cfg.Templates()
	plan := demand.NominalPlan(templates)
	daily := demand.PlannedDailyEnergyKWh(templates, cfg.System.StepsPerDay(), cfg.System.TimestepHours())
	out := cmd.OutOrStdout()
	if _, err := fmt.Fprintf(out, "nominal 24h energy: %.2f kWh\nnominal average:    %.3f kW\nnominal 12h energy: %.2f kWh\nsimulated day:      %.2f kWh\n",
		plan.E24hKWh, plan.PAvgKW, plan.E12hKWh, daily); err != nil {
		return err
	}
	if !planFlags.dayAhead {
		return nil
	}
	switch planFlags.format {
	case "json", "yaml", "csv":
	default:
		return fmt.Errorf("unknown format %q", planFlags.format)
	}

	cfg.Simulation.Days = 1
	cfg.Logging.Backend = "memory"
	ctx, cancel := runContext(cfg)
	defer cancel()
	return withService(cfg, func(svc *app.Service) error {
		sum, err := svc.Run(ctx)
		if err != nil {
			return err
		}
		switch planFlags.format {
		case "json":
			return export.WriteMatchingJSON(out, sum.DayAhead)
		case "csv":
			return export.WriteMatchingCSV(out, sum.DayAhead)
		default:
			return export.WriteMatchingYAML(out, sum.DayAhead)
		}
	})
}
