package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"taskdog/internal/usecase"
)

var (
	optimizeAlgorithm string
	optimizeStartDate string
	optimizeMaxHours  float64
	optimizeForce     bool
	optimizeTaskIDs   []int
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Run an optimization strategy over pending tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openEnvironment(workspace)
		if err != nil {
			return err
		}
		defer env.Close()

		algorithm := optimizeAlgorithm
		if algorithm == "" {
			algorithm = env.cfg.Optimization.DefaultAlgorithm
		}
		maxHours := optimizeMaxHours
		if maxHours == 0 {
			maxHours = env.cfg.Optimization.MaxHoursPerDay
		}
		startDate := time.Now()
		if optimizeStartDate != "" {
			d, err := parseDate(optimizeStartDate)
			if err != nil {
				return fmt.Errorf("invalid start-date: %w", err)
			}
			startDate = d
		}

		result, err := env.controller.Optimize(context.Background(), usecase.OptimizeRequest{
			Algorithm:      algorithm,
			StartDate:      startDate,
			MaxHoursPerDay: maxHours,
			ForceOverride:  optimizeForce,
			TaskIDs:        optimizeTaskIDs,
		}, nil)
		if err != nil {
			return err
		}

		fmt.Printf("scheduled %d task(s), %d failed\n", len(result.Tasks), len(result.Failed))
		for _, f := range result.Failed {
			fmt.Printf("  failed: task %d (%s): %s\n", f.Task.ID, f.Task.Name, f.Reason)
		}
		return nil
	},
}

func init() {
	optimizeCmd.Flags().StringVar(&optimizeAlgorithm, "algorithm", "", "Optimization algorithm (defaults to optimization.default_algorithm)")
	optimizeCmd.Flags().StringVar(&optimizeStartDate, "start-date", "", "Schedule starting from this date (YYYY-MM-DD, defaults to today)")
	optimizeCmd.Flags().Float64Var(&optimizeMaxHours, "max-hours-per-day", 0, "Maximum hours per day (defaults to optimization.max_hours_per_day)")
	optimizeCmd.Flags().BoolVar(&optimizeForce, "force", false, "Also reschedule fixed tasks")
	optimizeCmd.Flags().IntSliceVar(&optimizeTaskIDs, "task-ids", nil, "Limit the run to these task ids")
}
