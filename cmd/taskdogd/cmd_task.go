package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"taskdog/internal/task"
	"taskdog/internal/usecase"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Create, inspect, and transition tasks",
}

var (
	addPriority *int
	addDeadline string
	addEstHours float64
	addTags     []string
	addDepends  []int
	addFixed    bool
)

var taskAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a new task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openEnvironment(workspace)
		if err != nil {
			return err
		}
		defer env.Close()

		fields := task.Fields{Name: args[0], IsFixed: addFixed, Tags: addTags, DependsOn: addDepends}
		if addPriority != nil {
			fields.Priority = addPriority
		} else {
			p := env.cfg.Task.DefaultPriority
			fields.Priority = &p
		}
		if addEstHours > 0 {
			fields.EstimatedDuration = &addEstHours
		}
		if addDeadline != "" {
			d, err := parseDate(addDeadline)
			if err != nil {
				return fmt.Errorf("invalid deadline: %w", err)
			}
			fields.Deadline = &d
		}

		created, err := env.controller.Create(context.Background(), fields, nil)
		if err != nil {
			return err
		}
		fmt.Printf("created task %d: %s\n", created.ID, created.Name)
		return nil
	},
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openEnvironment(workspace)
		if err != nil {
			return err
		}
		defer env.Close()

		all, _ := cmd.Flags().GetBool("all")
		sortKey, _ := cmd.Flags().GetString("sort")

		tasks, err := env.controller.List(context.Background(), usecase.ListFilter{All: all, Sort: sortKey})
		if err != nil {
			return err
		}
		for _, t := range tasks {
			priority := "-"
			if t.Priority != nil {
				priority = strconv.Itoa(*t.Priority)
			}
			fmt.Printf("%-4d %-10s priority=%-4s %s\n", t.ID, t.Status, priority, t.Name)
		}
		return nil
	},
}

func taskIDArg(args []string) (int, error) {
	return strconv.Atoi(args[0])
}

func lifecycleCommand(use, short string, run func(ctx context.Context, env *environment, id int) (*task.Task, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := taskIDArg(args)
			if err != nil {
				return fmt.Errorf("invalid task id: %w", err)
			}
			env, err := openEnvironment(workspace)
			if err != nil {
				return err
			}
			defer env.Close()

			updated, err := run(context.Background(), env, id)
			if err != nil {
				return err
			}
			fmt.Printf("task %d: %s\n", updated.ID, updated.Status)
			return nil
		},
	}
}

var taskStartCmd = lifecycleCommand("start", "Start a task", func(ctx context.Context, env *environment, id int) (*task.Task, error) {
	return env.controller.Start(ctx, id, nil)
})

var taskCompleteCmd = lifecycleCommand("complete", "Complete a task", func(ctx context.Context, env *environment, id int) (*task.Task, error) {
	return env.controller.Complete(ctx, id, nil)
})

var taskCancelCmd = lifecycleCommand("cancel", "Cancel a task", func(ctx context.Context, env *environment, id int) (*task.Task, error) {
	return env.controller.Cancel(ctx, id, nil)
})

var taskReopenCmd = lifecycleCommand("reopen", "Reopen a finished task", func(ctx context.Context, env *environment, id int) (*task.Task, error) {
	return env.controller.Reopen(ctx, id, nil)
})

var taskArchiveCmd = lifecycleCommand("archive", "Archive a task", func(ctx context.Context, env *environment, id int) (*task.Task, error) {
	return env.controller.Archive(ctx, id, nil)
})

var taskRestoreCmd = lifecycleCommand("restore", "Restore an archived task", func(ctx context.Context, env *environment, id int) (*task.Task, error) {
	return env.controller.Restore(ctx, id, nil)
})

var taskRemoveCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Permanently delete a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := taskIDArg(args)
		if err != nil {
			return fmt.Errorf("invalid task id: %w", err)
		}
		env, err := openEnvironment(workspace)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.controller.Delete(context.Background(), id, nil); err != nil {
			return err
		}
		fmt.Printf("deleted task %d\n", id)
		return nil
	},
}

var priorityFlag int

func init() {
	taskAddCmd.Flags().Float64Var(&addEstHours, "hours", 0, "Estimated duration in hours")
	taskAddCmd.Flags().StringVar(&addDeadline, "deadline", "", "Deadline date (YYYY-MM-DD)")
	taskAddCmd.Flags().StringSliceVar(&addTags, "tags", nil, "Comma-separated tags")
	taskAddCmd.Flags().IntSliceVar(&addDepends, "depends-on", nil, "Comma-separated dependency task ids")
	taskAddCmd.Flags().BoolVar(&addFixed, "fixed", false, "Mark the task as fixed (never rescheduled)")
	taskAddCmd.Flags().IntVar(&priorityFlag, "priority", 0, "Priority (higher runs first; defaults to task.default_priority)")
	taskAddCmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("priority") {
			addPriority = &priorityFlag
		}
		return nil
	}

	taskListCmd.Flags().Bool("all", false, "Include archived tasks")
	taskListCmd.Flags().String("sort", "created_at", "Sort key: priority, deadline, created_at, name")
}
