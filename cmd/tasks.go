package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/peoplesearch-cli/internal/model"
	"github.com/sells-group/peoplesearch-cli/internal/store"
)

var (
	tasksStatus string
	tasksLimit  int
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List stored tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		tasks, err := st.ListTasks(ctx, store.TaskFilter{
			Status: model.TaskStatus(tasksStatus),
			Limit:  tasksLimit,
		})
		if err != nil {
			return err
		}

		for _, t := range tasks {
			fmt.Printf("%s  %-22s %-16s results=%d credits=%d\n",
				t.ID, t.Status, t.Site, t.Progress.TotalResults, t.Progress.CreditsUsed)
		}
		return nil
	},
}

var taskCmd = &cobra.Command{
	Use:   "task <id>",
	Short: "Show one task with its live progress",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		t, err := st.GetTask(ctx, args[0])
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(t, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	tasksCmd.Flags().StringVar(&tasksStatus, "status", "", "filter by status")
	tasksCmd.Flags().IntVar(&tasksLimit, "limit", 50, "max tasks to list")
	rootCmd.AddCommand(tasksCmd)
	rootCmd.AddCommand(taskCmd)
}
