package main

import (
	"errors"
	"strconv"

	"github.com/spf13/cobra"
)

func moveCmd(opts *globalOptions) *cobra.Command {
	var over, to int
	cmd := &cobra.Command{
		Use:   "move <task-id>",
		Short: "Replay a drag gesture for one task",
		Long: `Drag a task over another task in its column and drop it on a column.

--over reorders the task within its column the same way hovering does on the
board. --to drops it on a status id and persists the column change.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID, err := strconv.Atoi(args[0])
			if err != nil {
				return errors.New("task id must be a number")
			}
			if over == 0 && to == 0 {
				return errors.New("one of --over or --to is required")
			}
			engine, err := openEngine(cmd.Context(), opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			engine.OnDragStart(taskID)
			if engine.Snapshot().Dragged == nil {
				return errors.New("task " + args[0] + " is not on the board")
			}
			if over != 0 {
				engine.OnDragOver(taskID, over)
			}
			var drop *int
			if to != 0 {
				drop = &to
			}
			engine.OnDragEnd(cmd.Context(), taskID, drop)
			engine.Wait()

			printColumns(cmd.OutOrStdout(), engine.Snapshot())
			return nil
		},
	}
	cmd.Flags().IntVar(&over, "over", 0, "Task id to hover over")
	cmd.Flags().IntVar(&to, "to", 0, "Status id to drop on")
	return cmd
}
