package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:           "boardctl",
		Short:         "Inspect and rearrange task boards through the task API",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.apiURL, "api-url", os.Getenv("TASK_API_URL"), "Task API base URL")
	root.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("TASK_API_TOKEN"), "Bearer token for the task API")
	root.PersistentFlags().IntVarP(&opts.project, "project", "p", 0, "Project id")
	root.PersistentFlags().StringVar(&opts.order, "order", "descending", "Weight order within a column (descending, ascending)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log engine activity")

	root.AddCommand(showCmd(opts))
	root.AddCommand(moveCmd(opts))
	return root
}
