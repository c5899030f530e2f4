package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "taskbox",
	Short: "Taskbox is a multi-user task-tracking service",
	Long: `A multi-user task-tracking API: users register, authenticate, and manage
a private list of todo items over HTTP, backed by a document store.`,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
