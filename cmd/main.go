package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:           "courserag",
		Short:         "Answer questions about course materials",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")

	root.AddCommand(
		newServeCmd(&configPath),
		newChatCmd(&configPath),
		newIngestCmd(&configPath),
		newCoursesCmd(&configPath),
	)

	if err := root.Execute(); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}
