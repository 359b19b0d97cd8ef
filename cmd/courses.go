package main

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newCoursesCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "courses",
		Short: "List indexed courses",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), appOptions{configPath: *configPath})
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := a.system.Analytics(cmd.Context())
			if err != nil {
				return err
			}
			color.Cyan("%d courses indexed", stats.TotalCourses)
			for _, title := range stats.CourseTitles {
				color.White("  - %s", title)
			}
			return nil
		},
	}
}
