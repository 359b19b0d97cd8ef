package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/xhad/courserag/pkg/loader"
)

func newIngestCmd(configPath *string) *cobra.Command {
	var clearExisting bool

	cmd := &cobra.Command{
		Use:   "ingest [path-or-url]",
		Short: "Index course documents",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			source := cfg.Ingest.DocsPath
			if len(args) == 1 {
				source = args[0]
			}

			total := -1
			if info, err := os.Stat(source); err == nil && info.IsDir() {
				files, err := loader.NewWithConfig(loader.LoaderConfig{
					AllowedExtensions: cfg.Ingest.AllowedExtensions,
					IgnorePatterns:    cfg.Ingest.IgnorePatterns,
				}).ListFiles(source)
				if err != nil {
					return err
				}
				total = len(files)
			}
			bar := getProgressBar(total, "Loading course documents...")

			a, err := newApp(cmd.Context(), appOptions{
				configPath: *configPath,
				onProgress: func(string) { bar.Add(1) },
			})
			if err != nil {
				return err
			}
			defer a.Close()

			color.Blue("Indexing %s", source)
			report, err := a.system.IngestAll(cmd.Context(), source, clearExisting)
			bar.Finish()
			if err != nil {
				return err
			}

			color.Green("\n✓ Added %d courses (%d chunks)", report.CoursesAdded, report.ChunksAdded)
			if report.Skipped > 0 {
				color.Yellow("  %d already indexed", report.Skipped)
			}
			if report.Failed > 0 {
				color.Red("  %d could not be parsed", report.Failed)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&clearExisting, "clear", false, "remove all indexed courses first")
	return cmd
}
