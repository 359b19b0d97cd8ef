package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/xhad/courserag/pkg/llm"
	"github.com/xhad/courserag/server"
)

func newServeCmd(configPath *string) *cobra.Command {
	var (
		addr       string
		skipIngest bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, appOptions{configPath: *configPath})
			if err != nil {
				return err
			}
			defer a.Close()

			probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			if err := llm.CheckConnection(probeCtx, a.model); err != nil {
				a.logger.Warn("llm is not reachable yet", "provider", a.config.LLM.Provider, "error", err)
			}
			cancel()

			if !skipIngest {
				docs := a.config.Ingest.DocsPath
				if _, err := os.Stat(docs); err != nil {
					a.logger.Warn("docs path not found, starting with existing index", "path", docs)
				} else {
					report, err := a.system.IngestAll(ctx, docs, false)
					if err != nil {
						return err
					}
					a.logger.Info("startup ingestion finished",
						"courses_added", report.CoursesAdded,
						"chunks_added", report.ChunksAdded,
						"skipped", report.Skipped,
						"failed", report.Failed)
				}
			}

			if addr == "" {
				addr = a.config.Server.Addr
			}
			return server.New(a.system, a.logger).ListenAndServe(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().BoolVar(&skipIngest, "skip-ingest", false, "do not index the docs path on startup")
	return cmd
}
