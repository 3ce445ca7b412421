package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/mobigaurav/ai-release-guardian/internal/logging"
	mcpserver "github.com/mobigaurav/ai-release-guardian/internal/mcp"
	"github.com/mobigaurav/ai-release-guardian/internal/metrics"
	"github.com/mobigaurav/ai-release-guardian/internal/server"
)

func newServeCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and GitHub webhook receiver",
		Long: `Starts the release guardian HTTP API. Besides the tool endpoints it accepts
GitHub pull_request webhooks, posts an analysis comment on opened and
synchronized pull requests and exposes Prometheus metrics on /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m := metrics.New()
			d, err := buildDeps(withMetrics(m))
			if err != nil {
				return err
			}
			defer d.Close()

			settings := server.DefaultSettings()
			if port == 0 {
				port = d.cfg.Server.Port
			}
			settings.Addr = fmt.Sprintf(":%d", port)
			settings.WebhookSecret = d.cfg.Server.WebhookSecret
			settings.MaxBodyBytes = d.cfg.Server.MaxBodyBytes
			if settings.WebhookSecret == "" {
				d.logger.Warn("webhook signature verification disabled")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv := server.New(d.service(), settings,
				server.WithMetrics(m), server.WithLogger(logging.New("server")))
			if err := srv.Start(ctx); err != nil {
				return err
			}
			cmd.Printf("✓ Listening on %s\n", srv.Addr())

			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), signalTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (default from server.port)")
	return cmd
}

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server over stdio",
		Long: `Starts an MCP server over stdin/stdout exposing analyze_release,
generate_tests, release_risk_score, rollback_plan and make_decision.

The server exits when its parent process goes away.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := buildDeps()
			if err != nil {
				return err
			}
			defer d.Close()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			log := logging.New("mcp")
			mcpserver.WatchParent(ctx, mcpserver.DefaultWatchInterval, log, cancel)

			log.Info("starting release guardian MCP server over stdio (parent watchdog active)")
			return mcpserver.NewServer(d.service(), version).Run(ctx, &sdkmcp.StdioTransport{})
		},
	}
}
