package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"onboard/internal/platform/httpserver"
	"onboard/internal/platform/middleware"
	"onboard/internal/platform/scheduler"
	httptransport "onboard/internal/transport/http"
)

const (
	shutdownGrace = 15 * time.Second
	tokenIssuer   = "onboard"
)

func serveCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler and the callback server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, c)
		},
	}
}

func serve(ctx context.Context, c *cli) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log := c.newLogger()
	runner := scheduler.NewRunner(ctx, scheduler.WithLogger(log))
	a, err := buildApp(ctx, c.cfg, log, prometheus.DefaultRegisterer, runner)
	if err != nil {
		return err
	}
	defer a.Close()

	handler, err := httptransport.New(a.service, c.cfg.Server.CallbackToken, a.logger, a.healthChecks()...)
	if err != nil {
		return err
	}
	router := httptransport.NewRouter(handler, httptransport.RouterConfig{
		Validator: middleware.NewOperatorTokens(c.cfg.Server.JWTSigningKey, tokenIssuer),
		Gatherer:  prometheus.DefaultGatherer,
		Logger:    a.logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.runExport(gctx)
		return nil
	})
	g.Go(func() error {
		return httpserver.Run(gctx, httpserver.New(c.cfg.Server.Addr, router), shutdownGrace, a.logger)
	})

	if err := a.service.Start(gctx); err != nil {
		cancel()
		_ = g.Wait()
		return err
	}
	a.logger.InfoContext(ctx, "onboard engine started",
		"poll_interval", c.cfg.Schedule.PollInterval,
		"digest_at", c.cfg.Schedule.DigestAt,
		"timezone", c.cfg.Location().String(),
	)

	err = g.Wait()
	a.service.Stop()
	runner.Wait()
	return err
}

func checkCommand(c *cli) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run one poll cycle and push the due notifications",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := buildApp(ctx, c.cfg, c.newLogger(), prometheus.NewRegistry(), nil)
			if err != nil {
				return err
			}
			defer a.Close()
			defer a.service.Stop()

			report, checkErr := a.service.Check(ctx, force)
			if err := printJSON(cmd, httptransport.FromReport(report)); err != nil {
				return err
			}
			return checkErr
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "push every group regardless of cadence")
	return cmd
}

func digestCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "digest",
		Short: "Send the daily digest now",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := buildApp(ctx, c.cfg, c.newLogger(), prometheus.NewRegistry(), nil)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.service.Digest(ctx)
		},
	}
}

func tokenCommand(c *cli) *cobra.Command {
	var (
		operator string
		ttl      time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an operator bearer token for the admin API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if operator == "" {
				return fmt.Errorf("--operator is required")
			}
			token, err := middleware.NewOperatorTokens(c.cfg.Server.JWTSigningKey, tokenIssuer).Issue(operator, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&operator, "operator", "", "operator id recorded in audit entries")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "token lifetime")
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
