package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rescp17/lanChat/internal/config"
	"github.com/rescp17/lanChat/pkg/discovery"
	"github.com/rescp17/lanChat/pkg/metrics"
	"github.com/rescp17/lanChat/pkg/roomservice"
)

var errServiceStopped = errors.New("room service stopped")

func serveCommand(a *app) *cobra.Command {
	var (
		url, room, metricsAddr string
		announce               bool
		port                   int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the room service on a broker",
		RunE: func(cmd *cobra.Command, args []string) error {
			stringFlag(cmd, "url", url, &a.cfg.URL)
			stringFlag(cmd, "room", room, &a.cfg.Room)
			stringFlag(cmd, "metrics-addr", metricsAddr, &a.cfg.Service.MetricsAddr)
			if cmd.Flags().Changed("announce") {
				a.cfg.Service.Announce = announce
			}
			if cmd.Flags().Changed("port") {
				a.cfg.Service.Port = port
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			return runServe(cmd.Context(), a.cfg)
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "Broker URL (redis:// or nats://)")
	cmd.Flags().StringVar(&room, "room", "", "Room to announce (default demo)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	cmd.Flags().BoolVar(&announce, "announce", true, "Announce the service over mDNS")
	cmd.Flags().IntVar(&port, "port", 0, "Announced broker port (default: the URL port)")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := newDialer().Dial(ctx, cfg.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", cfg.URL, err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			slog.Warn("Failed to close broker connection", "error", err)
		}
	}()

	m := metrics.New()
	rs := roomservice.New(conn, m)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := rs.Run(gctx); err != nil {
			return err
		}
		if gctx.Err() == nil {
			return errServiceStopped
		}
		return nil
	})

	if cfg.Service.MetricsAddr != "" {
		g.Go(func() error { return serveMetrics(gctx, cfg.Service.MetricsAddr, m) })
	}

	if cfg.Service.Announce {
		info, err := discovery.NewAnnouncement(cfg.URL, cfg.Room, cfg.AnnouncePort())
		if err != nil {
			slog.Warn("Not announcing room service", "error", err)
		} else {
			adapter := &discovery.MDNSAdapter{}
			g.Go(func() error { return adapter.Announce(gctx, info) })
		}
	}

	fmt.Printf("Room service running on %s (Ctrl+C to stop)\n", cfg.URL)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
