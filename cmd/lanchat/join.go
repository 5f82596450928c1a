package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/rescp17/lanChat/internal/hostloop"
	"github.com/rescp17/lanChat/internal/session"
	"github.com/rescp17/lanChat/pkg/chat"
	"github.com/rescp17/lanChat/pkg/discovery"
	"github.com/rescp17/lanChat/pkg/metrics"
	"github.com/rescp17/lanChat/pkg/taskrunner"
	"github.com/rescp17/lanChat/pkg/ui"
)

// leaveTimeout bounds how long join waits for the leave notice after the UI exits.
const leaveTimeout = 2 * time.Second

var errNoService = errors.New("no room service found on the local network")

func joinCommand(a *app) *cobra.Command {
	var (
		url, room, username string
		metricsAddr         string
		discover            bool
		timeout             time.Duration
	)
	cmd := &cobra.Command{
		Use:   "join",
		Short: "Join a chat room",
		RunE: func(cmd *cobra.Command, args []string) error {
			stringFlag(cmd, "url", url, &a.cfg.URL)
			stringFlag(cmd, "room", room, &a.cfg.Room)
			stringFlag(cmd, "username", username, &a.cfg.Username)
			stringFlag(cmd, "metrics-addr", metricsAddr, &a.cfg.MetricsAddr)

			if discover {
				if err := discoverURL(cmd.Context(), a, timeout, cmd.Flags().Changed("room")); err != nil {
					return err
				}
			}
			if err := a.cfg.ValidateJoin(); err != nil {
				return err
			}
			return runJoin(cmd.Context(), a)
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "Service URL (mem://, redis:// or nats://)")
	cmd.Flags().StringVar(&room, "room", "", "Room to join (default demo)")
	cmd.Flags().StringVarP(&username, "username", "u", "", "Your name in the room")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve client metrics on this address")
	cmd.Flags().BoolVar(&discover, "discover", false, "Find the service URL over mDNS")
	cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Second, "How long to browse with --discover")
	return cmd
}

// discoverURL replaces the configured URL with an announced room service.
// With keepRoom the service must announce the configured room.
func discoverURL(ctx context.Context, a *app, timeout time.Duration, keepRoom bool) error {
	services, err := lookup(ctx, timeout)
	if err != nil {
		return err
	}
	for _, s := range services {
		if keepRoom && s.Room() != a.cfg.Room {
			continue
		}
		u, err := s.URL()
		if err != nil {
			slog.Warn("Skipping discovered service", "name", s.Name, "error", err)
			continue
		}
		a.cfg.URL = u
		if !keepRoom && s.Room() != "" {
			a.cfg.Room = s.Room()
		}
		slog.Info("Discovered room service", "name", s.Name, "url", u, "room", a.cfg.Room)
		return nil
	}
	return errNoService
}

func lookup(ctx context.Context, timeout time.Duration) ([]discovery.ServiceInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	query := discovery.Query(discovery.DefaultServiceType, discovery.DefaultDomain)
	return discovery.Lookup(ctx, &discovery.MDNSAdapter{}, query)
}

func runJoin(ctx context.Context, a *app) error {
	loop := hostloop.New(64)
	defer loop.Close()
	runner := taskrunner.New(ctx)
	defer runner.Close()

	m := metrics.New()
	svc, err := chat.NewService(chat.Config{
		URL:      a.cfg.URL,
		Room:     a.cfg.Room,
		Username: a.cfg.Username,
		Dialer:   newDialer(),
		Runner:   runner,
		Loop:     loop,
		Metrics:  m,
	})
	if err != nil {
		return err
	}

	if a.cfg.MetricsAddr != "" {
		metricsCtx, stopMetrics := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := serveMetrics(metricsCtx, a.cfg.MetricsAddr, m); err != nil {
				slog.Error("Metrics server stopped", "error", err)
			}
		}()
		defer func() {
			stopMetrics()
			<-done
		}()
	}

	p := tea.NewProgram(ui.InitialModel(ui.Options{Service: svc, Loop: loop}), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("terminal UI failed: %w", err)
	}

	// The UI quits right after asking to leave; let the leave notice go out.
	waitCtx, cancel := context.WithTimeout(ctx, leaveTimeout)
	defer cancel()
	if err := loop.RunUntil(waitCtx, func() bool { return svc.State() == session.Disconnected }); err != nil {
		slog.Warn("Left without waiting for the leave notice", "error", err)
	}
	return nil
}
