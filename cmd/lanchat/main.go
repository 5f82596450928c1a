package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/rescp17/lanChat/internal/config"
	"github.com/rescp17/lanChat/pkg/transport"
	"github.com/rescp17/lanChat/pkg/transport/memory"
	"github.com/rescp17/lanChat/pkg/transport/natsbroker"
	"github.com/rescp17/lanChat/pkg/transport/redisbroker"
)

// app carries the state shared by every sub command.
type app struct {
	configPath string
	logFile    string
	debug      bool

	cfg *config.Config
	log io.Closer
}

func main() {
	a := &app{}
	cmd := &cobra.Command{
		Use:   "lanchat",
		Short: "A chat client for rooms on your local network",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
	}

	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to a TOML config file")
	cmd.PersistentFlags().StringVar(&a.logFile, "log-file", "", "Write logs to this file (default debug.log)")
	cmd.PersistentFlags().BoolVar(&a.debug, "debug", false, "Enable debug logging")

	cmd.AddCommand(joinCommand(a))
	cmd.AddCommand(serveCommand(a))
	cmd.AddCommand(discoverCommand(a))

	err := fang.Execute(context.Background(), cmd)
	a.close()
	if err != nil {
		os.Exit(1)
	}
}

// setup loads the configuration and redirects logging into the log file, so
// the terminal UI owns the screen.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("log-file") {
		cfg.LogFile = a.logFile
	}
	if cmd.Flags().Changed("debug") {
		cfg.Debug = a.debug
	}
	a.cfg = cfg

	f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	a.log = f

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	log.SetOutput(f)
	slog.SetDefault(slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level})))
	return nil
}

func (a *app) close() {
	if a.log == nil {
		return
	}
	if err := a.log.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to close log file: %v\n", err)
	}
	a.log = nil
}

// stringFlag overrides dst with the flag value when the flag was given.
func stringFlag(cmd *cobra.Command, name string, value string, dst *string) {
	if cmd.Flags().Changed(name) {
		*dst = value
	}
}

// newDialer returns a dialer for every supported URL scheme.
func newDialer() *transport.Mux {
	mux := transport.NewMux()
	mux.Register(memory.Scheme, memory.Dialer{})
	mux.Register("redis", redisbroker.NewDialer(redisbroker.Config{}))
	mux.Register("nats", natsbroker.NewDialer(natsbroker.Config{}))
	return mux
}
