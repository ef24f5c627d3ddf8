package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/pior/telldus"
)

// Version information set at build time.
var version = "dev"

type app struct {
	configPath string
	flags      config

	cfg    config
	logger zerolog.Logger
	out    io.Writer
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out}

	rootCmd := &cobra.Command{
		Use:   "tdctl",
		Short: "Control devices and watch events of a telldusd daemon",
		Long: `tdctl talks to telldusd over its command and event endpoints.

Settings are read from the config file, then TDCTL_* environment
variables, then flags.

Examples:
  tdctl list
  tdctl on 3
  tdctl dim 3 128
  tdctl events --metrics-addr=:9100
  tdctl raw tdGetName 3`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}

	defaults := defaultConfig()
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "TOML config file")
	flags.StringVar(&a.flags.Host, "host", defaults.Host, "Daemon host")
	flags.IntVar(&a.flags.CommandPort, "command-port", defaults.CommandPort, "Command endpoint port")
	flags.IntVar(&a.flags.EventPort, "event-port", defaults.EventPort, "Event endpoint port")
	flags.DurationVar(&a.flags.Timeout, "timeout", defaults.Timeout, "Timeout of a command")
	flags.StringVar(&a.flags.LogLevel, "log-level", defaults.LogLevel, "Log level (trace, debug, info, warn, error)")

	rootCmd.AddCommand(
		onCmd(a),
		offCmd(a),
		dimCmd(a),
		listCmd(a),
		sensorsCmd(a),
		controllersCmd(a),
		rawCmd(a),
		eventsCmd(a),
	)

	return rootCmd
}

// load resolves the configuration. Flags set on the command line win over
// the file and the environment.
func (a *app) load(cmd *cobra.Command) error {
	cfg, err := loadConfig(a.configPath, nil)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Host = a.flags.Host
	}
	if flags.Changed("command-port") {
		cfg.CommandPort = a.flags.CommandPort
	}
	if flags.Changed("event-port") {
		cfg.EventPort = a.flags.EventPort
	}
	if flags.Changed("timeout") {
		cfg.Timeout = a.flags.Timeout
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = a.flags.LogLevel
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = a.flags.MetricsAddr
	}

	if cfg.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", cfg.Timeout)
	}

	logger, err := newLogger(os.Stderr, cfg.LogLevel)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logger
	return nil
}

func (a *app) newClient() (*telldus.Client, error) {
	return telldus.NewClient(telldus.Config{
		Host:             a.cfg.Host,
		CommandPort:      a.cfg.CommandPort,
		EventPort:        a.cfg.EventPort,
		ReconnectBackoff: a.cfg.ReconnectBackoff,
		Logger:           &a.logger,
	})
}

func (a *app) commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), a.cfg.Timeout)
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}
