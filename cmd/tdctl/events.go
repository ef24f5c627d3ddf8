package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/pior/telldus"
	"github.com/pior/telldus/promstats"
)

func eventsCmd(a *app) *cobra.Command {
	var kinds []string

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Print events until interrupted",
		Long: `Connect to the event endpoint and print every event. The connection
is re-established whenever the daemon drops it.

Examples:
  tdctl events
  tdctl events --kind=sensor --kind=device
  tdctl events --metrics-addr=:9100`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := parseKinds(kinds)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return a.runEvents(ctx, filter)
		},
	}

	cmd.Flags().StringVar(&a.flags.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	cmd.Flags().StringSliceVar(&kinds, "kind", nil, "Only print these event kinds (device, device-change, raw-device, sensor, controller)")

	return cmd
}

func (a *app) runEvents(ctx context.Context, filter map[telldus.Kind]bool) error {
	client, err := a.newClient()
	if err != nil {
		return err
	}

	printEvent := telldus.Func(func(ev telldus.Event) {
		if len(filter) > 0 && !filter[ev.Kind()] {
			return
		}
		a.printf("%s %-13s %s\n", time.Now().Format(time.TimeOnly), ev.Kind(), ev)
	})
	if err := client.Subscribe(&printEvent); err != nil {
		return err
	}

	if a.cfg.MetricsAddr != "" {
		srv, err := a.serveMetrics(client)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	a.logger.Info().
		Str("host", a.cfg.Host).
		Int("port", a.cfg.EventPort).
		Msg("listening for events")

	if err := client.Events().Run(ctx); err != nil {
		return err
	}

	stats := client.Stats()
	a.logger.Info().
		Uint64("events", stats.Events).
		Uint64("connects", stats.EventConnects).
		Uint64("desyncs", stats.Desyncs).
		Time("last_event", stats.LastEvent()).
		Msg("stopped")
	return nil
}

func (a *app) serveMetrics(client *telldus.Client) (*http.Server, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		promstats.NewCollector(client, promstats.Opts{}),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	ln, err := net.Listen("tcp", a.cfg.MetricsAddr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error().Err(err).Str("addr", ln.Addr().String()).Msg("metrics server failed")
		}
	}()
	a.logger.Info().Str("addr", ln.Addr().String()).Msg("serving metrics")

	return srv, nil
}

func parseKinds(names []string) (map[telldus.Kind]bool, error) {
	if len(names) == 0 {
		return nil, nil
	}

	filter := make(map[telldus.Kind]bool, len(names))
	for _, name := range names {
		kind, ok := kindByName(name)
		if !ok {
			return nil, fmt.Errorf("unknown event kind %q", name)
		}
		filter[kind] = true
	}
	return filter, nil
}

func kindByName(name string) (telldus.Kind, bool) {
	for _, kind := range telldus.AllKinds {
		if kind.String() == name {
			return kind, true
		}
	}
	return 0, false
}
