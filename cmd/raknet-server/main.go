// Command raknet-server binds the listener on the configured address
// and serves until interrupted. It replaces hand-rolled flag parsing
// with a cobra command tree whose flags overlay the viper-backed
// config package.
package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"raknet-core/client"
	"raknet-core/config"
	"raknet-core/events"
	"raknet-core/listener"
	"raknet-core/logging"
	"raknet-core/metrics"
)

const version = "1.0.0"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		configPath  string
		host        string
		port        int
		logLevel    string
		metricsAddr string
	)

	root := &cobra.Command{
		Use:     "raknet-server",
		Short:   "RakNet-style reliable UDP transport server",
		Version: version,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				cfg.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			return serve(cfg, metricsAddr)
		},
	}

	root.Flags().StringVarP(&configPath, "config", "c", "", "path to a config file")
	root.Flags().StringVar(&host, "host", "0.0.0.0", "address to bind")
	root.Flags().IntVarP(&port, "port", "p", 19132, "UDP port to bind")
	root.Flags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (empty disables)")

	root.AddCommand(newPingCommand())
	return root
}

func serve(cfg config.Config, metricsAddr string) error {
	log := logging.New(cfg.LogLevel)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			log.WithField("addr", metricsAddr).Info("serving metrics")
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				log.WithError(err).Error("metrics server stopped")
			}
		}()
	}

	bus := events.NewBus()
	bus.Subscribe(events.ConnectionEstablished, func(e events.Event) {
		log.WithField("addr", e.Addr.String()).WithField("handle", e.Handle).Info("connection established")
	})
	bus.Subscribe(events.Disconnect, func(e events.Event) {
		log.WithField("handle", e.Handle).WithField("reason", e.DisconnectCause.String()).Info("disconnected")
	})
	bus.Subscribe(events.Blocked, func(e events.Event) {
		log.WithField("addr", e.Addr.String()).WithField("reason", e.BlockCause.String()).Warn("address blocked")
	})
	bus.Subscribe(events.Ping, func(e events.Event) {
		log.WithField("handle", e.Handle).WithField("latency", e.Latency).Debug("ping")
	})

	l, err := listener.New(cfg, bus, log, m)
	if err != nil {
		return err
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.WithField("signal", sig.String()).Info("shutting down")
		l.Close()
	}()

	log.WithField("version", version).Info("starting raknet-server")
	return l.Serve()
}

func newPingCommand() *cobra.Command {
	var timeout time.Duration

	ping := &cobra.Command{
		Use:   "ping <host:port>",
		Short: "Send an unconnected ping and print the server's status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := client.Ping(args[0], timeout)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), data)
			return nil
		},
	}
	ping.Flags().DurationVar(&timeout, "timeout", time.Second, "how long to wait for a pong")
	return ping
}
