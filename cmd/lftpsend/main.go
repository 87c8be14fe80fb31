// Command lftpsend transmits a single file to a peer listening on a
// pre-agreed UDP port. It is a thin stand-in for the out-of-band rendezvous
// that tells a peer which port and file to expect: the peer address and
// port are passed as flags instead of being negotiated over IRC.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/datawire/dlib/dlog"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/lftpnet/lftp/transport"
)

func main() {
	if err := command().Execute(); err != nil {
		os.Exit(1)
	}
}

func command() *cobra.Command {
	var metricsBind string

	c := &cobra.Command{
		Use:   "lftpsend <file> <peer-host:port>",
		Short: "Send a file to a peer over LFTP",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := transport.LoadConfig(ctx)
			if err != nil {
				return err
			}

			peer, err := net.ResolveUDPAddr("udp", args[1])
			if err != nil {
				return fmt.Errorf("resolving %s: %w", args[1], err)
			}

			var collector *transport.Collector
			if metricsBind != "" {
				collector = transport.NewCollector()
				if err := serveMetrics(ctx, metricsBind, collector); err != nil {
					return err
				}
			}

			return transport.SendFile(ctx, cfg, peer, args[0], nil, collector)
		},
	}
	c.Flags().StringVar(&metricsBind, "metrics-addr", "", "if set, serve Prometheus metrics on this address (e.g. :9090)")
	return c
}

func serveMetrics(ctx context.Context, addr string, collector *transport.Collector) error {
	if err := collector.Register(); err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		dlog.Infof(ctx, "serving metrics on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			dlog.Errorf(ctx, "metrics server: %v", err)
		}
	}()
	go func() {
		<-ctx.Done()
		srv.Close()
	}()
	return nil
}
