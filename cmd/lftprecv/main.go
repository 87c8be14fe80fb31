// Command lftprecv binds a UDP port and waits for a single LFTP transfer,
// writing the result to the given output path.
package main

import (
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
	var (
		bindPort    int
		metricsBind string
	)

	c := &cobra.Command{
		Use:   "lftprecv <output-file>",
		Short: "Receive a single file over LFTP",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := transport.LoadConfig(ctx)
			if err != nil {
				return err
			}

			if metricsBind != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", promhttp.Handler())
				srv := &http.Server{Addr: metricsBind, Handler: mux}
				go func() {
					dlog.Infof(ctx, "serving metrics on %s", metricsBind)
					if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
						dlog.Errorf(ctx, "metrics server: %v", err)
					}
				}()
				go func() {
					<-ctx.Done()
					srv.Close()
				}()
			}

			return transport.ReceiveFile(ctx, cfg, bindPort, args[0])
		},
	}
	c.Flags().IntVar(&bindPort, "port", 0, "UDP port to bind (0 picks an ephemeral port; see the printed listen address)")
	c.Flags().StringVar(&metricsBind, "metrics-addr", "", "if set, serve Prometheus metrics on this address (e.g. :9090)")
	return c
}
