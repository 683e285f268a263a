// Command adc-server supervises a configured list of ADC hub
// connections via Application, logging every incoming chat message as
// a JSON line on stdout and exposing Prometheus metrics over HTTP.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	dc "github.com/udoprog/go-adc"
	"github.com/udoprog/go-adc/adc/client"
	"github.com/udoprog/go-adc/adc/types"
)

var (
	flagConfig     string
	flagListenAddr string
)

var root = &cobra.Command{
	Use:   "adc-server",
	Short: "supervise a list of ADC hub connections",
	RunE:  run,
}

func init() {
	root.Flags().StringVar(&flagConfig, "config", "adc-server.yaml", "hub list config file")
	root.Flags().StringVar(&flagListenAddr, "listen", ":9110", "Prometheus metrics listen address")
}

// hubEntry is one hub in the YAML/JSON config file's hub list.
type hubEntry struct {
	Addr      string `mapstructure:"addr"`
	Name      string `mapstructure:"name"`
	Reconnect bool   `mapstructure:"reconnect"`
}

type serverEvent struct {
	Type string `json:"type"`
	Addr string `json:"addr,omitempty"`
	From string `json:"from,omitempty"`
	Text string `json:"text,omitempty"`
}

func run(cmd *cobra.Command, args []string) error {
	v := viper.New()
	v.SetConfigFile(flagConfig)
	var hubs []hubEntry
	if err := v.ReadInConfig(); err == nil {
		if err := v.UnmarshalKey("hubs", &hubs); err != nil {
			return fmt.Errorf("adc-server: invalid config: %w", err)
		}
	}

	reg := prometheus.NewRegistry()
	metrics := dc.NewMetrics(reg)

	enc := json.NewEncoder(os.Stdout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app := dc.NewApplication(ctx, metrics)
	app.Events = client.Events{
		Message: func(c *client.Conn, from types.SID, text string, pm bool) {
			enc.Encode(serverEvent{Type: "message", From: from.String(), Text: text})
			metrics.MessagesDispatched.Inc()
		},
	}

	for _, h := range hubs {
		app.AddHub(dc.HubDescriptor{Addr: h.Addr, Name: h.Name, Reconnect: h.Reconnect})
	}

	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	go func() {
		if err := http.ListenAndServe(flagListenAddr, nil); err != nil {
			fmt.Fprintf(os.Stderr, "adc-server: metrics server: %v\n", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	<-sig
	cancel()
	return app.Wait()
}

func main() {
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
