// Command adc-probe connects to an ADC hub, prints its info and
// roster as JSON, and disconnects.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	dc "github.com/udoprog/go-adc"
)

var (
	flagName    string
	flagTimeout time.Duration
)

var root = &cobra.Command{
	Use:   "adc-probe <adc://host:port>",
	Short: "probe an ADC hub and print its info as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  run,
}

func init() {
	root.Flags().StringVar(&flagName, "name", "", "nickname to present to the hub")
	root.Flags().DurationVar(&flagTimeout, "timeout", 15*time.Second, "overall probe timeout")
}

func run(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), flagTimeout)
	defer cancel()

	info, err := dc.Probe(ctx, args[0], &dc.ProbeConfig{Name: flagName})
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(info)
}

func main() {
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
