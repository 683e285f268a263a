// Command adc-client is a demo line-oriented ADC chat client: it
// connects to a single hub, prints every incoming chat message as a
// JSON line on stdout, and sends each line read from stdin as a chat
// message to the hub's main room.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/udoprog/go-adc/adc"
	"github.com/udoprog/go-adc/adc/client"
	"github.com/udoprog/go-adc/adc/types"
)

var flagName string

var root = &cobra.Command{
	Use:   "adc-client <adc://host:port>",
	Short: "connect to an ADC hub and relay chat as JSON lines",
	Args:  cobra.ExactArgs(1),
	RunE:  run,
}

func init() {
	root.Flags().StringVar(&flagName, "name", "adc-client", "nickname to present to the hub")
}

// chatEvent is one line of the JSON-line event stream written to stdout.
type chatEvent struct {
	Type string `json:"type"`
	From string `json:"from,omitempty"`
	Text string `json:"text,omitempty"`
}

func run(cmd *cobra.Command, args []string) error {
	enc := json.NewEncoder(os.Stdout)

	events := client.Events{
		Message: func(c *client.Conn, from types.SID, text string, pm bool) {
			enc.Encode(chatEvent{Type: "message", From: from.String(), Text: text})
		},
		UserInfo: func(c *client.Conn, p *client.Peer) {
			enc.Encode(chatEvent{Type: "user-info", From: p.SID().String()})
		},
		UserQuit: func(c *client.Conn, sid types.SID) {
			enc.Encode(chatEvent{Type: "user-quit", From: sid.String()})
		},
		ConnectionLost: func(c *client.Conn, err error) {
			msg := ""
			if err != nil {
				msg = err.Error()
			}
			enc.Encode(chatEvent{Type: "disconnected", Text: msg})
		},
	}

	conf := &client.Config{
		PID:        client.GeneratePID(),
		Name:       flagName,
		Extensions: adc.NewFeatureSet(),
		Events:     &events,
	}

	conn, err := client.DialHub(args[0], conf)
	if err != nil {
		return err
	}
	defer conn.Close()

	enc.Encode(chatEvent{Type: "connected"})

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		text := scanner.Text()
		if text == "" {
			continue
		}
		if err := conn.SendChat(text, types.SID{}); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func main() {
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
