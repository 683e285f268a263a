// Command tth-sum prints the Tiger-Tree Hash of one or more files, in
// the style of sha256sum: one "<tth>  <path>" line per argument.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/udoprog/go-adc/tiger"
)

var root = &cobra.Command{
	Use:   "tth-sum <file>...",
	Short: "print the Tiger-Tree Hash of one or more files",
	Args:  cobra.MinimumNArgs(1),
	RunE:  run,
}

func run(cmd *cobra.Command, args []string) error {
	status := 0
	for _, path := range args {
		f, err := os.Open(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "tth-sum: %v\n", err)
			status = 2
			continue
		}
		tree, err := tiger.BuildTree(f)
		f.Close()
		if err != nil {
			fmt.Fprintf(os.Stderr, "tth-sum: %s: %v\n", path, err)
			status = 2
			continue
		}
		fmt.Printf("%s  %s\n", tree.Base32(), path)
	}
	if status != 0 {
		os.Exit(status)
	}
	return nil
}

func main() {
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
