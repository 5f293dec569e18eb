// Command cartctl inspects and edits device carts in the configured store and drives
// checkouts from the command line.
package main

import (
	"fmt"
	"os"
)

func main() {
	cli := newCLI(os.Stdout)
	defer cli.close()

	if err := cli.command().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cli.close()
		os.Exit(1)
	}
}
