// Command penchy is PenchY's single binary: the same executable runs as
// the control node (penchy serve), is uploaded to and invoked on every
// remote node (penchy run), and drives the live status view (penchy
// status), grounded on the teacher's cli/main.go entrypoint.
package main

import (
	"os"

	"penchy/cli"
)

func main() {
	if err := cli.RootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
