// GanApp sync diagnostics CLI.
//
// ganappctl drives a running desktop bridge over its localhost API and
// can read a device database directly when the bridge is down.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
