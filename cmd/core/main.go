// Package main provides the GanApp sync core library entry point.
// The core is platform-agnostic and is normally embedded in a host
// application; this binary exists as a version probe for packaging.
package main

import (
	"fmt"
	"runtime"
)

// Version is set at build time
var Version = "0.1.0"

func main() {
	fmt.Printf("GanApp Sync Core v%s (%s/%s)\n", Version, runtime.GOOS, runtime.GOARCH)
	fmt.Println("Offline-first sync core library. Run cmd/desktop for the local bridge.")
}
