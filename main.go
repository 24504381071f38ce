// SPDX-License-Identifier: MIT
package main

import (
	"refmaster/cmd"
	applog "refmaster/internal/log"
	"refmaster/pkg/build"
)

func main() {
	// Development builds run without ldflags; keep going with "unknown".
	if err := build.Initialize(); err != nil {
		applog.Debugf("Build: %v", err)
	}

	if err := cmd.Execute(); err != nil {
		applog.Fatal(err)
	}
}
