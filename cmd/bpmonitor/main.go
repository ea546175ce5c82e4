// Package main is the entry point for bpmonitor. It serves the history API
// and offers one-shot commands that query the audit store directly.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

// Build-time variables set via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc1234"
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error:"), err)
		os.Exit(1)
	}
}
