// Package main provides the entry point for csim.
// csim replays a memory-access trace against a set-associative cache and
// reports hits, misses and evictions.
package main

import (
	"fmt"
	"os"

	"github.com/tebeka/atexit"
)

func main() {
	cmd := newRootCommand(os.Stdout, os.Stderr)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "csim: %v\n", err)
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
