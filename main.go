// Package main provides the entry point for csim.
// csim is a set-associative cache simulator driven by memory-access traces.
//
// For the full CLI, use: go run ./cmd/csim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("csim - set-associative cache simulator")
	fmt.Println("")
	fmt.Println("Usage: csim [options] <s> <E> <b> <trace>")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -s, -E, -b  cache geometry (2^s sets, E lines, 2^b-byte blocks)")
	fmt.Println("  -t          trace file")
	fmt.Println("  -c          JSON or YAML run configuration")
	fmt.Println("  -v          print the outcome of every access")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/csim --help' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/csim' instead.")
	}
}
