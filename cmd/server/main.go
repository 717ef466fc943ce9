// Package main is the entry point for the comref API server.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/CVC-DAG/comref-converter/pkg/api"
)

func main() {
	port := flag.Int("port", 8080, "Server port")
	flag.Parse()

	fmt.Printf("Starting comref API server on port %d...\n", *port)

	if err := api.StartServer(*port); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}
