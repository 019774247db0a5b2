package main

import (
	"os"

	"github.com/venturegraph/venturegraph/cmd/venturegraph"
)

func main() {
	if err := venturegraph.Execute(); err != nil {
		os.Exit(1)
	}
}
