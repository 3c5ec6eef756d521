package main

import (
	"os"

	"github.com/quillcart/priceindex/cmd/priceindex/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
