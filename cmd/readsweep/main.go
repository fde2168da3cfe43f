// Package main provides the readsweep CLI tool for removing host reads
// from sequencing files with the kraken2 classifier.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
