package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "chatarc",
		Short:   "Chat Archiver - export, revise, and search conversation archives",
		Version: version,
	}

	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(reviseCmd())
	rootCmd.AddCommand(reviewCmd())
	rootCmd.AddCommand(catalogCmd())
	rootCmd.AddCommand(searchCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(previewCmd())
	rootCmd.AddCommand(openCmd())
	rootCmd.AddCommand(doctorCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
