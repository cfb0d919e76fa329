package main

import (
	"fmt"
	"os"

	"github.com/discoverlab/insight-map/cmd/extract/commands"
	"github.com/spf13/cobra"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "insight-extract",
		Short: "Offline tooling for the insight map API",
		Long:  "CLI tool for running transcript extractions and validating OKR files without the server",
	}

	rootCmd.AddCommand(commands.NewRunCmd())
	rootCmd.AddCommand(commands.NewOKRCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
