package main

import (
	"fmt"
	"os"

	"github.com/benvon/habitflow/cmd/configure/commands"
	"github.com/spf13/cobra"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "habitflow-configure",
		Short: "Configuration tool for HabitFlow API",
		Long:  "CLI tool for configuring rate limits, streak engine settings and other operator knobs",
	}

	rootCmd.AddCommand(commands.NewRatelimitCmd())
	rootCmd.AddCommand(commands.NewEngineCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
