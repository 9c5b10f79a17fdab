package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "smallplates",
	Short: "Wedding recipe collection and cookbook production backend",
	Long: `smallplates serves the guest collection links, the host dashboard API
and the operations back-office.

Configuration is read from config.yaml and SMALLPLATES_* environment variables.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, createAdminCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
