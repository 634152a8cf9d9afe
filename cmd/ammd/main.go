package main

import (
	"fmt"
	"os"

	"github.com/cloo-solutions/amm/internal/cli"
	"github.com/cloo-solutions/amm/internal/cli/admin"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ammd",
		Short: "Adaptive memory module daemon",
		Long:  "Runs an adaptive memory module design: serves it over HTTP, chats with it locally, or previews its knowledge chunks",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.PersistentFlags().StringP("design", "d", "", "Path to the design YAML (overrides AMM_DESIGN_PATH)")
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.RunCmd())
	rootCmd.AddCommand(admin.ChunkCmd())
	rootCmd.AddCommand(admin.MigrateCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
