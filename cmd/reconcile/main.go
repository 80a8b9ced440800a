package main

import (
	"fmt"
	"os"
	"roombook/di"
	"roombook/shared/logger"

	"github.com/spf13/cobra"
)

func main() {
	logger.InitLogger()

	rootCmd := &cobra.Command{
		Use:          "reconcile",
		Short:        "Inspect and settle payments that could not be reversed automatically",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String("operator", "", "Name recorded as modified_by on the case")

	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(retryCmd())
	rootCmd.AddCommand(resolveCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(watchCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func toolkit() (*di.ReconcileToolkit, error) {
	kit, err := di.InitializeReconcileToolkit()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize reconciliation toolkit: %w", err)
	}

	logger.InitLoggerForEnv(kit.Config)
	logger.SetLogLevel(kit.Config)

	return kit, nil
}
