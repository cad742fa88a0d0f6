package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "cansock",
	Short:        "SocketCAN swiss army tool",
	Long:         `Dump frames from a SocketCAN interface or send frames onto it.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

const (
	flagFilter      = "filter"
	flagJoinFilters = "join-filters"
	flagErrorMask   = "error-mask"
	flagTimeout     = "timeout"
	flagNoColor     = "no-color"
)
