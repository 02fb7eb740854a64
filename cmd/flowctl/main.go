package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/flowctl/flowctl/internal/config"
	"github.com/flowctl/flowctl/internal/debug"
	"github.com/flowctl/flowctl/internal/telemetry"
	"github.com/flowctl/flowctl/internal/ui"
)

var (
	jsonOutput  bool
	verboseFlag bool
	quietFlag   bool

	rootCtx    context.Context
	rootCancel context.CancelFunc
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "flowctl",
		Short: "flowctl - edit and validate workflow graphs",
		Long: `Fetch, edit, replace, and validate workflow graph definitions stored on the
workflow platform. Every write is guarded by the workflow's lock_version.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupSignalContext()
			applyVerbosityFlags()
			applyViperOverrides(cmd)
			ui.Init()
			if err := telemetry.Init(rootCtx, "flowctl", Version); err != nil {
				WarnError("telemetry disabled: %v", err)
			}
		},
	}

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose/debug output")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress non-essential output (errors only)")

	rootCmd.AddCommand(
		newGetGraphCmd(),
		newEditGraphCmd(),
		newUpdateGraphCmd(),
		newValidateGraphCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

// setupSignalContext creates a context that cancels on SIGINT/SIGTERM so
// in-flight requests and watches stop cleanly.
func setupSignalContext() {
	rootCtx, rootCancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func applyVerbosityFlags() {
	debug.SetVerbose(verboseFlag)
	debug.SetQuiet(quietFlag)
}

// applyViperOverrides lets config supply --json when the flag was not given.
func applyViperOverrides(cmd *cobra.Command) {
	if !cmd.Flags().Changed("json") {
		jsonOutput = config.GetBool(config.KeyJSON)
	}
}

// cleanup flushes telemetry and releases the signal context. It runs after
// every command, failed or not.
func cleanup() {
	telemetry.Shutdown(context.Background())
	if rootCancel != nil {
		rootCancel()
		rootCtx, rootCancel = nil, nil
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if rootCtx != nil {
		return rootCtx
	}
	return cmd.Context()
}

func init() {
	// .env is optional
	_ = godotenv.Load()

	if err := config.Initialize(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize config: %v\n", err)
	}
}

func main() {
	rootCmd := newRootCmd()
	err := rootCmd.Execute()
	cleanup()
	if err != nil {
		reportError(rootCmd.OutOrStdout(), rootCmd.ErrOrStderr(), err)
		os.Exit(1)
	}
}
