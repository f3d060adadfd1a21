// Package cmd wires the harness commands.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/miaoti/trainticket-fuzz/internal/logger"
)

var (
	cfgFile  string
	logLevel string
	logJSON  bool

	log *logger.Logger

	// exitCode distinguishes a clean run (0) from one that completed with
	// warnings (2). Fatal errors exit 1.
	exitCode int
)

var rootCmd = &cobra.Command{
	Use:   "ttfuzz",
	Short: "Black-box fuzzing harness for the TrainTicket fault-injection benchmark",
	Long: `ttfuzz drives an external black-box API fuzzer against a TrainTicket
deployment with injected faults, then classifies the generated test
artifacts against the catalog of known fault signatures and writes a
detection report.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		var err error
		log, err = logger.New(logLevel, logJSON)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "harness config file (default ./harness.yaml if present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "emit logs as JSON")
}

// Execute runs the command tree and returns the process exit code.
func Execute() int {

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if log != nil {
			log.Errorf("%v", err)
		} else {
			fmt.Fprintln(os.Stderr, "ERROR:", err)
		}
		return 1
	}

	return exitCode
}
