// h2probe is a small command-line client for exercising a Transport by
// hand: dial a server, watch its lifecycle callbacks, and fire pings or
// single-message streams at it.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:          "h2probe",
		Short:        "Probe an HTTP/2 RPC transport by hand",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			verbose, err := cmd.Flags().GetBool("verbose")
			if err != nil {
				return err
			}
			level := zerolog.InfoLevel
			if verbose {
				level = zerolog.DebugLevel
			}
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).
				Level(level).
				With().Str("run_id", runID[:8]).Logger()
			return nil
		},
	}

	// runID labels every log line from this invocation so output from
	// concurrent h2probe runs against the same server can be told apart.
	runID = uuid.New().String()
)

func init() {
	rootCmd.PersistentFlags().Bool("verbose", false, "log at debug level")
	rootCmd.AddCommand(dialCmd, pingCmd, streamCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
