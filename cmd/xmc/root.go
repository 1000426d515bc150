package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xmc-aalto/dismecpp-sub001/internal/obslog"
)

// globalFlags holds the persistent root-level flags shared by every
// subcommand.
type globalFlags struct {
	verbose  bool
	jsonLogs bool
	logLevel string
	useNUMA  bool
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{useNUMA: true}

	root := &cobra.Command{
		Use:           "xmc",
		Short:         "Train and apply DiSMEC-family extreme multi-label classifiers",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().BoolVar(&flags.verbose, "verbose", false, "enable debug-level logging")
	root.PersistentFlags().BoolVar(&flags.jsonLogs, "json", false, "emit structured logs as JSON instead of console text")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "log level override: debug, info, warn, error")
	root.PersistentFlags().BoolVar(&flags.useNUMA, "numa", true, "enable NUMA-aware thread pinning and data replication")
	root.PersistentFlags().Bool("no-numa", false, "disable NUMA-aware thread pinning and data replication (overrides --numa)")

	root.AddCommand(newTrainCommand(flags))
	root.AddCommand(newPredictCommand(flags))

	return root
}

func (f *globalFlags) logger() *zap.Logger {
	verbose := f.verbose || f.logLevel == "debug"
	logger := obslog.New(verbose, f.jsonLogs)

	switch f.logLevel {
	case "warn":
		return logger.WithOptions(zap.IncreaseLevel(zap.WarnLevel))
	case "error":
		return logger.WithOptions(zap.IncreaseLevel(zap.ErrorLevel))
	}

	return logger
}

func (f *globalFlags) numaEnabled(cmd *cobra.Command) bool {
	if noNUMA := cmd.Flag("no-numa"); noNUMA != nil && noNUMA.Value.String() == "true" {
		return false
	}

	return f.useNUMA
}
