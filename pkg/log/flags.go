package log

import "github.com/spf13/cobra"

const (
	verbosityFlag = "verbosity"
	formatFlag    = "log-format"
	outputFlag    = "log-output"
)

// AddFlagsToCommand will add the logging flags to the supplied command.
func AddFlagsToCommand(cmd *cobra.Command, config *Config) {
	cmd.PersistentFlags().IntVarP(&config.Verbosity,
		verbosityFlag,
		"v",
		LogVerbosityInfo,
		"The verbosity level of the logging. A level of 2 and above is debug logging. A level of 9 and above is tracing.")

	cmd.PersistentFlags().StringVar(&config.Format,
		formatFlag,
		formatText,
		"The format of the logging output. Can be 'text' or 'json'.")

	cmd.PersistentFlags().StringVar(&config.Output,
		outputFlag,
		outputStderr,
		"The output for logging. Supply a file path or one of 'stderr'/'stdout'.")
}
