package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"postboard/internal/config"
	"postboard/internal/format"
)

type rootOptions struct {
	jsonOutput   bool
	outputFormat string
	logLevel     string
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "postboard",
		Short:         "Postboard is a small post board with voting and image attachments",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return prepareRun(cmd, cfg, opts)
		},
	}

	cmd.Version = version
	cmd.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "output JSON")
	cmd.PersistentFlags().StringVarP(&opts.outputFormat, "output", "o", "", "structured output format (json or yaml)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	cmd.AddCommand(
		newSrvCmd(cfg),
		newCreateCmd(cfg, &opts.jsonOutput),
		newListCmd(cfg, &opts.jsonOutput),
		newShowCmd(cfg, &opts.jsonOutput),
		newVoteCmd(cfg, &opts.jsonOutput),
		newImageCmd(cfg),
		newInfoCmd(cfg, &opts.jsonOutput),
		newMigrateCmd(cfg, &opts.jsonOutput),
		newConfigCmd(cfg),
	)

	return cmd
}

// prepareRun configures the default logger and the structured output format.
// --output implies structured output.
func prepareRun(cmd *cobra.Command, cfg *config.Config, opts *rootOptions) error {
	warning, err := configureLoggerForCLI(opts.logLevel, cfg.LogLevel)
	if err != nil {
		return err
	}
	if warning != "" {
		fmt.Fprintln(os.Stderr, warning)
	}

	if opts.outputFormat == "" {
		return nil
	}
	formatter, err := format.New(opts.outputFormat)
	if err != nil {
		return err
	}
	outputFormatter = formatter
	opts.jsonOutput = true
	return nil
}
