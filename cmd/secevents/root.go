package main

import (
	"os"

	"github.com/spf13/cobra"

	"secevents/internal/domain"
)

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           "secevents",
		Short:         "Forward security events to a console, file or log collector",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", getEnv("SECEVENTS_CONFIG", "secevents.yaml"), "path to config file")
	root.PersistentFlags().StringVar(&opts.profile, "profile", os.Getenv("SECEVENTS_PROFILE"), "profile name; selects the default checkpoint directory")
	root.PersistentFlags().StringVar(&opts.checkpointURL, "checkpoint-url", "", "checkpoint store URL (file://, sqlite://, postgres://, mem://)")
	root.PersistentFlags().StringVar(&opts.apiURL, "api-url", "", "security event API base URL")
	root.PersistentFlags().BoolVarP(&opts.debug, "debug", "d", false, "enable debug logging")

	for _, kind := range domain.Kinds() {
		root.AddCommand(newKindCmd(kind, opts))
	}

	return root
}

func newKindCmd(kind domain.Kind, opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   string(kind),
		Short: "Search and forward " + string(kind),
	}

	cmd.AddCommand(
		newSearchCmd(kind, opts),
		newWriteToCmd(kind, opts),
		newSendToCmd(kind, opts),
		newClearCheckpointCmd(kind, opts),
	)
	return cmd
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
