package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"meeting-recorder/config"
	"meeting-recorder/pkg/apperr"
)

func Root(config *config.Config) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "meeting-recorder",
		Short:        "record meetings and hand them off for processing",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(server(config))
	rootCmd.AddCommand(record(config))
	rootCmd.AddCommand(meetings(config))
	return rootCmd
}

// userError prefixes err with the notice a user should see for it.
func userError(err error) error {
	return fmt.Errorf("%s (%w)", apperr.Message(err), err)
}
