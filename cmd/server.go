package cmd

import (
	"github.com/spf13/cobra"
	"meeting-recorder/config"
	server2 "meeting-recorder/server"
)

func server(config *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "start http server and meeting status consumer",
		Run: func(cmd *cobra.Command, args []string) {
			server2.RunHttp(config)
		},
	}
}
