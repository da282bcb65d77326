package cmd

import (
	"playdeck/config"
	"playdeck/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the playback daemon",
	Long:  `Start the playback daemon: restores persisted playback state, scans the music library and serves the control API.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		initLogging(cfg)
		server.Start(cfg)
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
