package cmd

import (
	"fmt"
	"os"

	"playdeck/config"
	"playdeck/logger"
	"playdeck/server"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "playdeck",
	Short: "playdeck is a headless music playback daemon.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		initLogging(cfg)
		server.Start(cfg)
	},
}

func initLogging(cfg *config.Config) {
	logger.InitLogger(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogPath,
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     cfg.LogMaxAge,
		Compress:   true,
	})
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
