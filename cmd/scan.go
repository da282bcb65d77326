package cmd

import (
	"context"
	"fmt"
	"log"

	"playdeck/config"
	"playdeck/core/library"
	"playdeck/db"
	"playdeck/repository"
	"playdeck/storage"

	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the music directory into the library",
	Long:  `Walk the configured music directory once and ingest any audio files missing from the track library, then exit.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		initLogging(cfg)

		if err := storage.InitMinio(cfg); err != nil {
			log.Printf("minio unavailable, artwork disabled: %v", err)
		}
		if err := db.ConnectGormDB(cfg); err != nil {
			log.Fatalf("failed to connect database: %v", err)
		}
		defer db.CloseGormDB()

		tracks, err := repository.NewGormTrackRepository(db.GormDB)
		if err != nil {
			log.Fatalf("failed to initialize track repository: %v", err)
		}

		var artwork library.ArtworkStore
		if store := storage.NewArtworkStore(cfg.MinioBucket); store != nil {
			artwork = store
		}
		scanner := library.NewScanner(cfg.MusicDir, tracks, artwork)
		added, err := scanner.ScanAll(context.Background())
		if err != nil {
			log.Fatalf("scan failed: %v", err)
		}
		fmt.Printf("scan complete, %d new tracks\n", added)
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
}
