package db

import (
	"database/sql"
	"fmt"
	"log"

	"playdeck/config"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
)

var DB *sql.DB

// ConnectDB establishes a connection to the database.
func ConnectDB(cfg *config.Config) error {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)

	var err error
	DB, err = sql.Open("mysql", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	if err = DB.Ping(); err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Successfully connected to the database.")
	return nil
}

// CloseDB closes the database connection.
func CloseDB() error {
	if DB != nil {
		return DB.Close()
	}
	return nil
}

// InitDB initializes the database schema, creating tables if they don't exist.
func InitDB() error {
	if err := createPlaylistsTable(); err != nil {
		return err
	}
	if err := createPlaylistTracksTable(); err != nil {
		return err
	}
	log.Println("Database initialization completed.")
	return nil
}

func createPlaylistsTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS playlists (
		id INT AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(255) NOT NULL UNIQUE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := DB.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create playlists table: %w", err)
	}
	return nil
}

func createPlaylistTracksTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS playlist_tracks (
		id INT AUTO_INCREMENT PRIMARY KEY,
		playlist_id INT NOT NULL,
		uri VARCHAR(767) NOT NULL,
		title VARCHAR(255),
		artist VARCHAR(255),
		album VARCHAR(255),
		artwork_uri VARCHAR(767),
		mime_type VARCHAR(127),
		play_order INT NOT NULL DEFAULT 0,
		CONSTRAINT fk_playlist_tracks FOREIGN KEY (playlist_id) REFERENCES playlists(id) ON DELETE CASCADE,
		INDEX idx_playlist_order (playlist_id, play_order)
	);
	`
	_, err := DB.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create playlist_tracks table: %w", err)
	}
	return nil
}
