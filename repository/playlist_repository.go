package repository

import (
	"database/sql"
	"fmt"

	"playdeck/model"
)

// PlaylistRepository defines the interface for playlist data operations.
// Member tracks are always returned ordered by play_order ascending.
type PlaylistRepository interface {
	GetOrCreatePlaylist(name string) (*model.Playlist, error)
	ListPlaylists(includePrivate bool) ([]*model.Playlist, error)
	GetPlaylistTracks(name string) ([]*model.PlaylistTrack, error)
	ReplacePlaylistTracks(name string, tracks []model.Track) error
	AppendTrack(name string, track model.Track) error
	TrimPlaylist(name string, limit int) error
	FindTrackByURI(name, uri string) (*model.PlaylistTrack, error)
	RemoveTrackByURI(name, uri string) error
}

// mysqlPlaylistRepository implements PlaylistRepository for MySQL.
type mysqlPlaylistRepository struct {
	DB *sql.DB
}

// NewMySQLPlaylistRepository creates a new instance of mysqlPlaylistRepository.
func NewMySQLPlaylistRepository(db *sql.DB) PlaylistRepository {
	return &mysqlPlaylistRepository{DB: db}
}

// GetOrCreatePlaylist returns the playlist with the given name, creating it
// if it does not exist yet.
func (r *mysqlPlaylistRepository) GetOrCreatePlaylist(name string) (*model.Playlist, error) {
	playlist, err := r.getPlaylistByName(name)
	if err != nil {
		return nil, err
	}
	if playlist != nil {
		return playlist, nil
	}

	res, err := r.DB.Exec(`INSERT INTO playlists (name) VALUES (?)`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to create playlist %s: %w", name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert ID for playlist %s: %w", name, err)
	}
	return &model.Playlist{ID: id, Name: name}, nil
}

func (r *mysqlPlaylistRepository) getPlaylistByName(name string) (*model.Playlist, error) {
	row := r.DB.QueryRow(`SELECT id, name, created_at FROM playlists WHERE name = ?`, name)

	playlist := &model.Playlist{}
	err := row.Scan(&playlist.ID, &playlist.Name, &playlist.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Playlist not found
		}
		return nil, fmt.Errorf("failed to scan playlist %s: %w", name, err)
	}
	return playlist, nil
}

// ListPlaylists returns all playlists. Private playlists (name prefixed with
// ".") are excluded unless includePrivate is set.
func (r *mysqlPlaylistRepository) ListPlaylists(includePrivate bool) ([]*model.Playlist, error) {
	query := `SELECT id, name, created_at FROM playlists ORDER BY name ASC`
	if !includePrivate {
		query = `SELECT id, name, created_at FROM playlists WHERE name NOT LIKE '.%' ORDER BY name ASC`
	}

	rows, err := r.DB.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlists: %w", err)
	}
	defer rows.Close()

	playlists := make([]*model.Playlist, 0)
	for rows.Next() {
		playlist := &model.Playlist{}
		if err := rows.Scan(&playlist.ID, &playlist.Name, &playlist.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan playlist in ListPlaylists: %w", err)
		}
		playlists = append(playlists, playlist)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration in ListPlaylists: %w", err)
	}

	return playlists, nil
}

// GetPlaylistTracks returns the members of the named playlist ordered by
// play_order ascending. A missing playlist yields an empty slice.
func (r *mysqlPlaylistRepository) GetPlaylistTracks(name string) ([]*model.PlaylistTrack, error) {
	query := `SELECT pt.id, pt.playlist_id, pt.uri, pt.title, pt.artist, pt.album, pt.artwork_uri, pt.mime_type, pt.play_order
	           FROM playlist_tracks pt
	           JOIN playlists p ON p.id = pt.playlist_id
	           WHERE p.name = ? ORDER BY pt.play_order ASC`
	rows, err := r.DB.Query(query, name)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks for playlist %s: %w", name, err)
	}
	defer rows.Close()

	tracks := make([]*model.PlaylistTrack, 0)
	for rows.Next() {
		pt := &model.PlaylistTrack{}
		err := rows.Scan(&pt.ID, &pt.PlaylistID, &pt.URI, &pt.Title, &pt.Artist, &pt.Album, &pt.ArtworkURI, &pt.MimeType, &pt.PlayOrder)
		if err != nil {
			return nil, fmt.Errorf("failed to scan track in GetPlaylistTracks: %w", err)
		}
		tracks = append(tracks, pt)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration in GetPlaylistTracks: %w", err)
	}

	return tracks, nil
}

// ReplacePlaylistTracks overwrites the playlist membership with the given
// tracks, re-sequencing play_order densely from zero.
func (r *mysqlPlaylistRepository) ReplacePlaylistTracks(name string, tracks []model.Track) error {
	playlist, err := r.GetOrCreatePlaylist(name)
	if err != nil {
		return err
	}

	tx, err := r.DB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction for ReplacePlaylistTracks: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM playlist_tracks WHERE playlist_id = ?`, playlist.ID); err != nil {
		return fmt.Errorf("failed to clear playlist %s: %w", name, err)
	}

	stmt, err := tx.Prepare(`INSERT INTO playlist_tracks (playlist_id, uri, title, artist, album, artwork_uri, mime_type, play_order)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert for ReplacePlaylistTracks: %w", err)
	}
	defer stmt.Close()

	for i, track := range tracks {
		if _, err := stmt.Exec(playlist.ID, track.URI, track.Title, track.Artist, track.Album, track.ArtworkURI, track.MimeType, i); err != nil {
			return fmt.Errorf("failed to insert track %s into playlist %s: %w", track.URI, name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit ReplacePlaylistTracks: %w", err)
	}
	return nil
}

// AppendTrack adds a track to the end of the playlist at last order + 1.
func (r *mysqlPlaylistRepository) AppendTrack(name string, track model.Track) error {
	playlist, err := r.GetOrCreatePlaylist(name)
	if err != nil {
		return err
	}

	var lastOrder sql.NullInt64
	err = r.DB.QueryRow(`SELECT MAX(play_order) FROM playlist_tracks WHERE playlist_id = ?`, playlist.ID).Scan(&lastOrder)
	if err != nil {
		return fmt.Errorf("failed to query last play order for playlist %s: %w", name, err)
	}

	order := int64(0)
	if lastOrder.Valid {
		order = lastOrder.Int64 + 1
	}

	_, err = r.DB.Exec(`INSERT INTO playlist_tracks (playlist_id, uri, title, artist, album, artwork_uri, mime_type, play_order)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		playlist.ID, track.URI, track.Title, track.Artist, track.Album, track.ArtworkURI, track.MimeType, order)
	if err != nil {
		return fmt.Errorf("failed to append track %s to playlist %s: %w", track.URI, name, err)
	}
	return nil
}

// TrimPlaylist evicts the oldest entries until at most limit remain.
func (r *mysqlPlaylistRepository) TrimPlaylist(name string, limit int) error {
	playlist, err := r.getPlaylistByName(name)
	if err != nil || playlist == nil {
		return err
	}

	var count int
	err = r.DB.QueryRow(`SELECT COUNT(*) FROM playlist_tracks WHERE playlist_id = ?`, playlist.ID).Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to count tracks in playlist %s: %w", name, err)
	}

	if count <= limit {
		return nil
	}

	_, err = r.DB.Exec(`DELETE FROM playlist_tracks WHERE playlist_id = ? ORDER BY play_order ASC LIMIT ?`,
		playlist.ID, count-limit)
	if err != nil {
		return fmt.Errorf("failed to trim playlist %s: %w", name, err)
	}
	return nil
}

// FindTrackByURI returns the first member of the playlist with the given
// source URI, or nil if absent.
func (r *mysqlPlaylistRepository) FindTrackByURI(name, uri string) (*model.PlaylistTrack, error) {
	query := `SELECT pt.id, pt.playlist_id, pt.uri, pt.title, pt.artist, pt.album, pt.artwork_uri, pt.mime_type, pt.play_order
	           FROM playlist_tracks pt
	           JOIN playlists p ON p.id = pt.playlist_id
	           WHERE p.name = ? AND pt.uri = ? LIMIT 1`
	row := r.DB.QueryRow(query, name, uri)

	pt := &model.PlaylistTrack{}
	err := row.Scan(&pt.ID, &pt.PlaylistID, &pt.URI, &pt.Title, &pt.Artist, &pt.Album, &pt.ArtworkURI, &pt.MimeType, &pt.PlayOrder)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Track not in playlist
		}
		return nil, fmt.Errorf("failed to scan track %s in playlist %s: %w", uri, name, err)
	}
	return pt, nil
}

// RemoveTrackByURI removes all members of the playlist with the given URI.
func (r *mysqlPlaylistRepository) RemoveTrackByURI(name, uri string) error {
	playlist, err := r.getPlaylistByName(name)
	if err != nil {
		return err
	}
	if playlist == nil {
		return nil
	}

	_, err = r.DB.Exec(`DELETE FROM playlist_tracks WHERE playlist_id = ? AND uri = ?`, playlist.ID, uri)
	if err != nil {
		return fmt.Errorf("failed to remove track %s from playlist %s: %w", uri, name, err)
	}
	return nil
}
