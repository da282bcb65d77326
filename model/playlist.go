package model

import "time"

// Reserved playlist names. Names starting with PrivatePlaylistPrefix are
// maintained by the service itself and hidden from user-facing listings.
const (
	PrivatePlaylistPrefix = "."

	QueuePlaylist      = "queue"
	RecentPlaylist     = ".recent"
	FavouritesPlaylist = ".favourites"
)

// Playlist is a named, ordered collection of playlist entries.
type Playlist struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// IsPrivate reports whether the playlist is hidden from general listing.
func (p Playlist) IsPrivate() bool {
	return len(p.Name) > 0 && p.Name[:1] == PrivatePlaylistPrefix
}

// PlaylistTrack is one member of a playlist. PlayOrder values are monotonic
// non-decreasing within a playlist; they are re-sequenced densely whenever
// the queue playlist is saved, and otherwise appended at last order + 1.
type PlaylistTrack struct {
	ID         int64  `json:"id"`
	PlaylistID int64  `json:"playlistId"`
	URI        string `json:"uri"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Album      string `json:"album"`
	ArtworkURI string `json:"artworkUri"`
	MimeType   string `json:"mimeType"`
	PlayOrder  int    `json:"playOrder"`
}

// Track converts a playlist entry back into a playable track descriptor.
func (pt PlaylistTrack) Track() Track {
	return Track{
		URI:        pt.URI,
		Title:      pt.Title,
		Artist:     pt.Artist,
		Album:      pt.Album,
		ArtworkURI: pt.ArtworkURI,
		MimeType:   pt.MimeType,
	}
}
