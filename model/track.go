package model

import (
	"strings"
	"time"
)

// EphemeralURIPrefix marks media handed over by third-party content
// providers. Such URIs stop resolving once the providing process is gone,
// so tracks carrying them are never persisted and are evicted on restore.
const EphemeralURIPrefix = "content://"

// Track represents an audio track known to the library.
// A track is immutable once created; queues and playlists reference it by URI.
type Track struct {
	ID         int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	URI        string    `json:"uri" gorm:"size:767;uniqueIndex"`
	Title      string    `json:"title" gorm:"size:255"`
	Artist     string    `json:"artist" gorm:"size:255"`
	Album      string    `json:"album" gorm:"size:255"`
	ArtworkURI string    `json:"artworkUri" gorm:"size:767"`
	MimeType   string    `json:"mimeType" gorm:"size:127"`
	DurationMs int64     `json:"durationMs"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// IsEphemeral reports whether the track's source is a third-party content
// provider that will not survive a process restart.
func (t Track) IsEphemeral() bool {
	return strings.HasPrefix(t.URI, EphemeralURIPrefix)
}

// IsVideo reports whether the track is video content. Video is deliberately
// excluded from play history.
func (t Track) IsVideo() bool {
	return strings.HasPrefix(t.MimeType, "video/")
}

// RepeatMode represents the repeat behavior of the player.
type RepeatMode int

const (
	RepeatOff RepeatMode = iota
	RepeatOne
	RepeatAll
)

// String returns the persisted form of the repeat mode.
func (m RepeatMode) String() string {
	switch m {
	case RepeatOne:
		return "one"
	case RepeatAll:
		return "all"
	default:
		return "off"
	}
}

// ParseRepeatMode maps a persisted string back to a RepeatMode.
// Unknown values fall back to RepeatOff.
func ParseRepeatMode(s string) RepeatMode {
	switch s {
	case "one":
		return RepeatOne
	case "all":
		return RepeatAll
	default:
		return RepeatOff
	}
}
