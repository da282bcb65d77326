package repository

import (
	"errors"
	"fmt"

	"playdeck/model"

	"gorm.io/gorm"
)

// TrackRepository defines the interface for track library operations.
type TrackRepository interface {
	CreateTrack(track *model.Track) (int64, error)
	GetTrackByID(id int64) (*model.Track, error)
	GetTrackByURI(uri string) (*model.Track, error)
	GetAllTracks() ([]*model.Track, error)
	UpdateArtworkURI(trackID int64, artworkURI string) error
}

// gormTrackRepository implements TrackRepository with GORM.
type gormTrackRepository struct {
	db *gorm.DB
}

// NewGormTrackRepository creates a new instance of gormTrackRepository and
// migrates the track model.
func NewGormTrackRepository(db *gorm.DB) (TrackRepository, error) {
	if err := db.AutoMigrate(&model.Track{}); err != nil {
		return nil, fmt.Errorf("failed to migrate track model: %w", err)
	}
	return &gormTrackRepository{db: db}, nil
}

// CreateTrack adds a new track to the library.
func (r *gormTrackRepository) CreateTrack(track *model.Track) (int64, error) {
	if err := r.db.Create(track).Error; err != nil {
		return 0, fmt.Errorf("failed to create track %s: %w", track.URI, err)
	}
	return track.ID, nil
}

// GetTrackByID retrieves a track by its ID.
func (r *gormTrackRepository) GetTrackByID(id int64) (*model.Track, error) {
	track := &model.Track{}
	err := r.db.First(track, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil // Track not found
		}
		return nil, fmt.Errorf("failed to query track by ID %d: %w", id, err)
	}
	return track, nil
}

// GetTrackByURI retrieves a track by its source URI.
func (r *gormTrackRepository) GetTrackByURI(uri string) (*model.Track, error) {
	track := &model.Track{}
	err := r.db.Where("uri = ?", uri).First(track).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil // Track not found
		}
		return nil, fmt.Errorf("failed to query track by URI %s: %w", uri, err)
	}
	return track, nil
}

// GetAllTracks retrieves all tracks from the library.
func (r *gormTrackRepository) GetAllTracks() ([]*model.Track, error) {
	tracks := make([]*model.Track, 0)
	if err := r.db.Order("created_at DESC").Find(&tracks).Error; err != nil {
		return nil, fmt.Errorf("failed to query all tracks: %w", err)
	}
	return tracks, nil
}

// UpdateArtworkURI updates the artwork URI for a given track ID.
func (r *gormTrackRepository) UpdateArtworkURI(trackID int64, artworkURI string) error {
	err := r.db.Model(&model.Track{}).Where("id = ?", trackID).Update("artwork_uri", artworkURI).Error
	if err != nil {
		return fmt.Errorf("failed to update artwork for track ID %d: %w", trackID, err)
	}
	return nil
}
