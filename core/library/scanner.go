package library

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"playdeck/logger"
	"playdeck/model"
	"playdeck/repository"

	"github.com/dhowden/tag"
	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
)

var audioMimeByExt = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".flac": "audio/flac",
	".ogg":  "audio/ogg",
	".m4a":  "audio/mp4",
}

// IsAudioFile reports whether the path looks like a supported audio file.
func IsAudioFile(path string) bool {
	_, ok := audioMimeByExt[strings.ToLower(filepath.Ext(path))]
	return ok
}

// ArtworkStore receives embedded artwork blobs and returns the object path
// they are served from. Satisfied by storage.ArtworkStore.
type ArtworkStore interface {
	Put(ctx context.Context, name string, data []byte, contentType string) (string, error)
}

// Scanner ingests local audio files into the track library: a full walk at
// startup and an fsnotify watch for changes afterwards. Embedded artwork is
// copied to the artwork store when one is configured.
type Scanner struct {
	tracks   repository.TrackRepository
	artwork  ArtworkStore
	musicDir string
	watcher  *fsnotify.Watcher
}

// NewScanner creates a library scanner rooted at musicDir. artwork may be
// nil to skip artwork extraction.
func NewScanner(musicDir string, tracks repository.TrackRepository, artwork ArtworkStore) *Scanner {
	return &Scanner{
		tracks:   tracks,
		artwork:  artwork,
		musicDir: musicDir,
	}
}

// ScanAll walks the music directory and ingests every audio file not yet in
// the library. Returns the number of newly added tracks.
func (s *Scanner) ScanAll(ctx context.Context) (int, error) {
	added := 0
	err := filepath.Walk(s.musicDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if info.IsDir() || !IsAudioFile(path) {
			return nil
		}
		created, err := s.ingestFile(ctx, path)
		if err != nil {
			logger.Warn("failed to ingest audio file",
				logger.String("path", path), logger.ErrorField(err))
			return nil
		}
		if created {
			added++
		}
		return nil
	})
	if err != nil {
		return added, fmt.Errorf("failed to scan %s: %w", s.musicDir, err)
	}
	logger.Info("library scan complete",
		logger.String("dir", s.musicDir), logger.Int("added", added))
	return added, nil
}

// ingestFile reads the file's tags and inserts a library track when its URI
// is unseen. Reports whether a new track was created.
func (s *Scanner) ingestFile(ctx context.Context, path string) (bool, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false, fmt.Errorf("failed to resolve path %s: %w", path, err)
	}
	uri := "file://" + abs

	existing, err := s.tracks.GetTrackByURI(uri)
	if err != nil {
		return false, err
	}
	if existing != nil {
		if existing.ArtworkURI == "" && s.artwork != nil {
			s.backfillArtwork(ctx, path, existing)
		}
		return false, nil
	}

	track := &model.Track{
		URI:      uri,
		Title:    strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		MimeType: audioMimeByExt[strings.ToLower(filepath.Ext(path))],
	}

	f, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var picture *tag.Picture
	meta, err := tag.ReadFrom(f)
	if err != nil {
		// Untagged files still enter the library under their filename.
		logger.Debug("no readable tags", logger.String("path", path))
	} else {
		if title := meta.Title(); title != "" {
			track.Title = title
		}
		track.Artist = meta.Artist()
		track.Album = meta.Album()
		picture = meta.Picture()
	}

	if picture != nil && s.artwork != nil {
		artworkURI, err := s.storeArtwork(ctx, picture)
		if err != nil {
			logger.Warn("failed to store artwork",
				logger.String("path", path), logger.ErrorField(err))
		} else {
			track.ArtworkURI = artworkURI
		}
	}

	if _, err := s.tracks.CreateTrack(track); err != nil {
		return false, err
	}

	logger.Info("track added to library",
		logger.String("title", track.Title),
		logger.String("artist", track.Artist),
		logger.String("uri", uri))
	return true, nil
}

// backfillArtwork uploads embedded artwork for a track that entered the
// library without any, e.g. while the artwork store was unavailable.
func (s *Scanner) backfillArtwork(ctx context.Context, path string, track *model.Track) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	meta, err := tag.ReadFrom(f)
	if err != nil || meta.Picture() == nil {
		return
	}

	artworkURI, err := s.storeArtwork(ctx, meta.Picture())
	if err != nil {
		logger.Warn("failed to store artwork",
			logger.String("path", path), logger.ErrorField(err))
		return
	}
	if err := s.tracks.UpdateArtworkURI(track.ID, artworkURI); err != nil {
		logger.Warn("failed to backfill artwork",
			logger.String("uri", track.URI), logger.ErrorField(err))
	}
}

func (s *Scanner) storeArtwork(ctx context.Context, picture *tag.Picture) (string, error) {
	ext := picture.Ext
	if ext == "" {
		ext = "jpg"
	}
	name := fmt.Sprintf("%s.%s", uuid.New().String(), ext)
	return s.artwork.Put(ctx, name, picture.Data, picture.MIMEType)
}

// Watch monitors the music directory for new audio files until the context
// is cancelled. Directories created later are watched as they appear.
func (s *Scanner) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	s.watcher = watcher

	if err := s.addDirectory(s.musicDir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", s.musicDir, err)
	}

	go s.watchLoop(ctx)
	logger.Info("library watcher started", logger.String("dir", s.musicDir))
	return nil
}

func (s *Scanner) addDirectory(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return s.watcher.Add(path)
		}
		return nil
	})
}

func (s *Scanner) watchLoop(ctx context.Context) {
	defer s.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			s.handleEvent(ctx, event)

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			logger.Error("library watcher error", logger.ErrorField(err))
		}
	}
}

func (s *Scanner) handleEvent(ctx context.Context, event fsnotify.Event) {
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".tmp") {
		return
	}

	switch {
	case event.Has(fsnotify.Create) && IsAudioFile(event.Name):
		go func(path string) {
			// Give the writer a moment to finish the file.
			time.Sleep(500 * time.Millisecond)
			if _, err := s.ingestFile(ctx, path); err != nil {
				logger.Warn("failed to ingest new file",
					logger.String("path", path), logger.ErrorField(err))
			}
		}(event.Name)

	case event.Has(fsnotify.Create):
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := s.watcher.Add(event.Name); err != nil {
				logger.Warn("failed to watch new directory",
					logger.String("dir", event.Name), logger.ErrorField(err))
			}
		}
	}
}
