package player

import (
	"context"
	"sync"
	"time"

	"playdeck/cache"
	"playdeck/logger"
	"playdeck/model"
	"playdeck/repository"
)

// Notifier pushes user-facing notices and state updates to connected
// controllers.
type Notifier interface {
	Notify(event string, payload interface{})
}

// Config tunes the playback service.
type Config struct {
	// MonitorInterval is the cadence of the checkpoint loop. Defaults to 5s.
	MonitorInterval time.Duration
	// RecentLimit caps the recent-tracks playlist. Defaults to 50 and may be
	// overridden by the persisted recent-limit key.
	RecentLimit int
}

// Status is a snapshot of the playback state for remote controllers.
type Status struct {
	Index         int          `json:"index"`
	PositionMs    int64        `json:"positionMs"`
	Playing       bool         `json:"playing"`
	Shuffle       bool         `json:"shuffle"`
	Repeat        string       `json:"repeat"`
	QueueLength   int          `json:"queueLength"`
	SleepDeadline int64        `json:"sleepDeadline"`
	Favourite     bool         `json:"favourite"`
	Track         *model.Track `json:"track,omitempty"`
}

// Service owns the in-memory playback state aggregate (queue, flags, sleep
// deadline) and reconciles it with the durable stores as engine events
// arrive. All mutation happens on the event-delivery sequence; persistence
// is fired off to goroutines and never blocks that path.
type Service struct {
	mu sync.Mutex

	engine    Engine
	queue     *Queue
	store     cache.StateStore
	playlists repository.PlaylistRepository
	eq        *Equalizer
	notifier  Notifier

	interval    time.Duration
	recentLimit int

	sleepDeadline int64 // unix ms, 0 = unset; never persisted
	favourite     bool  // favourite membership of the current track
	mon           *monitor

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService wires a playback service around the given collaborators and
// registers itself as the engine's event sink.
func NewService(engine Engine, store cache.StateStore, playlists repository.PlaylistRepository, eq *Equalizer, notifier Notifier, cfg Config) *Service {
	if cfg.MonitorInterval <= 0 {
		cfg.MonitorInterval = 5 * time.Second
	}
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = 50
	}
	if eq == nil {
		eq = NewEqualizer(nil)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		engine:      engine,
		queue:       NewQueue(),
		store:       store,
		playlists:   playlists,
		eq:          eq,
		notifier:    notifier,
		interval:    cfg.MonitorInterval,
		recentLimit: cfg.RecentLimit,
		ctx:         ctx,
		cancel:      cancel,
	}
	engine.SetEventSink(s.HandleEvent)
	return s
}

// async runs a persistence task on the service's task group without
// blocking the event-delivery path. Overlapping writes to the same key are
// last-writer-wins.
func (s *Service) async(fn func(ctx context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn(s.ctx)
	}()
}

// Flush waits for all pending persistence tasks. Used at teardown and by
// tests that need to observe write effects.
func (s *Service) Flush() {
	s.wg.Wait()
}

// HandleEvent is the single entry point for engine events. Events arrive
// one at a time; handlers must not block on I/O.
func (s *Service) HandleEvent(ev Event) {
	switch ev.Type {
	case EventTrackTransition:
		s.onTrackTransition(ev.Index)
	case EventTimelineChanged:
		s.onTimelineChanged()
	case EventShuffleChanged:
		s.onShuffleChanged(ev.Shuffle)
	case EventRepeatChanged:
		repeat := ev.Repeat.String()
		s.async(func(ctx context.Context) {
			if err := s.store.SetString(ctx, cache.KeyRepeat, repeat); err != nil {
				logger.Warn("failed to persist repeat mode", logger.ErrorField(err))
			}
		})
	case EventPlayStateChanged:
		if ev.Playing {
			s.startMonitor()
		} else {
			s.stopMonitor()
		}
	case EventAudioSessionChanged:
		sessionID := ev.SessionID
		s.async(func(ctx context.Context) {
			enabled := s.store.GetBool(ctx, cache.KeyEqualizerEnabled, false)
			settings := s.store.GetString(ctx, cache.KeyEqualizerSettings, "")
			s.eq.Attach(sessionID, enabled, settings)
		})
	case EventPlaybackError:
		s.onPlaybackError(ev)
	}
}

// onTrackTransition checkpoints the new index, refreshes the favourite flag
// and appends the track to the recent playlist, subject to the history
// filtering rules.
func (s *Service) onTrackTransition(index int) {
	track, ok := s.queue.TrackAt(index)

	s.async(func(ctx context.Context) {
		if err := s.store.SetInt(ctx, cache.KeyIndex, index); err != nil {
			logger.Warn("failed to persist queue index", logger.ErrorField(err))
		}
		if err := s.store.SetInt64(ctx, cache.KeyBookmark, 0); err != nil {
			logger.Warn("failed to persist bookmark", logger.ErrorField(err))
		}
	})

	if !ok {
		return
	}

	s.async(func(ctx context.Context) {
		s.refreshFavourite(track)
	})

	// Video play history is deliberately not tracked, and ephemeral sources
	// would be unresolvable by the time the history is read back.
	if track.IsEphemeral() || track.IsVideo() {
		return
	}

	s.async(func(ctx context.Context) {
		if err := s.playlists.AppendTrack(model.RecentPlaylist, track); err != nil {
			logger.Warn("failed to append recent track", logger.String("uri", track.URI), logger.ErrorField(err))
			return
		}
		limit := s.store.GetInt(ctx, cache.KeyRecentLimit, s.recentLimit)
		if err := s.playlists.TrimPlaylist(model.RecentPlaylist, limit); err != nil {
			logger.Warn("failed to trim recent playlist", logger.ErrorField(err))
		}
	})

	if s.notifier != nil {
		s.notifier.Notify("trackTransition", track)
	}
}

func (s *Service) refreshFavourite(track model.Track) {
	pt, err := s.playlists.FindTrackByURI(model.FavouritesPlaylist, track.URI)
	if err != nil {
		logger.Warn("failed to look up favourite membership", logger.ErrorField(err))
		return
	}
	s.mu.Lock()
	s.favourite = pt != nil
	s.mu.Unlock()
}

// onTimelineChanged reconciles the in-memory queue with the engine timeline
// and overwrites the durable queue playlist and the shuffle-order key.
// Fires only on structure changes, keeping position-only updates cheap.
func (s *Service) onTimelineChanged() {
	tracks := s.engine.Timeline()
	s.queue.SetTracks(tracks)

	persistable := s.queue.PersistableTracks()
	orderStr := s.queue.EncodeShuffleOrder()

	s.async(func(ctx context.Context) {
		if err := s.playlists.ReplacePlaylistTracks(model.QueuePlaylist, persistable); err != nil {
			logger.Warn("failed to persist queue playlist", logger.ErrorField(err))
		}
		if err := s.store.SetString(ctx, cache.KeyShuffleOrder, orderStr); err != nil {
			logger.Warn("failed to persist shuffle order", logger.ErrorField(err))
		}
	})
}

func (s *Service) onShuffleChanged(enabled bool) {
	orderStr := s.queue.EncodeShuffleOrder()
	s.async(func(ctx context.Context) {
		if err := s.store.SetBool(ctx, cache.KeyShuffle, enabled); err != nil {
			logger.Warn("failed to persist shuffle flag", logger.ErrorField(err))
		}
		if err := s.store.SetString(ctx, cache.KeyShuffleOrder, orderStr); err != nil {
			logger.Warn("failed to persist shuffle order", logger.ErrorField(err))
		}
	})
}

// onPlaybackError handles an unsupported-media report from the engine: the
// error is surfaced to controllers and playback auto-advances, never
// propagating to the caller.
func (s *Service) onPlaybackError(ev Event) {
	logger.Error("playback error, skipping to next track", logger.ErrorField(ev.Err))
	if s.notifier != nil {
		msg := "playback failed"
		if ev.Err != nil {
			msg = ev.Err.Error()
		}
		s.notifier.Notify("playbackError", map[string]string{"message": msg})
	}
	s.engine.Next()
}

// Restore rebuilds playback state from the durable stores. Malformed or
// unsupported state is logged and discarded; playback then starts from
// empty/default state rather than failing.
func (s *Service) Restore(ctx context.Context) {
	s.recentLimit = s.store.GetInt(ctx, cache.KeyRecentLimit, s.recentLimit)

	shuffle := s.store.GetBool(ctx, cache.KeyShuffle, false)
	repeat := model.ParseRepeatMode(s.store.GetString(ctx, cache.KeyRepeat, "off"))
	s.engine.SetRepeatMode(repeat)

	entries, err := s.playlists.GetPlaylistTracks(model.QueuePlaylist)
	if err != nil {
		logger.Warn("failed to load persisted queue, starting empty", logger.ErrorField(err))
		return
	}

	tracks := make([]model.Track, 0, len(entries))
	for _, entry := range entries {
		track := entry.Track()
		if track.IsVideo() {
			// A persisted queue holding video content is unsupported for
			// background restore; reject it wholesale.
			logger.Warn("persisted queue contains video content, rejecting restore",
				logger.String("uri", track.URI))
			return
		}
		tracks = append(tracks, track)
	}
	if len(tracks) == 0 {
		return
	}

	index := s.store.GetInt(ctx, cache.KeyIndex, -1)
	bookmark := s.store.GetInt64(ctx, cache.KeyBookmark, 0)

	// An ephemeral third-party source is unplayable after restart; evict it
	// from the restored queue instead of handing it to the engine.
	if index >= 0 && index < len(tracks) && tracks[index].IsEphemeral() {
		logger.Warn("evicting ephemeral track from restored queue",
			logger.String("uri", tracks[index].URI))
		tracks = append(tracks[:index], tracks[index+1:]...)
		bookmark = 0
		if len(tracks) == 0 {
			return
		}
		if index >= len(tracks) {
			index = len(tracks) - 1
		}
	}
	if index < 0 || index >= len(tracks) {
		index = 0
		bookmark = 0
	}

	s.queue.SetTracks(tracks)

	order, err := DecodeShuffleOrder(s.store.GetString(ctx, cache.KeyShuffleOrder, ""), len(tracks))
	if err != nil {
		order = s.queue.GenerateShuffleOrder()
	} else if err := s.queue.SetShuffleOrder(order); err != nil {
		order = s.queue.GenerateShuffleOrder()
	}

	s.engine.SetTimeline(tracks, index, bookmark)
	s.engine.SetShuffleEnabled(shuffle, order)

	logger.Info("playback state restored",
		logger.Int("tracks", len(tracks)),
		logger.Int("index", index),
		logger.Int64("bookmarkMs", bookmark),
		logger.Bool("shuffle", shuffle))
}

// ScheduleSleepTimer overwrites the sleep deadline when target is nonzero
// and always returns the current deadline. A zero target only queries.
func (s *Service) ScheduleSleepTimer(target int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if target != 0 {
		s.sleepDeadline = target
	}
	return s.sleepDeadline
}

// ToggleFavourite flips the current track's membership in the favourites
// playlist. The in-memory flag is updated only when the write succeeds, so
// memory and storage cannot drift on a failed write.
func (s *Service) ToggleFavourite() (bool, error) {
	index := s.engine.CurrentIndex()
	track, ok := s.queue.TrackAt(index)
	if !ok {
		s.mu.Lock()
		fav := s.favourite
		s.mu.Unlock()
		return fav, nil
	}

	existing, err := s.playlists.FindTrackByURI(model.FavouritesPlaylist, track.URI)
	if err != nil {
		return s.currentFavourite(), err
	}

	if existing != nil {
		if err := s.playlists.RemoveTrackByURI(model.FavouritesPlaylist, track.URI); err != nil {
			return s.currentFavourite(), err
		}
		s.setFavourite(false)
		return false, nil
	}

	if err := s.playlists.AppendTrack(model.FavouritesPlaylist, track); err != nil {
		return s.currentFavourite(), err
	}
	s.setFavourite(true)
	return true, nil
}

func (s *Service) currentFavourite() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.favourite
}

func (s *Service) setFavourite(fav bool) {
	s.mu.Lock()
	s.favourite = fav
	s.mu.Unlock()
}

// SetShuffle toggles shuffle mode, generating a fresh permutation when
// enabling.
func (s *Service) SetShuffle(enabled bool) {
	var order []int
	if enabled {
		order = s.queue.GenerateShuffleOrder()
	}
	s.engine.SetShuffleEnabled(enabled, order)
}

// SetRepeat sets the repeat mode on the engine.
func (s *Service) SetRepeat(mode model.RepeatMode) {
	s.engine.SetRepeatMode(mode)
}

// Play starts or resumes playback.
func (s *Service) Play() { s.engine.Play() }

// Pause suspends playback.
func (s *Service) Pause() { s.engine.Pause() }

// Next advances to the next queue entry.
func (s *Service) Next() { s.engine.Next() }

// Previous returns to the previous queue entry.
func (s *Service) Previous() { s.engine.Previous() }

// SeekTo seeks to a queue index and position.
func (s *Service) SeekTo(index int, positionMs int64) { s.engine.SeekTo(index, positionMs) }

// SetQueue replaces the live timeline with the given tracks.
func (s *Service) SetQueue(tracks []model.Track, startIndex int) {
	s.engine.SetTimeline(tracks, startIndex, 0)
}

// AddTracks appends tracks to the live timeline.
func (s *Service) AddTracks(tracks []model.Track) { s.engine.AddTracks(tracks) }

// RemoveTrack removes the timeline entry at index.
func (s *Service) RemoveTrack(index int) { s.engine.RemoveTrack(index) }

// MoveTrack reorders the timeline.
func (s *Service) MoveTrack(from, to int) { s.engine.MoveTrack(from, to) }

// Queue returns the in-memory queue mirror.
func (s *Service) Queue() *Queue { return s.queue }

// AudioSessionID exposes the engine's audio session identity.
func (s *Service) AudioSessionID() int32 { return s.engine.AudioSessionID() }

// Status returns a snapshot of the playback state.
func (s *Service) Status() Status {
	index := s.engine.CurrentIndex()
	st := Status{
		Index:       index,
		PositionMs:  s.engine.PositionMs(),
		Playing:     s.engine.IsPlaying(),
		Shuffle:     s.engine.ShuffleEnabled(),
		Repeat:      s.engine.RepeatMode().String(),
		QueueLength: s.queue.Len(),
	}
	if track, ok := s.queue.TrackAt(index); ok {
		st.Track = &track
	}
	s.mu.Lock()
	st.SleepDeadline = s.sleepDeadline
	st.Favourite = s.favourite
	s.mu.Unlock()
	return st
}

// Close tears the service down: the task group is cancelled, pending writes
// drain, and the engine, the session notifier and the audio effect are
// released in that order.
func (s *Service) Close() {
	s.mu.Lock()
	mon := s.mon
	s.mon = nil
	s.mu.Unlock()
	if mon != nil {
		mon.cancel()
		<-mon.done
	}

	s.cancel()
	s.wg.Wait()

	s.engine.Release()
	if closer, ok := s.notifier.(interface{ Close() }); ok {
		closer.Close()
	}
	s.eq.Release()
}
