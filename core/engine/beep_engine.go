package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"playdeck/core/player"
	"playdeck/logger"
	"playdeck/model"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/wav"
)

const defaultSampleRate = beep.SampleRate(44100)

// BeepEngine renders local audio files through the beep speaker. It owns
// the live timeline and emits tagged player events to its sink. Events are
// delivered from the goroutine performing the mutation, one at a time.
type BeepEngine struct {
	mu sync.Mutex

	sink player.EventSink

	timeline []model.Track
	order    []int // playback order while shuffle is on
	shuffle  bool
	repeat   model.RepeatMode
	index    int
	playing  bool

	initialized bool
	sessionID   int32
	streamer    beep.StreamSeekCloser
	format      beep.Format
	ctrl        *beep.Ctrl
	volume      *effects.Volume
	gen         uint64 // load generation; stale completion callbacks are ignored

	eqEnabled bool
	eqGainDB  float64

	failStreak int
}

// NewBeepEngine creates an idle engine. The speaker is initialized lazily
// on the first load, since it is the only genuinely expensive resource.
func NewBeepEngine() *BeepEngine {
	return &BeepEngine{index: -1}
}

// SetEventSink registers the event receiver.
func (e *BeepEngine) SetEventSink(sink player.EventSink) {
	e.mu.Lock()
	e.sink = sink
	e.mu.Unlock()
}

func (e *BeepEngine) emit(evs ...player.Event) {
	e.mu.Lock()
	sink := e.sink
	e.mu.Unlock()
	if sink == nil {
		return
	}
	for _, ev := range evs {
		sink(ev)
	}
}

// ensureSpeaker initializes the audio output once and assigns the audio
// session identity. Returns the session-changed event on first init.
func (e *BeepEngine) ensureSpeaker() (player.Event, bool, error) {
	if e.initialized {
		return player.Event{}, false, nil
	}
	if err := speaker.Init(defaultSampleRate, defaultSampleRate.N(time.Second/10)); err != nil {
		return player.Event{}, false, fmt.Errorf("failed to initialize speaker: %w", err)
	}
	e.initialized = true
	e.sessionID = int32(time.Now().Unix() & 0x7fffffff)
	return player.Event{Type: player.EventAudioSessionChanged, SessionID: e.sessionID}, true, nil
}

func openStreamer(track model.Track) (beep.StreamSeekCloser, beep.Format, error) {
	path := strings.TrimPrefix(track.URI, "file://")
	f, err := os.Open(path)
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("failed to open media source %s: %w", track.URI, err)
	}

	switch {
	case track.MimeType == "audio/mpeg" || strings.EqualFold(filepath.Ext(path), ".mp3"):
		streamer, format, err := mp3.Decode(f)
		if err != nil {
			f.Close()
			return nil, beep.Format{}, fmt.Errorf("failed to decode mp3 %s: %w", track.URI, err)
		}
		return streamer, format, nil
	case track.MimeType == "audio/wav" || strings.EqualFold(filepath.Ext(path), ".wav"):
		streamer, format, err := wav.Decode(f)
		if err != nil {
			f.Close()
			return nil, beep.Format{}, fmt.Errorf("failed to decode wav %s: %w", track.URI, err)
		}
		return streamer, format, nil
	default:
		f.Close()
		return nil, beep.Format{}, fmt.Errorf("unsupported media type %s for %s", track.MimeType, track.URI)
	}
}

// loadLocked prepares the timeline entry at index. Must be called with the
// lock held; returns events to emit after unlocking.
func (e *BeepEngine) loadLocked(index int, positionMs int64) ([]player.Event, error) {
	var events []player.Event

	sessionEv, emitSession, err := e.ensureSpeaker()
	if err != nil {
		return nil, err
	}
	if emitSession {
		events = append(events, sessionEv)
	}

	if index < 0 || index >= len(e.timeline) {
		return events, fmt.Errorf("timeline index %d out of range", index)
	}
	track := e.timeline[index]

	e.stopLocked()

	streamer, format, err := openStreamer(track)
	if err != nil {
		return events, err
	}

	e.streamer = streamer
	e.format = format
	e.index = index
	e.gen++
	gen := e.gen

	if positionMs > 0 {
		if err := streamer.Seek(format.SampleRate.N(time.Duration(positionMs) * time.Millisecond)); err != nil {
			logger.Warn("failed to seek restored position", logger.ErrorField(err))
		}
	}

	resampled := beep.Resample(4, format.SampleRate, defaultSampleRate, streamer)
	e.volume = &effects.Volume{Streamer: resampled, Base: 2, Volume: 0, Silent: false}
	e.applyEqLocked()
	e.ctrl = &beep.Ctrl{Streamer: e.volume, Paused: !e.playing}

	speaker.Play(beep.Seq(e.ctrl, beep.Callback(func() {
		// Advancing from the completion callback must not block the
		// speaker goroutine.
		go e.onTrackComplete(gen)
	})))

	e.failStreak = 0
	events = append(events, player.Event{Type: player.EventTrackTransition, Index: index})
	return events, nil
}

func (e *BeepEngine) stopLocked() {
	if e.ctrl != nil {
		speaker.Lock()
		e.ctrl.Paused = true
		speaker.Unlock()
	}
	if e.streamer != nil {
		e.streamer.Close()
		e.streamer = nil
	}
	e.ctrl = nil
	e.volume = nil
}

// applyEqLocked maps the equalizer state onto the master volume stage.
func (e *BeepEngine) applyEqLocked() {
	if e.volume == nil {
		return
	}
	if e.eqEnabled {
		e.volume.Volume = e.eqGainDB / 6.0 // base-2 volume steps approximate 6 dB each
	} else {
		e.volume.Volume = 0
	}
}

// onTrackComplete advances playback when the current streamer drains.
func (e *BeepEngine) onTrackComplete(gen uint64) {
	e.mu.Lock()
	if gen != e.gen || !e.playing {
		e.mu.Unlock()
		return
	}
	next, wrapped := e.nextIndexLocked(1, true)
	if next < 0 || (wrapped && e.repeat != model.RepeatAll) {
		e.playing = false
		e.mu.Unlock()
		e.emit(player.Event{Type: player.EventPlayStateChanged, Playing: false})
		return
	}
	events, err := e.loadLocked(next, 0)
	e.mu.Unlock()

	e.emit(events...)
	if err != nil {
		e.emit(player.Event{Type: player.EventPlaybackError, Index: next, Err: err})
	}
}

// nextIndexLocked resolves the timeline index one step away in playback
// order, honoring shuffle. Repeat-one pins the index only for automatic
// advancement; explicit skips always move. The second result reports
// wrap-around past the end.
func (e *BeepEngine) nextIndexLocked(step int, auto bool) (int, bool) {
	n := len(e.timeline)
	if n == 0 {
		return -1, false
	}
	if auto && e.repeat == model.RepeatOne {
		return e.index, false
	}

	if e.shuffle && len(e.order) == n {
		pos := 0
		for i, v := range e.order {
			if v == e.index {
				pos = i
				break
			}
		}
		pos += step
		wrapped := pos >= n || pos < 0
		pos = ((pos % n) + n) % n
		return e.order[pos], wrapped
	}

	idx := e.index + step
	wrapped := idx >= n || idx < 0
	idx = ((idx % n) + n) % n
	return idx, wrapped
}

// SetTimeline replaces the full timeline and prepares the entry at
// startIndex seeked to positionMs.
func (e *BeepEngine) SetTimeline(tracks []model.Track, startIndex int, positionMs int64) {
	e.mu.Lock()
	e.timeline = make([]model.Track, len(tracks))
	copy(e.timeline, tracks)
	if len(e.order) != len(e.timeline) {
		e.order = nil
	}

	events := []player.Event{{Type: player.EventTimelineChanged}}
	var loadErr error
	if len(e.timeline) == 0 {
		e.stopLocked()
		e.index = -1
	} else {
		if startIndex < 0 || startIndex >= len(e.timeline) {
			startIndex = 0
			positionMs = 0
		}
		loadEvents, err := e.loadLocked(startIndex, positionMs)
		events = append(events, loadEvents...)
		loadErr = err
	}
	index := e.index
	e.mu.Unlock()

	e.emit(events...)
	if loadErr != nil {
		e.emit(player.Event{Type: player.EventPlaybackError, Index: index, Err: loadErr})
	}
}

// AddTracks appends tracks to the timeline.
func (e *BeepEngine) AddTracks(tracks []model.Track) {
	e.mu.Lock()
	e.timeline = append(e.timeline, tracks...)
	e.order = nil
	e.mu.Unlock()
	e.emit(player.Event{Type: player.EventTimelineChanged})
}

// RemoveTrack removes the timeline entry at index.
func (e *BeepEngine) RemoveTrack(index int) {
	e.mu.Lock()
	if index < 0 || index >= len(e.timeline) {
		e.mu.Unlock()
		return
	}
	e.timeline = append(e.timeline[:index], e.timeline[index+1:]...)
	e.order = nil

	var events []player.Event
	var loadErr error
	if index < e.index {
		e.index--
	} else if index == e.index {
		e.stopLocked()
		if e.index >= len(e.timeline) {
			e.index = len(e.timeline) - 1
		}
		if e.playing && e.index >= 0 {
			events, loadErr = e.loadLocked(e.index, 0)
		} else if len(e.timeline) == 0 {
			e.playing = false
			events = append(events, player.Event{Type: player.EventPlayStateChanged, Playing: false})
		}
	}
	e.mu.Unlock()

	e.emit(player.Event{Type: player.EventTimelineChanged})
	e.emit(events...)
	if loadErr != nil {
		e.emit(player.Event{Type: player.EventPlaybackError, Err: loadErr})
	}
}

// MoveTrack reorders the timeline.
func (e *BeepEngine) MoveTrack(from, to int) {
	e.mu.Lock()
	n := len(e.timeline)
	if from < 0 || from >= n || to < 0 || to >= n || from == to {
		e.mu.Unlock()
		return
	}
	track := e.timeline[from]
	e.timeline = append(e.timeline[:from], e.timeline[from+1:]...)
	e.timeline = append(e.timeline[:to], append([]model.Track{track}, e.timeline[to:]...)...)
	e.order = nil
	if e.index == from {
		e.index = to
	} else if from < e.index && to >= e.index {
		e.index--
	} else if from > e.index && to <= e.index {
		e.index++
	}
	e.mu.Unlock()
	e.emit(player.Event{Type: player.EventTimelineChanged})
}

// Play starts or resumes playback.
func (e *BeepEngine) Play() {
	e.mu.Lock()
	if e.playing {
		e.mu.Unlock()
		return
	}
	e.playing = true

	var events []player.Event
	var loadErr error
	if e.ctrl == nil && len(e.timeline) > 0 {
		idx := e.index
		if idx < 0 {
			idx = 0
		}
		events, loadErr = e.loadLocked(idx, 0)
	}
	if e.ctrl != nil {
		speaker.Lock()
		e.ctrl.Paused = false
		speaker.Unlock()
	}
	e.mu.Unlock()

	e.emit(events...)
	e.emit(player.Event{Type: player.EventPlayStateChanged, Playing: true})
	if loadErr != nil {
		e.emit(player.Event{Type: player.EventPlaybackError, Err: loadErr})
	}
}

// Pause suspends playback.
func (e *BeepEngine) Pause() {
	e.mu.Lock()
	if !e.playing {
		e.mu.Unlock()
		return
	}
	e.playing = false
	if e.ctrl != nil {
		speaker.Lock()
		e.ctrl.Paused = true
		speaker.Unlock()
	}
	e.mu.Unlock()
	e.emit(player.Event{Type: player.EventPlayStateChanged, Playing: false})
}

// SeekTo seeks to a timeline index and position.
func (e *BeepEngine) SeekTo(index int, positionMs int64) {
	e.mu.Lock()
	if index < 0 || index >= len(e.timeline) {
		e.mu.Unlock()
		return
	}
	var events []player.Event
	var err error
	if index == e.index && e.streamer != nil {
		speaker.Lock()
		err = e.streamer.Seek(e.format.SampleRate.N(time.Duration(positionMs) * time.Millisecond))
		speaker.Unlock()
	} else {
		events, err = e.loadLocked(index, positionMs)
	}
	e.mu.Unlock()

	e.emit(events...)
	if err != nil {
		e.emit(player.Event{Type: player.EventPlaybackError, Index: index, Err: err})
	}
}

func (e *BeepEngine) step(delta int) {
	e.mu.Lock()
	next, _ := e.nextIndexLocked(delta, false)
	if next < 0 {
		e.mu.Unlock()
		return
	}
	e.failStreak++
	if e.failStreak > len(e.timeline) {
		// Every entry failed in turn; stop advancing instead of spinning.
		e.playing = false
		e.failStreak = 0
		e.mu.Unlock()
		e.emit(player.Event{Type: player.EventPlayStateChanged, Playing: false})
		return
	}
	events, err := e.loadLocked(next, 0)
	e.mu.Unlock()

	e.emit(events...)
	if err != nil {
		e.emit(player.Event{Type: player.EventPlaybackError, Index: next, Err: err})
	}
}

// Next advances to the next entry in playback order.
func (e *BeepEngine) Next() { e.step(1) }

// Previous returns to the previous entry in playback order.
func (e *BeepEngine) Previous() { e.step(-1) }

// SetShuffleEnabled installs the shuffle permutation.
func (e *BeepEngine) SetShuffleEnabled(enabled bool, order []int) {
	e.mu.Lock()
	e.shuffle = enabled
	if order != nil && len(order) == len(e.timeline) {
		e.order = make([]int, len(order))
		copy(e.order, order)
	} else if !enabled {
		e.order = nil
	}
	e.mu.Unlock()
	e.emit(player.Event{Type: player.EventShuffleChanged, Shuffle: enabled})
}

// SetRepeatMode sets the repeat mode.
func (e *BeepEngine) SetRepeatMode(mode model.RepeatMode) {
	e.mu.Lock()
	e.repeat = mode
	e.mu.Unlock()
	e.emit(player.Event{Type: player.EventRepeatChanged, Repeat: mode})
}

// Timeline returns a copy of the live timeline.
func (e *BeepEngine) Timeline() []model.Track {
	e.mu.Lock()
	defer e.mu.Unlock()
	tracks := make([]model.Track, len(e.timeline))
	copy(tracks, e.timeline)
	return tracks
}

// CurrentIndex returns the current timeline index, -1 when idle.
func (e *BeepEngine) CurrentIndex() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.index
}

// PositionMs returns the playback position of the current entry.
func (e *BeepEngine) PositionMs() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.streamer == nil {
		return 0
	}
	speaker.Lock()
	pos := e.streamer.Position()
	speaker.Unlock()
	return e.format.SampleRate.D(pos).Milliseconds()
}

// IsPlaying reports whether playback is active.
func (e *BeepEngine) IsPlaying() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playing
}

// ShuffleEnabled reports whether shuffle mode is on.
func (e *BeepEngine) ShuffleEnabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.shuffle
}

// RepeatMode returns the current repeat mode.
func (e *BeepEngine) RepeatMode() model.RepeatMode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.repeat
}

// AudioSessionID returns the output session identity, zero before the
// speaker exists.
func (e *BeepEngine) AudioSessionID() int32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sessionID
}

// Release stops playback and frees the decoder.
func (e *BeepEngine) Release() {
	e.mu.Lock()
	e.playing = false
	e.stopLocked()
	e.mu.Unlock()
}

// gainSettings is the equalizer settings blob understood by this engine.
type gainSettings struct {
	GainDB float64 `json:"gainDb"`
}

// volumeEffect adapts the engine's master volume stage to the audio-effect
// interface used by the equalizer controller.
type volumeEffect struct {
	engine *BeepEngine
}

// EffectFactory returns a factory binding effects to this engine's audio
// session. Construction fails while no session exists or for a foreign
// session identity.
func (e *BeepEngine) EffectFactory() player.EffectFactory {
	return func(sessionID int32) (player.AudioEffect, error) {
		e.mu.Lock()
		defer e.mu.Unlock()
		if !e.initialized || e.sessionID != sessionID {
			return nil, fmt.Errorf("no audio session %d", sessionID)
		}
		return &volumeEffect{engine: e}, nil
	}
}

func (v *volumeEffect) SetEnabled(enabled bool) error {
	e := v.engine
	e.mu.Lock()
	e.eqEnabled = enabled
	speaker.Lock()
	e.applyEqLocked()
	speaker.Unlock()
	e.mu.Unlock()
	return nil
}

func (v *volumeEffect) ApplySettings(settings string) error {
	var gs gainSettings
	if err := json.Unmarshal([]byte(settings), &gs); err != nil {
		return fmt.Errorf("failed to parse equalizer settings: %w", err)
	}
	e := v.engine
	e.mu.Lock()
	e.eqGainDB = gs.GainDB
	speaker.Lock()
	e.applyEqLocked()
	speaker.Unlock()
	e.mu.Unlock()
	return nil
}

func (v *volumeEffect) Release() {
	e := v.engine
	e.mu.Lock()
	e.eqEnabled = false
	speaker.Lock()
	e.applyEqLocked()
	speaker.Unlock()
	e.mu.Unlock()
}
