package player

import (
	"playdeck/model"
)

// EventType tags a player event emitted by the render engine.
type EventType int

const (
	// EventTrackTransition fires when the engine moves to another timeline entry.
	EventTrackTransition EventType = iota
	// EventShuffleChanged fires when shuffle mode is toggled.
	EventShuffleChanged
	// EventRepeatChanged fires when the repeat mode changes.
	EventRepeatChanged
	// EventTimelineChanged fires when the timeline structure changes
	// (add/remove/reorder/replace), not on position-only updates.
	EventTimelineChanged
	// EventPlayStateChanged fires when playback starts or stops.
	EventPlayStateChanged
	// EventAudioSessionChanged fires when the engine's audio session
	// identity changes.
	EventAudioSessionChanged
	// EventPlaybackError fires when the engine fails to render the
	// current source.
	EventPlaybackError
)

// Event is a tagged player event. Only the fields relevant to the event
// type are populated. Events are delivered one at a time, in order.
type Event struct {
	Type      EventType
	Index     int
	Shuffle   bool
	Repeat    model.RepeatMode
	Playing   bool
	SessionID int32
	Err       error
}

// EventSink receives engine events.
type EventSink func(Event)

// Engine is the render engine boundary: the component that decodes and
// outputs audio from a media source. Implementations must deliver events
// to the sink sequentially, never concurrently.
type Engine interface {
	// SetEventSink registers the event receiver. Must be called before
	// any other method.
	SetEventSink(sink EventSink)

	// SetTimeline replaces the full timeline and prepares the entry at
	// startIndex, seeked to positionMs. Emits a timeline-changed event
	// and, if the current entry changed, a track transition.
	SetTimeline(tracks []model.Track, startIndex int, positionMs int64)
	AddTracks(tracks []model.Track)
	RemoveTrack(index int)
	MoveTrack(from, to int)

	Play()
	Pause()
	SeekTo(index int, positionMs int64)
	Next()
	Previous()

	// SetShuffleEnabled installs the playback order permutation used when
	// shuffle is on. The order must be a permutation of timeline indices.
	SetShuffleEnabled(enabled bool, order []int)
	SetRepeatMode(mode model.RepeatMode)

	Timeline() []model.Track
	CurrentIndex() int
	PositionMs() int64
	IsPlaying() bool
	ShuffleEnabled() bool
	RepeatMode() model.RepeatMode

	// AudioSessionID identifies the engine's current output session.
	// Zero means no session exists yet.
	AudioSessionID() int32

	// Release stops playback and frees the engine's resources.
	Release()
}
