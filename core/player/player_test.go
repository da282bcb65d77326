package player

import (
	"fmt"
	"sync"

	"playdeck/model"
)

// fakeEngine is an in-process render engine for tests. It tracks state and
// emits the same events the real engine would, without touching audio.
type fakeEngine struct {
	mu   sync.Mutex
	sink EventSink

	timeline   []model.Track
	index      int
	positionMs int64
	playing    bool
	shuffle    bool
	order      []int
	repeat     model.RepeatMode
	sessionID  int32

	setTimelineCalls int
	pauseCalls       int
	nextCalls        int
	released         bool
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{index: -1}
}

func (e *fakeEngine) emit(ev Event) {
	e.mu.Lock()
	sink := e.sink
	e.mu.Unlock()
	if sink != nil {
		sink(ev)
	}
}

func (e *fakeEngine) SetEventSink(sink EventSink) {
	e.mu.Lock()
	e.sink = sink
	e.mu.Unlock()
}

func (e *fakeEngine) SetTimeline(tracks []model.Track, startIndex int, positionMs int64) {
	e.mu.Lock()
	e.timeline = append([]model.Track(nil), tracks...)
	e.index = startIndex
	e.positionMs = positionMs
	e.setTimelineCalls++
	e.mu.Unlock()
	e.emit(Event{Type: EventTimelineChanged})
	if len(tracks) > 0 {
		e.emit(Event{Type: EventTrackTransition, Index: startIndex})
	}
}

func (e *fakeEngine) AddTracks(tracks []model.Track) {
	e.mu.Lock()
	e.timeline = append(e.timeline, tracks...)
	e.mu.Unlock()
	e.emit(Event{Type: EventTimelineChanged})
}

func (e *fakeEngine) RemoveTrack(index int) {
	e.mu.Lock()
	if index >= 0 && index < len(e.timeline) {
		e.timeline = append(e.timeline[:index], e.timeline[index+1:]...)
	}
	e.mu.Unlock()
	e.emit(Event{Type: EventTimelineChanged})
}

func (e *fakeEngine) MoveTrack(from, to int) {
	e.emit(Event{Type: EventTimelineChanged})
}

func (e *fakeEngine) Play() {
	e.mu.Lock()
	e.playing = true
	e.mu.Unlock()
	e.emit(Event{Type: EventPlayStateChanged, Playing: true})
}

func (e *fakeEngine) Pause() {
	e.mu.Lock()
	e.playing = false
	e.pauseCalls++
	e.mu.Unlock()
	e.emit(Event{Type: EventPlayStateChanged, Playing: false})
}

func (e *fakeEngine) SeekTo(index int, positionMs int64) {
	e.mu.Lock()
	changed := index != e.index
	e.index = index
	e.positionMs = positionMs
	e.mu.Unlock()
	if changed {
		e.emit(Event{Type: EventTrackTransition, Index: index})
	}
}

func (e *fakeEngine) Next() {
	e.mu.Lock()
	e.nextCalls++
	if e.index < len(e.timeline)-1 {
		e.index++
	}
	idx := e.index
	e.mu.Unlock()
	e.emit(Event{Type: EventTrackTransition, Index: idx})
}

func (e *fakeEngine) Previous() {
	e.mu.Lock()
	if e.index > 0 {
		e.index--
	}
	idx := e.index
	e.mu.Unlock()
	e.emit(Event{Type: EventTrackTransition, Index: idx})
}

func (e *fakeEngine) SetShuffleEnabled(enabled bool, order []int) {
	e.mu.Lock()
	e.shuffle = enabled
	e.order = append([]int(nil), order...)
	e.mu.Unlock()
	e.emit(Event{Type: EventShuffleChanged, Shuffle: enabled})
}

func (e *fakeEngine) SetRepeatMode(mode model.RepeatMode) {
	e.mu.Lock()
	e.repeat = mode
	e.mu.Unlock()
	e.emit(Event{Type: EventRepeatChanged, Repeat: mode})
}

func (e *fakeEngine) Timeline() []model.Track {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]model.Track(nil), e.timeline...)
}

func (e *fakeEngine) CurrentIndex() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.index
}

func (e *fakeEngine) PositionMs() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.positionMs
}

func (e *fakeEngine) IsPlaying() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playing
}

func (e *fakeEngine) ShuffleEnabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.shuffle
}

func (e *fakeEngine) RepeatMode() model.RepeatMode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.repeat
}

func (e *fakeEngine) AudioSessionID() int32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sessionID
}

func (e *fakeEngine) Release() {
	e.mu.Lock()
	e.released = true
	e.playing = false
	e.mu.Unlock()
}

// fakePlaylists is an in-memory playlist repository for tests.
type fakePlaylists struct {
	mu         sync.Mutex
	lists      map[string][]model.Track
	appendErrs map[string]error
}

func newFakePlaylists() *fakePlaylists {
	return &fakePlaylists{
		lists:      make(map[string][]model.Track),
		appendErrs: make(map[string]error),
	}
}

func (f *fakePlaylists) tracks(name string) []model.Track {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Track(nil), f.lists[name]...)
}

func (f *fakePlaylists) GetOrCreatePlaylist(name string) (*model.Playlist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.lists[name]; !ok {
		f.lists[name] = nil
	}
	return &model.Playlist{ID: 1, Name: name}, nil
}

func (f *fakePlaylists) ListPlaylists(includePrivate bool) ([]*model.Playlist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Playlist
	for name := range f.lists {
		p := &model.Playlist{Name: name}
		if !includePrivate && p.IsPrivate() {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (f *fakePlaylists) GetPlaylistTracks(name string) ([]*model.PlaylistTrack, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*model.PlaylistTrack, 0, len(f.lists[name]))
	for i, t := range f.lists[name] {
		out = append(out, &model.PlaylistTrack{
			ID:         int64(i + 1),
			URI:        t.URI,
			Title:      t.Title,
			Artist:     t.Artist,
			Album:      t.Album,
			ArtworkURI: t.ArtworkURI,
			MimeType:   t.MimeType,
			PlayOrder:  i,
		})
	}
	return out, nil
}

func (f *fakePlaylists) ReplacePlaylistTracks(name string, tracks []model.Track) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists[name] = append([]model.Track(nil), tracks...)
	return nil
}

func (f *fakePlaylists) AppendTrack(name string, track model.Track) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.appendErrs[name]; err != nil {
		return err
	}
	f.lists[name] = append(f.lists[name], track)
	return nil
}

func (f *fakePlaylists) TrimPlaylist(name string, limit int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if limit < 0 {
		limit = 0
	}
	if excess := len(f.lists[name]) - limit; excess > 0 {
		f.lists[name] = append([]model.Track(nil), f.lists[name][excess:]...)
	}
	return nil
}

func (f *fakePlaylists) FindTrackByURI(name, uri string) (*model.PlaylistTrack, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, t := range f.lists[name] {
		if t.URI == uri {
			return &model.PlaylistTrack{ID: int64(i + 1), URI: t.URI, PlayOrder: i}, nil
		}
	}
	return nil, nil
}

func (f *fakePlaylists) RemoveTrackByURI(name, uri string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, t := range f.lists[name] {
		if t.URI == uri {
			f.lists[name] = append(f.lists[name][:i], f.lists[name][i+1:]...)
			return nil
		}
	}
	return nil
}

func audioTrack(n int) model.Track {
	return model.Track{
		URI:      fmt.Sprintf("file:///music/track%d.mp3", n),
		Title:    fmt.Sprintf("Track %d", n),
		MimeType: "audio/mpeg",
	}
}
