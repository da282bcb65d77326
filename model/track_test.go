package model

import "testing"

func TestIsEphemeral(t *testing.T) {
	cases := []struct {
		uri  string
		want bool
	}{
		{"content://media/external/audio/42", true},
		{"file:///music/song.mp3", false},
		{"http://example.com/stream.mp3", false},
		{"", false},
	}
	for _, tc := range cases {
		track := Track{URI: tc.uri}
		if got := track.IsEphemeral(); got != tc.want {
			t.Errorf("IsEphemeral(%q) = %v, want %v", tc.uri, got, tc.want)
		}
	}
}

func TestIsVideo(t *testing.T) {
	cases := []struct {
		mime string
		want bool
	}{
		{"video/mp4", true},
		{"video/webm", true},
		{"audio/mpeg", false},
		{"", false},
	}
	for _, tc := range cases {
		track := Track{MimeType: tc.mime}
		if got := track.IsVideo(); got != tc.want {
			t.Errorf("IsVideo(%q) = %v, want %v", tc.mime, got, tc.want)
		}
	}
}

func TestRepeatModeRoundTrip(t *testing.T) {
	for _, mode := range []RepeatMode{RepeatOff, RepeatOne, RepeatAll} {
		if got := ParseRepeatMode(mode.String()); got != mode {
			t.Errorf("ParseRepeatMode(%q) = %v, want %v", mode.String(), got, mode)
		}
	}
}

func TestParseRepeatModeUnknownFallsBack(t *testing.T) {
	if got := ParseRepeatMode("bogus"); got != RepeatOff {
		t.Errorf("ParseRepeatMode(bogus) = %v, want RepeatOff", got)
	}
	if got := ParseRepeatMode(""); got != RepeatOff {
		t.Errorf("ParseRepeatMode(empty) = %v, want RepeatOff", got)
	}
}

func TestPlaylistIsPrivate(t *testing.T) {
	if !(Playlist{Name: RecentPlaylist}).IsPrivate() {
		t.Error("recent playlist should be private")
	}
	if !(Playlist{Name: FavouritesPlaylist}).IsPrivate() {
		t.Error("favourites playlist should be private")
	}
	if (Playlist{Name: QueuePlaylist}).IsPrivate() {
		t.Error("queue playlist should not be private")
	}
	if (Playlist{Name: "road trip"}).IsPrivate() {
		t.Error("user playlist should not be private")
	}
}
