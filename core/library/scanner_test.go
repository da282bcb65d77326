package library

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"playdeck/model"
)

type memTrackRepo struct {
	mu     sync.Mutex
	byURI  map[string]*model.Track
	nextID int64
}

func newMemTrackRepo() *memTrackRepo {
	return &memTrackRepo{byURI: make(map[string]*model.Track)}
}

func (r *memTrackRepo) CreateTrack(track *model.Track) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	track.ID = r.nextID
	copied := *track
	r.byURI[track.URI] = &copied
	return track.ID, nil
}

func (r *memTrackRepo) GetTrackByID(id int64) (*model.Track, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.byURI {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, nil
}

func (r *memTrackRepo) GetTrackByURI(uri string) (*model.Track, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byURI[uri], nil
}

func (r *memTrackRepo) GetAllTracks() ([]*model.Track, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.Track, 0, len(r.byURI))
	for _, t := range r.byURI {
		out = append(out, t)
	}
	return out, nil
}

func (r *memTrackRepo) UpdateArtworkURI(trackID int64, artworkURI string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.byURI {
		if t.ID == trackID {
			t.ArtworkURI = artworkURI
		}
	}
	return nil
}

// fakeArtworkStore records uploads without touching object storage.
type fakeArtworkStore struct {
	mu   sync.Mutex
	puts int
}

func (f *fakeArtworkStore) Put(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts++
	return "artwork/" + name, nil
}

// writeMP3WithArtwork writes an mp3 carrying a minimal ID3v2.3 tag whose only
// frame is an APIC picture.
func writeMP3WithArtwork(t *testing.T, path string) {
	t.Helper()

	payload := []byte{0x00} // ISO-8859-1 text encoding
	payload = append(payload, []byte("image/jpeg")...)
	payload = append(payload, 0x00)                   // mime terminator
	payload = append(payload, 0x03)                   // picture type: front cover
	payload = append(payload, 0x00)                   // empty description
	payload = append(payload, 0xFF, 0xD8, 0xFF, 0xE0) // picture bytes

	var buf bytes.Buffer
	buf.WriteString("ID3")
	buf.Write([]byte{0x03, 0x00, 0x00})
	tagSize := 10 + len(payload)
	buf.Write([]byte{ // syncsafe tag size
		byte(tagSize>>21) & 0x7F, byte(tagSize>>14) & 0x7F,
		byte(tagSize>>7) & 0x7F, byte(tagSize) & 0x7F,
	})
	buf.WriteString("APIC")
	n := len(payload)
	buf.Write([]byte{byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)})
	buf.Write([]byte{0x00, 0x00}) // frame flags
	buf.Write(payload)
	buf.WriteString("not real audio")

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestIsAudioFile(t *testing.T) {
	cases := []struct {
		path string
		want bool
	}{
		{"song.mp3", true},
		{"song.MP3", true},
		{"song.flac", true},
		{"song.wav", true},
		{"clip.mp4", false},
		{"notes.txt", false},
		{"noext", false},
	}
	for _, tc := range cases {
		if got := IsAudioFile(tc.path); got != tc.want {
			t.Errorf("IsAudioFile(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestScanAllIngestsAudioFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "album"), 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"one.mp3", "album/two.mp3", "cover.jpg", "readme.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("not real audio"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	repo := newMemTrackRepo()
	scanner := NewScanner(dir, repo, nil)

	added, err := scanner.ScanAll(context.Background())
	if err != nil {
		t.Fatalf("ScanAll: %v", err)
	}
	if added != 2 {
		t.Fatalf("added %d tracks, want 2", added)
	}

	tracks, _ := repo.GetAllTracks()
	for _, tr := range tracks {
		if tr.MimeType != "audio/mpeg" {
			t.Errorf("track %s has mime %q, want audio/mpeg", tr.URI, tr.MimeType)
		}
		if tr.Title == "" {
			t.Errorf("track %s has no title", tr.URI)
		}
	}
}

func TestScanAllBackfillsMissingArtwork(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "one.mp3")
	writeMP3WithArtwork(t, path)

	abs, err := filepath.Abs(path)
	if err != nil {
		t.Fatal(err)
	}
	uri := "file://" + abs

	// The track entered the library while the artwork store was down.
	repo := newMemTrackRepo()
	if _, err := repo.CreateTrack(&model.Track{URI: uri, Title: "one", MimeType: "audio/mpeg"}); err != nil {
		t.Fatal(err)
	}

	art := &fakeArtworkStore{}
	scanner := NewScanner(dir, repo, art)

	added, err := scanner.ScanAll(context.Background())
	if err != nil {
		t.Fatalf("ScanAll: %v", err)
	}
	if added != 0 {
		t.Fatalf("added %d tracks, want 0", added)
	}

	tr, _ := repo.GetTrackByURI(uri)
	if tr.ArtworkURI == "" {
		t.Fatal("artwork not backfilled for a known track")
	}
	if !strings.HasPrefix(tr.ArtworkURI, "artwork/") {
		t.Fatalf("artwork URI %q, want artwork/ object path", tr.ArtworkURI)
	}
	if art.puts != 1 {
		t.Fatalf("artwork uploaded %d times, want 1", art.puts)
	}
}

func TestScanAllSkipsKnownTracks(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "one.mp3"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	repo := newMemTrackRepo()
	scanner := NewScanner(dir, repo, nil)

	if added, _ := scanner.ScanAll(context.Background()); added != 1 {
		t.Fatalf("first scan added %d, want 1", added)
	}
	if added, _ := scanner.ScanAll(context.Background()); added != 0 {
		t.Fatalf("second scan added %d, want 0", added)
	}
}
