package player

import (
	"testing"

	"playdeck/model"
)

func TestShuffleOrderRoundTrip(t *testing.T) {
	q := NewQueue()
	q.SetTracks([]model.Track{audioTrack(1), audioTrack(2), audioTrack(3), audioTrack(4), audioTrack(5)})

	order := q.GenerateShuffleOrder()
	encoded := q.EncodeShuffleOrder()
	if encoded == "" {
		t.Fatal("expected non-empty encoded order")
	}

	decoded, err := DecodeShuffleOrder(encoded, q.Len())
	if err != nil {
		t.Fatalf("DecodeShuffleOrder: %v", err)
	}
	if len(decoded) != len(order) {
		t.Fatalf("decoded length %d, want %d", len(decoded), len(order))
	}
	for i := range order {
		if decoded[i] != order[i] {
			t.Fatalf("decoded[%d] = %d, want %d", i, decoded[i], order[i])
		}
	}
}

func TestGenerateShuffleOrderIsPermutation(t *testing.T) {
	q := NewQueue()
	q.SetTracks([]model.Track{audioTrack(1), audioTrack(2), audioTrack(3), audioTrack(4)})

	order := q.GenerateShuffleOrder()
	if len(order) != 4 {
		t.Fatalf("order length %d, want 4", len(order))
	}
	seen := make([]bool, 4)
	for _, v := range order {
		if v < 0 || v >= 4 || seen[v] {
			t.Fatalf("order %v is not a permutation", order)
		}
		seen[v] = true
	}
}

func TestSetShuffleOrderRejectsInvalid(t *testing.T) {
	q := NewQueue()
	q.SetTracks([]model.Track{audioTrack(1), audioTrack(2), audioTrack(3)})

	cases := []struct {
		name  string
		order []int
	}{
		{"wrong length", []int{0, 1}},
		{"duplicate", []int{0, 0, 2}},
		{"out of range", []int{0, 1, 3}},
		{"negative", []int{0, 1, -1}},
	}
	for _, tc := range cases {
		if err := q.SetShuffleOrder(tc.order); err == nil {
			t.Errorf("%s: SetShuffleOrder(%v) accepted invalid order", tc.name, tc.order)
		}
	}

	if err := q.SetShuffleOrder([]int{2, 0, 1}); err != nil {
		t.Fatalf("valid order rejected: %v", err)
	}
}

func TestDecodeShuffleOrderRejectsMalformed(t *testing.T) {
	cases := []struct {
		name string
		in   string
		n    int
	}{
		{"empty", "", 3},
		{"non-numeric", "0,x,2", 3},
		{"wrong length", "0,1", 3},
		{"duplicate", "0,0,1", 3},
		{"out of range", "0,1,5", 3},
	}
	for _, tc := range cases {
		if _, err := DecodeShuffleOrder(tc.in, tc.n); err == nil {
			t.Errorf("%s: DecodeShuffleOrder(%q, %d) accepted malformed input", tc.name, tc.in, tc.n)
		}
	}
}

func TestSetTracksDropsStaleShuffleOrder(t *testing.T) {
	q := NewQueue()
	q.SetTracks([]model.Track{audioTrack(1), audioTrack(2), audioTrack(3)})
	q.GenerateShuffleOrder()

	q.SetTracks([]model.Track{audioTrack(1), audioTrack(2)})
	if q.ShuffleOrder() != nil {
		t.Fatal("stale shuffle order survived a queue length change")
	}
	if q.EncodeShuffleOrder() != "" {
		t.Fatal("stale shuffle order still encodes")
	}
}

func TestEncodeShuffleOrderDropsEphemeralEntries(t *testing.T) {
	ephemeral := model.Track{URI: model.EphemeralURIPrefix + "media/42", MimeType: "audio/mpeg"}

	q := NewQueue()
	q.SetTracks([]model.Track{audioTrack(1), ephemeral, audioTrack(2)})
	if err := q.SetShuffleOrder([]int{2, 1, 0}); err != nil {
		t.Fatal(err)
	}

	encoded := q.EncodeShuffleOrder()
	if encoded != "1,0" {
		t.Fatalf("encoded order %q, want %q", encoded, "1,0")
	}

	decoded, err := DecodeShuffleOrder(encoded, len(q.PersistableTracks()))
	if err != nil {
		t.Fatalf("persisted order does not survive a reload: %v", err)
	}
	if decoded[0] != 1 || decoded[1] != 0 {
		t.Fatalf("decoded %v, want [1 0]", decoded)
	}
}

func TestPersistableTracksSkipsEphemeral(t *testing.T) {
	ephemeral := model.Track{URI: model.EphemeralURIPrefix + "media/42", MimeType: "audio/mpeg"}

	q := NewQueue()
	q.SetTracks([]model.Track{audioTrack(1), ephemeral, audioTrack(2)})

	persistable := q.PersistableTracks()
	if len(persistable) != 2 {
		t.Fatalf("got %d persistable tracks, want 2", len(persistable))
	}
	for _, tr := range persistable {
		if tr.IsEphemeral() {
			t.Fatalf("ephemeral track %s leaked into persistable set", tr.URI)
		}
	}
}
