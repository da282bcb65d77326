package player

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"playdeck/model"
)

// Queue mirrors the ordered sequence of tracks currently loaded into the
// player, with a shuffle permutation layered on top. It is the in-memory
// side of the durable "queue" playlist.
type Queue struct {
	mu           sync.RWMutex
	tracks       []model.Track
	shuffleOrder []int
	rng          *rand.Rand
}

// NewQueue creates an empty queue with a freshly seeded shuffle source.
func NewQueue() *Queue {
	return &Queue{
		tracks: make([]model.Track, 0),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetTracks replaces the queue contents. A shuffle order whose length no
// longer matches is discarded.
func (q *Queue) SetTracks(tracks []model.Track) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.tracks = make([]model.Track, len(tracks))
	copy(q.tracks, tracks)

	if len(q.shuffleOrder) != len(q.tracks) {
		q.shuffleOrder = nil
	}
}

// Tracks returns a copy of the queue contents in natural order.
func (q *Queue) Tracks() []model.Track {
	q.mu.RLock()
	defer q.mu.RUnlock()

	tracks := make([]model.Track, len(q.tracks))
	copy(tracks, q.tracks)
	return tracks
}

// Len returns the number of queued tracks.
func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.tracks)
}

// TrackAt returns the track at the given natural index.
func (q *Queue) TrackAt(index int) (model.Track, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if index < 0 || index >= len(q.tracks) {
		return model.Track{}, false
	}
	return q.tracks[index], true
}

// PersistableTracks returns the queue contents minus ephemeral third-party
// entries, which are unplayable after a process restart and therefore never
// written to the durable queue playlist.
func (q *Queue) PersistableTracks() []model.Track {
	q.mu.RLock()
	defer q.mu.RUnlock()

	tracks := make([]model.Track, 0, len(q.tracks))
	for _, t := range q.tracks {
		if t.IsEphemeral() {
			continue
		}
		tracks = append(tracks, t)
	}
	return tracks
}

// GenerateShuffleOrder creates, installs and returns a fresh random
// permutation over the queue indices (Fisher-Yates).
func (q *Queue) GenerateShuffleOrder() []int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.tracks)
	order := make([]int, n)
	for i := 0; i < n; i++ {
		order[i] = i
	}
	for i := n - 1; i > 0; i-- {
		j := q.rng.Intn(i + 1)
		order[i], order[j] = order[j], order[i]
	}
	q.shuffleOrder = order

	out := make([]int, n)
	copy(out, order)
	return out
}

// SetShuffleOrder installs an explicit permutation. It is rejected when it
// is not a permutation over the current queue length.
func (q *Queue) SetShuffleOrder(order []int) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := validatePermutation(order, len(q.tracks)); err != nil {
		return err
	}
	q.shuffleOrder = make([]int, len(order))
	copy(q.shuffleOrder, order)
	return nil
}

// ShuffleOrder returns a copy of the installed permutation, or nil when none
// is installed.
func (q *Queue) ShuffleOrder() []int {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.shuffleOrder == nil {
		return nil
	}
	order := make([]int, len(q.shuffleOrder))
	copy(order, q.shuffleOrder)
	return order
}

// EncodeShuffleOrder renders the installed permutation as a comma-delimited
// string for persistence. The durable queue playlist excludes ephemeral
// entries, so the permutation is projected onto the surviving indices first;
// what is written decodes cleanly against what a restore loads. Empty when no
// permutation is installed.
func (q *Queue) EncodeShuffleOrder() string {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if len(q.shuffleOrder) == 0 {
		return ""
	}

	// Natural index -> position among persistable entries.
	pos := make(map[int]int, len(q.tracks))
	for i, t := range q.tracks {
		if t.IsEphemeral() {
			continue
		}
		pos[i] = len(pos)
	}

	parts := make([]string, 0, len(pos))
	for _, v := range q.shuffleOrder {
		p, ok := pos[v]
		if !ok {
			continue
		}
		parts = append(parts, strconv.Itoa(p))
	}
	return strings.Join(parts, ",")
}

// DecodeShuffleOrder parses a persisted comma-delimited permutation and
// validates it against the expected length.
func DecodeShuffleOrder(s string, n int) ([]int, error) {
	if s == "" {
		return nil, fmt.Errorf("empty shuffle order")
	}
	parts := strings.Split(s, ",")
	order := make([]int, len(parts))
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid shuffle order element %q: %w", p, err)
		}
		order[i] = v
	}
	if err := validatePermutation(order, n); err != nil {
		return nil, err
	}
	return order, nil
}

func validatePermutation(order []int, n int) error {
	if len(order) != n {
		return fmt.Errorf("shuffle order length %d does not match queue length %d", len(order), n)
	}
	seen := make([]bool, n)
	for _, v := range order {
		if v < 0 || v >= n || seen[v] {
			return fmt.Errorf("shuffle order is not a permutation of [0,%d)", n)
		}
		seen[v] = true
	}
	return nil
}
