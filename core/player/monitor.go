package player

import (
	"context"
	"time"

	"playdeck/cache"
	"playdeck/logger"
)

// monitor is one run of the playback checkpoint loop.
type monitor struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// startMonitor enters the active monitoring state. Any prior instance is
// cancelled and drained first, so at most one checkpoint loop is ever live.
func (s *Service) startMonitor() {
	s.mu.Lock()
	old := s.mon
	s.mon = nil
	s.mu.Unlock()

	if old != nil {
		old.cancel()
		<-old.done
	}

	ctx, cancel := context.WithCancel(s.ctx)
	m := &monitor{cancel: cancel, done: make(chan struct{})}

	s.mu.Lock()
	s.mon = m
	s.mu.Unlock()

	go s.runMonitor(ctx, m)
}

// stopMonitor requests cancellation of the live loop. The request takes
// effect at the loop's next wait boundary; it does not block, because pause
// events can originate from the loop itself.
func (s *Service) stopMonitor() {
	s.mu.Lock()
	mon := s.mon
	s.mon = nil
	s.mu.Unlock()

	if mon != nil {
		mon.cancel()
	}
}

// runMonitor checkpoints the playback position and evaluates the sleep
// deadline at a fixed cadence while playback is active. Each checkpoint is
// a single key assignment, so cancellation can never leave a torn write.
func (s *Service) runMonitor(ctx context.Context, m *monitor) {
	defer close(m.done)

	for {
		pos := s.engine.PositionMs()
		if err := s.store.SetInt64(ctx, cache.KeyBookmark, pos); err != nil {
			logger.Warn("failed to checkpoint position", logger.ErrorField(err))
		}

		s.evaluateSleepDeadline()

		select {
		case <-time.After(s.interval):
		case <-ctx.Done():
			return
		}

		if !s.engine.IsPlaying() {
			return
		}
	}
}

// evaluateSleepDeadline pauses playback once the deadline is reached and
// clears it. Clearing under the lock before pausing guarantees exactly one
// pause per armed deadline.
func (s *Service) evaluateSleepDeadline() {
	s.mu.Lock()
	deadline := s.sleepDeadline
	fire := deadline != 0 && time.Now().UnixMilli() >= deadline
	if fire {
		s.sleepDeadline = 0
	}
	s.mu.Unlock()

	if fire {
		logger.Info("sleep timer reached, pausing playback", logger.Int64("deadline", deadline))
		s.engine.Pause()
	}
}
