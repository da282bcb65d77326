package player

import (
	"sync"

	"playdeck/logger"
)

// AudioEffect is a platform audio effect bound to one audio session.
type AudioEffect interface {
	SetEnabled(enabled bool) error
	ApplySettings(settings string) error
	Release()
}

// EffectFactory constructs an effect for an audio session. Construction may
// fail when the platform does not support the effect.
type EffectFactory func(sessionID int32) (AudioEffect, error)

// Equalizer binds an audio effect to the engine's current audio session and
// applies persisted settings. A failed construction is memoized per session:
// the controller stays absent and every later operation is a no-op rather
// than an error.
type Equalizer struct {
	mu        sync.Mutex
	factory   EffectFactory
	effect    AudioEffect
	sessionID int32
	failedFor int32
}

// NewEqualizer creates an equalizer controller. A nil factory yields a
// permanently absent effect.
func NewEqualizer(factory EffectFactory) *Equalizer {
	return &Equalizer{factory: factory}
}

// Attach ensures an effect bound to the given session exists, recreating it
// only when the session identity changed, then applies the given state.
func (e *Equalizer) Attach(sessionID int32, enabled bool, settings string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.effect == nil || e.sessionID != sessionID {
		e.releaseLocked()
		e.sessionID = sessionID

		if e.factory == nil || e.failedFor == sessionID {
			return
		}

		effect, err := e.factory(sessionID)
		if err != nil {
			logger.Warn("equalizer effect unavailable",
				logger.Int("sessionId", int(sessionID)), logger.ErrorField(err))
			e.failedFor = sessionID
			return
		}
		e.effect = effect
	}

	e.applyLocked(enabled, settings)
}

// Apply re-applies enabled state and settings to an already attached effect.
// No-op while the effect is absent.
func (e *Equalizer) Apply(enabled bool, settings string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.applyLocked(enabled, settings)
}

func (e *Equalizer) applyLocked(enabled bool, settings string) {
	if e.effect == nil {
		return
	}
	if err := e.effect.SetEnabled(enabled); err != nil {
		logger.Warn("failed to toggle equalizer", logger.ErrorField(err))
	}
	// An empty blob means "never configured"; passing it downstream would
	// feed the effect malformed configuration.
	if settings == "" {
		return
	}
	if err := e.effect.ApplySettings(settings); err != nil {
		logger.Warn("failed to apply equalizer settings", logger.ErrorField(err))
	}
}

// Release frees the bound effect, if any.
func (e *Equalizer) Release() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.releaseLocked()
}

func (e *Equalizer) releaseLocked() {
	if e.effect != nil {
		e.effect.Release()
		e.effect = nil
	}
}
