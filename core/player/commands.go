package player

import (
	"context"
	"encoding/json"
	"fmt"

	"playdeck/cache"
	"playdeck/logger"
)

// Custom session commands recognized by the command router.
const (
	CmdGetAudioSessionID  = "getAudioSessionId"
	CmdScheduleSleepTimer = "scheduleSleepTimer"
	CmdConfigureEqualizer = "configureEqualizer"
)

// AdvertisedCommands lists the custom commands offered to controllers at
// connect time.
func AdvertisedCommands() []string {
	return []string{CmdGetAudioSessionID, CmdScheduleSleepTimer, CmdConfigureEqualizer}
}

// CommandResponse is the structured result of a dispatched command. An
// unrecognized action yields Success=false, never a panic, so remote
// callers can branch on the result.
type CommandResponse struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// AudioSessionResult is the payload of a getAudioSessionId command.
type AudioSessionResult struct {
	SessionID int32 `json:"sessionId"`
}

// SleepTimerArgs carries the scheduleSleepTimer input. A zero TargetTime
// queries the current deadline without mutating it.
type SleepTimerArgs struct {
	TargetTime int64 `json:"targetTime"`
}

// SleepTimerResult is the payload of a scheduleSleepTimer command.
type SleepTimerResult struct {
	Deadline int64 `json:"deadline"`
}

// EqualizerArgs carries the configureEqualizer input. An empty argument
// bundle queries the persisted state.
type EqualizerArgs struct {
	Enabled  *bool   `json:"enabled,omitempty"`
	Settings *string `json:"settings,omitempty"`
}

// EqualizerResult is the payload of a configureEqualizer command.
type EqualizerResult struct {
	Enabled  bool   `json:"enabled"`
	Settings string `json:"settings"`
}

func successResponse(data interface{}) *CommandResponse {
	raw, err := json.Marshal(data)
	if err != nil {
		return failureResponse(fmt.Sprintf("failed to marshal command result: %v", err))
	}
	return &CommandResponse{Success: true, Data: raw}
}

func failureResponse(msg string) *CommandResponse {
	return &CommandResponse{Success: false, Error: msg}
}

// DispatchCommand routes a named out-of-band action with an opaque argument
// bundle to the playback state and returns a structured result. It never
// panics across the session boundary.
func (s *Service) DispatchCommand(ctx context.Context, action string, args json.RawMessage) *CommandResponse {
	switch action {
	case CmdGetAudioSessionID:
		return successResponse(AudioSessionResult{SessionID: s.engine.AudioSessionID()})

	case CmdScheduleSleepTimer:
		var in SleepTimerArgs
		if len(args) > 0 {
			if err := json.Unmarshal(args, &in); err != nil {
				return failureResponse(fmt.Sprintf("invalid sleep timer arguments: %v", err))
			}
		}
		deadline := s.ScheduleSleepTimer(in.TargetTime)
		return successResponse(SleepTimerResult{Deadline: deadline})

	case CmdConfigureEqualizer:
		return s.configureEqualizer(ctx, args)

	default:
		logger.Warn("unknown session command", logger.String("action", action))
		return failureResponse(fmt.Sprintf("unknown action: %s", action))
	}
}

// configureEqualizer persists a non-empty configuration and forces the
// equalizer controller to re-apply it, then returns the persisted state.
func (s *Service) configureEqualizer(ctx context.Context, args json.RawMessage) *CommandResponse {
	var in EqualizerArgs
	if len(args) > 0 {
		if err := json.Unmarshal(args, &in); err != nil {
			return failureResponse(fmt.Sprintf("invalid equalizer arguments: %v", err))
		}
	}

	if in.Enabled != nil || in.Settings != nil {
		enabled := s.store.GetBool(ctx, cache.KeyEqualizerEnabled, false)
		settings := s.store.GetString(ctx, cache.KeyEqualizerSettings, "")
		if in.Enabled != nil {
			enabled = *in.Enabled
		}
		if in.Settings != nil {
			settings = *in.Settings
		}

		if err := s.store.SetBool(ctx, cache.KeyEqualizerEnabled, enabled); err != nil {
			return failureResponse(fmt.Sprintf("failed to persist equalizer flag: %v", err))
		}
		if err := s.store.SetString(ctx, cache.KeyEqualizerSettings, settings); err != nil {
			return failureResponse(fmt.Sprintf("failed to persist equalizer settings: %v", err))
		}

		s.eq.Apply(enabled, settings)
	}

	return successResponse(EqualizerResult{
		Enabled:  s.store.GetBool(ctx, cache.KeyEqualizerEnabled, false),
		Settings: s.store.GetString(ctx, cache.KeyEqualizerSettings, ""),
	})
}
