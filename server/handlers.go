package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"playdeck/cache"
	"playdeck/config"
	"playdeck/core/auth"
	"playdeck/core/player"
	"playdeck/core/session"
	"playdeck/logger"
	"playdeck/repository"
)

type contextKey string

const usernameKey contextKey = "username"

// APIHandler serves the control API for the playback daemon.
type APIHandler struct {
	svc       *player.Service
	store     cache.StateStore
	tracks    repository.TrackRepository
	playlists repository.PlaylistRepository
	hub       *session.Hub
	cfg       *config.Config
}

// NewAPIHandler creates the API handler.
func NewAPIHandler(
	svc *player.Service,
	store cache.StateStore,
	tracks repository.TrackRepository,
	playlists repository.PlaylistRepository,
	hub *session.Hub,
	cfg *config.Config,
) *APIHandler {
	return &APIHandler{
		svc:       svc,
		store:     store,
		tracks:    tracks,
		playlists: playlists,
		hub:       hub,
		cfg:       cfg,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Warn("failed to encode response", logger.ErrorField(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// TokenHandler exchanges control credentials for a JWT.
func (h *APIHandler) TokenHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if h.cfg.ControlPasswordHash == "" {
		writeError(w, http.StatusForbidden, "control password not configured")
		return
	}
	if req.Username != h.cfg.ControlUser || !auth.CheckPasswordHash(req.Password, h.cfg.ControlPasswordHash) {
		logger.Warn("rejected token request", logger.String("username", req.Username))
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := auth.GenerateToken(req.Username)
	if err != nil {
		logger.Error("failed to issue token", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// AuthMiddleware checks for a valid bearer token. Websocket upgrades may
// carry the token in the query string instead, since browsers cannot set
// headers on the upgrade request.
func (h *APIHandler) AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := ""
		if authHeader := r.Header.Get("Authorization"); authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				writeError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}
			token = parts[1]
		} else {
			token = r.URL.Query().Get("token")
		}
		if token == "" {
			writeError(w, http.StatusUnauthorized, "authorization required")
			return
		}

		claims, err := auth.ValidateToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), usernameKey, claims.Username)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// GetUsernameFromContext extracts the authenticated username.
func GetUsernameFromContext(ctx context.Context) (string, error) {
	username, ok := ctx.Value(usernameKey).(string)
	if !ok {
		return "", fmt.Errorf("username not found in context")
	}
	return username, nil
}

// SessionHandler is the connect handshake for polling controllers: it
// advertises the custom commands and returns the current playback status.
func (h *APIHandler) SessionHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"commands": player.AdvertisedCommands(),
		"status":   h.svc.Status(),
	})
}

// CommandHandler dispatches a custom session command.
func (h *APIHandler) CommandHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Action string          `json:"action"`
		Args   json.RawMessage `json:"args,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp := h.svc.DispatchCommand(r.Context(), req.Action, req.Args)
	writeJSON(w, http.StatusOK, resp)
}

// GetTracksHandler lists the track library.
func (h *APIHandler) GetTracksHandler(w http.ResponseWriter, r *http.Request) {
	tracks, err := h.tracks.GetAllTracks()
	if err != nil {
		logger.Error("failed to list tracks", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "failed to list tracks")
		return
	}
	writeJSON(w, http.StatusOK, tracks)
}
