package server

import (
	"net/http"
	"strings"

	"playdeck/logger"
	"playdeck/model"

	"github.com/gorilla/mux"
)

// ListPlaylistsHandler lists user-facing playlists. Service-maintained
// playlists (dot-prefixed) are hidden.
func (h *APIHandler) ListPlaylistsHandler(w http.ResponseWriter, r *http.Request) {
	playlists, err := h.playlists.ListPlaylists(false)
	if err != nil {
		logger.Error("failed to list playlists", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "failed to list playlists")
		return
	}
	writeJSON(w, http.StatusOK, playlists)
}

// GetPlaylistTracksHandler returns the ordered members of a playlist. The
// recent and favourites playlists are reachable under their public aliases;
// other private playlists stay hidden.
func (h *APIHandler) GetPlaylistTracksHandler(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	switch name {
	case "recent":
		name = model.RecentPlaylist
	case "favourites":
		name = model.FavouritesPlaylist
	default:
		if strings.HasPrefix(name, model.PrivatePlaylistPrefix) {
			writeError(w, http.StatusNotFound, "playlist not found")
			return
		}
	}

	entries, err := h.playlists.GetPlaylistTracks(name)
	if err != nil {
		logger.Error("failed to load playlist",
			logger.String("name", name), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "failed to load playlist")
		return
	}

	tracks := make([]model.Track, 0, len(entries))
	for _, entry := range entries {
		tracks = append(tracks, entry.Track())
	}
	writeJSON(w, http.StatusOK, tracks)
}
