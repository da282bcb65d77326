package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"playdeck/logger"
	"playdeck/model"

	"github.com/gorilla/mux"
)

// StatusHandler returns a playback state snapshot.
func (h *APIHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Status())
}

// PlayHandler resumes playback.
func (h *APIHandler) PlayHandler(w http.ResponseWriter, r *http.Request) {
	h.svc.Play()
	writeJSON(w, http.StatusOK, h.svc.Status())
}

// PauseHandler suspends playback.
func (h *APIHandler) PauseHandler(w http.ResponseWriter, r *http.Request) {
	h.svc.Pause()
	writeJSON(w, http.StatusOK, h.svc.Status())
}

// NextHandler skips to the next queue entry.
func (h *APIHandler) NextHandler(w http.ResponseWriter, r *http.Request) {
	h.svc.Next()
	writeJSON(w, http.StatusOK, h.svc.Status())
}

// PreviousHandler returns to the previous queue entry.
func (h *APIHandler) PreviousHandler(w http.ResponseWriter, r *http.Request) {
	h.svc.Previous()
	writeJSON(w, http.StatusOK, h.svc.Status())
}

// SeekHandler seeks to a queue index and position.
func (h *APIHandler) SeekHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Index      int   `json:"index"`
		PositionMs int64 `json:"positionMs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.svc.SeekTo(req.Index, req.PositionMs)
	writeJSON(w, http.StatusOK, h.svc.Status())
}

// ShuffleHandler toggles shuffle mode.
func (h *APIHandler) ShuffleHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.svc.SetShuffle(req.Enabled)
	writeJSON(w, http.StatusOK, h.svc.Status())
}

// RepeatHandler sets the repeat mode ("off", "one", "all").
func (h *APIHandler) RepeatHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.svc.SetRepeat(model.ParseRepeatMode(req.Mode))
	writeJSON(w, http.StatusOK, h.svc.Status())
}

// FavouriteHandler toggles the current track's favourites membership.
func (h *APIHandler) FavouriteHandler(w http.ResponseWriter, r *http.Request) {
	fav, err := h.svc.ToggleFavourite()
	if err != nil {
		logger.Error("failed to toggle favourite", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "failed to toggle favourite")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"favourite": fav})
}

// GetQueueHandler returns a page of the live queue. Controllers browsing
// large queues pass offset/limit; the default page is the whole queue.
func (h *APIHandler) GetQueueHandler(w http.ResponseWriter, r *http.Request) {
	tracks := h.svc.Queue().Tracks()

	offset := 0
	limit := len(tracks)
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			limit = n
		}
	}

	total := len(tracks)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total":  total,
		"offset": offset,
		"tracks": tracks[offset:end],
	})
}

// SetQueueHandler replaces the live queue.
func (h *APIHandler) SetQueueHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tracks     []model.Track `json:"tracks"`
		StartIndex int           `json:"startIndex"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.svc.SetQueue(req.Tracks, req.StartIndex)
	writeJSON(w, http.StatusOK, h.svc.Status())
}

// AddToQueueHandler appends tracks to the live queue.
func (h *APIHandler) AddToQueueHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tracks []model.Track `json:"tracks"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.svc.AddTracks(req.Tracks)
	writeJSON(w, http.StatusOK, h.svc.Status())
}

// RemoveFromQueueHandler removes a queue entry by index.
func (h *APIHandler) RemoveFromQueueHandler(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid queue index")
		return
	}
	h.svc.RemoveTrack(index)
	writeJSON(w, http.StatusOK, h.svc.Status())
}

// MoveInQueueHandler reorders the live queue.
func (h *APIHandler) MoveInQueueHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		From int `json:"from"`
		To   int `json:"to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.svc.MoveTrack(req.From, req.To)
	writeJSON(w, http.StatusOK, h.svc.Status())
}
