package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/lKakarot/phone-cleaner/internal/loader"
	"github.com/lKakarot/phone-cleaner/internal/localfs"
	"github.com/lKakarot/phone-cleaner/internal/media"
)

// defaultPrepareTimeout bounds a playable preparation when the request does
// not set one.
const defaultPrepareTimeout = 30 * time.Second

// PlayableHandler prepares playable resources through a per-directory loader,
// so repeat requests for the same item resolve from the loader's cache.
type PlayableHandler struct {
	mu      sync.Mutex
	entries map[string]*playableEntry
}

type playableEntry struct {
	mu     sync.Mutex // one load at a time per loader
	store  *localfs.Store
	loader *loader.Loader
}

// NewPlayableHandler creates a new playable handler.
func NewPlayableHandler() *PlayableHandler {
	return &PlayableHandler{entries: make(map[string]*playableEntry)}
}

// PlayableRequest is the request body for preparing a playable resource.
type PlayableRequest struct {
	Directory string `json:"directory"`
	ID        string `json:"id"`
	TimeoutMs int    `json:"timeout_ms,omitempty"` // 0 = default
}

// Prepare handles POST /playables: it resolves the item, drives the loader to
// a terminal state, and responds with the prepared resource or a classified
// error.
func (h *PlayableHandler) Prepare(w http.ResponseWriter, r *http.Request) {
	var req PlayableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Directory == "" || req.ID == "" {
		respondError(w, http.StatusBadRequest, "directory and id are required")
		return
	}

	entry, err := h.entry(req.Directory)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	item, err := entry.store.Item(req.ID)
	if err != nil {
		if errors.Is(err, media.ErrNotFound) {
			respondError(w, http.StatusNotFound, "item not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	timeout := defaultPrepareTimeout
	if req.TimeoutMs > 0 {
		timeout = time.Duration(req.TimeoutMs) * time.Millisecond
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	states := entry.loader.Subscribe()
	defer entry.loader.Unsubscribe(states)

	entry.loader.Load(item, timeout)

	for {
		select {
		case <-r.Context().Done():
			entry.loader.Cancel()
			return
		case state, ok := <-states:
			if !ok {
				respondError(w, http.StatusInternalServerError, "loader closed")
				return
			}
			if !state.Terminal() {
				continue
			}
			if state.Phase == loader.PhaseReady {
				respondJSON(w, http.StatusOK, state.Resource)
				return
			}
			respondError(w, statusForKind(state.Kind), state.Detail)
			return
		}
	}
}

// entry returns the loader entry for a directory, creating it on first use.
func (h *PlayableHandler) entry(directory string) (*playableEntry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if entry, ok := h.entries[directory]; ok {
		return entry, nil
	}

	store, err := localfs.New(directory)
	if err != nil {
		return nil, err
	}
	entry := &playableEntry{
		store:  store,
		loader: loader.New(store, 0),
	}
	h.entries[directory] = entry
	return entry, nil
}

// statusForKind maps a loader error kind to an HTTP status code.
func statusForKind(kind loader.ErrorKind) int {
	switch kind {
	case loader.KindNotFound:
		return http.StatusNotFound
	case loader.KindTimeout:
		return http.StatusGatewayTimeout
	case loader.KindDownloadFailed, loader.KindNetworkUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
