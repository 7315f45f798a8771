package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"trivia-room-service/internal/app"
	"trivia-room-service/internal/domain"
)

// SessionHandler exposes the resume and snapshot HTTP surface.
type SessionHandler struct {
	registry *app.Registry
	store    app.SnapshotStore
}

func NewSessionHandler(registry *app.Registry, store app.SnapshotStore) *SessionHandler {
	return &SessionHandler{registry: registry, store: store}
}

type resumeResponse struct {
	OK            bool    `json:"ok"`
	PIN           string  `json:"pin"`
	CurrentIndex  int     `json:"currentIndex"`
	CarriedScores [][]any `json:"carriedScores"`
}

// Resume reconstructs a session from its last durable snapshot. A missing
// or unreadable snapshot is a 404; store outages degrade to the same
// not-found shape rather than a 500.
func (h *SessionHandler) Resume(w http.ResponseWriter, r *http.Request) {
	pin := r.PathValue("pin")

	room, err := h.registry.Resume(r.Context(), pin)
	if err != nil {
		if !errors.Is(err, domain.ErrNoSnapshot) {
			log.Printf("resume %s: store error: %v", pin, err)
		}
		// Store outages degrade to not-found for the caller.
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no snapshot"})
		return
	}

	snap := room.Snapshot()
	carried := make([][]any, 0, len(snap.Leaderboard))
	for _, entry := range snap.Leaderboard {
		carried = append(carried, []any{entry.Name, entry.Score})
	}
	writeJSON(w, http.StatusOK, resumeResponse{
		OK:            true,
		PIN:           pin,
		CurrentIndex:  room.CurrentIndex(),
		CarriedScores: carried,
	})
}

// Snapshot serves the live in-memory snapshot, falling back to the last
// durable one when no live session exists.
func (h *SessionHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	pin := r.PathValue("pin")

	snap, err := h.registry.SnapshotFor(r.Context(), pin)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no snapshot"})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// Health reports snapshot-store reachability.
func (h *SessionHandler) Health(w http.ResponseWriter, r *http.Request) {
	health := h.store.Ping(r.Context())
	status := http.StatusOK
	if !health.OK {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
