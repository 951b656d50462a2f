package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ayusman/natya/internal/pose"
)

// PoseHandler serves the engine state and accepts landmark frames.
type PoseHandler struct {
	ctl Controller
}

// NewPoseHandler creates a PoseHandler over ctl.
func NewPoseHandler(ctl Controller) *PoseHandler {
	return &PoseHandler{ctl: ctl}
}

// Register mounts the pose routes on mux.
func (h *PoseHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/pose", h.pose)
	mux.HandleFunc("/api/frames", h.frames)
	mux.HandleFunc("/api/unbind", h.unbind)
	mux.HandleFunc("/api/reset", h.reset)
}

// maxFrameBytes bounds a frame body. A full 33 landmark frame is about 4 KiB.
const maxFrameBytes = 16 << 10

type frameRequest struct {
	Landmarks   []*pose.Landmark `json:"landmarks"`
	TimestampMS int64            `json:"timestamp_ms"`
	World       bool             `json:"world"`
}

// pose handles GET /api/pose.
func (h *PoseHandler) pose(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, NewPoseResponse(h.ctl.Engine().Pose()))
}

// frames handles POST /api/frames. Frames the engine drops still return
// 200 with the drop reason; only malformed bodies are rejected.
func (h *PoseHandler) frames(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxFrameBytes)

	var req frameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Frame too large")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	frame := pose.Frame{
		Landmarks: pose.LandmarkSet(req.Landmarks),
		Timestamp: time.Duration(req.TimestampMS) * time.Millisecond,
		World:     req.World,
	}

	res, err := h.ctl.Submit(r.Context(), frame)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, toResultResponse(res))
}

// unbind handles POST /api/unbind.
func (h *PoseHandler) unbind(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := h.ctl.Unbind(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to unbind")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// reset handles POST /api/reset.
func (h *PoseHandler) reset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.ctl.Reset(r.Context())
	writeJSON(w, http.StatusOK, NewPoseResponse(h.ctl.Engine().Pose()))
}
