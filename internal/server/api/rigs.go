package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/ayusman/natya/internal/pose"
	"github.com/ayusman/natya/internal/retarget"
	"github.com/ayusman/natya/internal/store"
)

// Controller is the part of the application the API drives.
type Controller interface {
	BindRig(ctx context.Context, id string) (retarget.Binding, error)
	Unbind(ctx context.Context) error
	Reset(ctx context.Context)
	Submit(ctx context.Context, frame pose.Frame) (retarget.Result, error)
	ActiveRig() string
	Engine() *retarget.Engine
}

// RigHandler handles HTTP requests for rig resources.
type RigHandler struct {
	store *store.Store
	ctl   Controller
}

// NewRigHandler creates a new RigHandler. ctl may be nil, in which case
// binding is unavailable.
func NewRigHandler(s *store.Store, ctl Controller) *RigHandler {
	return &RigHandler{store: s, ctl: ctl}
}

// ServeHTTP routes /api/rigs, /api/rigs/{id} and /api/rigs/{id}/bind.
func (h *RigHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/rigs")
	path = strings.Trim(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	id, action, _ := strings.Cut(path, "/")
	switch action {
	case "":
	case "bind":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.bind(w, r, id)
		return
	default:
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodPut:
		h.update(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type partRequest struct {
	Name string      `json:"name"`
	Rest *[3]float64 `json:"rest,omitempty"`
}

type rigRequest struct {
	Name     string        `json:"name"`
	Skeleton bool          `json:"skeleton"`
	Parts    []partRequest `json:"parts"`
}

type partResponse struct {
	Name string      `json:"name"`
	Rest *[3]float64 `json:"rest,omitempty"`
}

type rigResponse struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Skeleton  bool           `json:"skeleton"`
	Active    bool           `json:"active"`
	Parts     []partResponse `json:"parts,omitempty"`
	CreatedAt string         `json:"created_at"`
	UpdatedAt string         `json:"updated_at"`
}

type listRigsResponse struct {
	Rigs []rigResponse `json:"rigs"`
}

func (h *RigHandler) toResponse(rig *store.Rig) rigResponse {
	resp := rigResponse{
		ID:        rig.ID,
		Name:      rig.Name,
		Skeleton:  rig.Skeleton,
		Active:    h.ctl != nil && h.ctl.ActiveRig() == rig.ID,
		CreatedAt: formatTime(rig.CreatedAt),
		UpdatedAt: formatTime(rig.UpdatedAt),
	}
	for _, p := range rig.Parts {
		resp.Parts = append(resp.Parts, partResponse{Name: p.Name, Rest: p.Rest})
	}
	return resp
}

// decodeRig reads and validates a rig body, returning a client message
// when it is unacceptable. Part names must be non-empty and unique.
func decodeRig(r *http.Request) (rigRequest, string) {
	var req rigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, "Invalid JSON"
	}
	if strings.TrimSpace(req.Name) == "" {
		return req, "Name is required"
	}
	seen := make(map[string]bool, len(req.Parts))
	for _, p := range req.Parts {
		if p.Name == "" {
			return req, "Part name is required"
		}
		if seen[p.Name] {
			return req, "Duplicate part name: " + p.Name
		}
		seen[p.Name] = true
	}
	return req, ""
}

func toParts(in []partRequest) []store.Part {
	parts := make([]store.Part, len(in))
	for i, p := range in {
		parts[i] = store.Part{Name: p.Name, Rest: p.Rest}
	}
	return parts
}

// list handles GET /api/rigs.
func (h *RigHandler) list(w http.ResponseWriter, r *http.Request) {
	rigs, err := h.store.Rigs().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list rigs")
		return
	}

	response := listRigsResponse{Rigs: make([]rigResponse, 0, len(rigs))}
	for _, rig := range rigs {
		response.Rigs = append(response.Rigs, h.toResponse(rig))
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/rigs/{id}.
func (h *RigHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	rig, err := h.store.Rigs().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Rig not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get rig")
		return
	}

	writeJSON(w, http.StatusOK, h.toResponse(rig))
}

// create handles POST /api/rigs.
func (h *RigHandler) create(w http.ResponseWriter, r *http.Request) {
	req, msg := decodeRig(r)
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	rig := &store.Rig{
		ID:       uuid.New().String(),
		Name:     req.Name,
		Skeleton: req.Skeleton,
		Parts:    toParts(req.Parts),
	}

	if err := h.store.Rigs().Create(rig); err != nil {
		if errors.Is(err, store.ErrDuplicateName) {
			writeError(w, http.StatusConflict, "Rig name already exists")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to create rig")
		return
	}

	writeJSON(w, http.StatusCreated, h.toResponse(rig))
}

// update handles PUT /api/rigs/{id}. Updating the bound rig rebinds it.
func (h *RigHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	rig, err := h.store.Rigs().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Rig not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get rig")
		return
	}

	req, msg := decodeRig(r)
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	rig.Name = req.Name
	rig.Skeleton = req.Skeleton
	rig.Parts = toParts(req.Parts)

	if err := h.store.Rigs().Update(rig); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update rig")
		return
	}

	if h.ctl != nil && h.ctl.ActiveRig() == id {
		if _, err := h.ctl.BindRig(r.Context(), id); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to rebind rig")
			return
		}
	}

	writeJSON(w, http.StatusOK, h.toResponse(rig))
}

// delete handles DELETE /api/rigs/{id}. Deleting the bound rig unbinds it.
func (h *RigHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Rigs().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Rig not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete rig")
		return
	}

	if h.ctl != nil && h.ctl.ActiveRig() == id {
		if err := h.ctl.Unbind(r.Context()); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to unbind rig")
			return
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// bind handles POST /api/rigs/{id}/bind.
func (h *RigHandler) bind(w http.ResponseWriter, r *http.Request, id string) {
	if h.ctl == nil {
		writeError(w, http.StatusServiceUnavailable, "Binding is not available")
		return
	}

	b, err := h.ctl.BindRig(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Rig not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to bind rig")
		return
	}

	writeJSON(w, http.StatusOK, toBindingResponse(b))
}
