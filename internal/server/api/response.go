// Package api provides HTTP API handlers for the natya retargeting service.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync/atomic"
	"time"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/ayusman/natya/internal/retarget"
	"github.com/ayusman/natya/pkg/logger"
)

const timeFormat = "2006-01-02T15:04:05Z07:00"

type errorResponse struct {
	Error string `json:"error"`
}

type logHolder struct{ logger.Logger }

var responseLog atomic.Value

// SetLogger sets where response encoding failures are reported. The
// default discards them.
func SetLogger(l logger.Logger) {
	if l == nil {
		l = logger.Nop()
	}
	responseLog.Store(logHolder{l})
}

func responseLogger() logger.Logger {
	if h, ok := responseLog.Load().(logHolder); ok {
		return h.Logger
	}
	return logger.Nop()
}

// writeJSON writes a JSON response with the given status code. The status
// is already sent when encoding fails, so the failure is only logged.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		responseLogger().Error(context.Background(), "encode response",
			logger.Int("status", status), logger.Error(err))
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// Quaternion is the wire form of a rotation.
type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// Vec3 is the wire form of a position.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func toQuaternion(q quat.Number) Quaternion {
	return Quaternion{X: q.Imag, Y: q.Jmag, Z: q.Kmag, W: q.Real}
}

func toVec3(v r3.Vec) Vec3 {
	return Vec3{X: v.X, Y: v.Y, Z: v.Z}
}

// SegmentResponse is one proxy connection line.
type SegmentResponse struct {
	From       int     `json:"from"`
	To         int     `json:"to"`
	Start      Vec3    `json:"start"`
	End        Vec3    `json:"end"`
	Confidence float64 `json:"confidence"`
}

// PoseResponse is the wire form of an engine snapshot.
type PoseResponse struct {
	Rig         string                `json:"rig"`
	State       string                `json:"state"`
	Seq         uint64                `json:"seq"`
	TimestampMS int64                 `json:"timestamp_ms"`
	Confidence  float64               `json:"confidence"`
	Rotations   map[string]Quaternion `json:"rotations,omitempty"`
	Positions   map[string]Vec3       `json:"positions,omitempty"`
	Segments    []SegmentResponse     `json:"segments,omitempty"`
	Visibility  map[string]float64    `json:"visibility,omitempty"`
	Angles      map[string]float64    `json:"angles,omitempty"`
	Stable      bool                  `json:"stable"`
	Unresolved  []string              `json:"unresolved,omitempty"`
}

// NewPoseResponse converts a snapshot for the wire.
func NewPoseResponse(s retarget.Snapshot) PoseResponse {
	resp := PoseResponse{
		Rig:         s.Rig,
		State:       s.State.String(),
		Seq:         s.Seq,
		TimestampMS: s.Timestamp.Milliseconds(),
		Confidence:  s.Confidence,
		Visibility:  s.Visibility,
		Angles:      s.Angles,
		Stable:      s.Stable,
		Unresolved:  s.Unresolved,
	}
	if len(s.Rotations) > 0 {
		resp.Rotations = make(map[string]Quaternion, len(s.Rotations))
		for k, q := range s.Rotations {
			resp.Rotations[k] = toQuaternion(q)
		}
	}
	if len(s.Positions) > 0 {
		resp.Positions = make(map[string]Vec3, len(s.Positions))
		for k, p := range s.Positions {
			resp.Positions[k] = toVec3(p)
		}
	}
	for _, seg := range s.Segments {
		resp.Segments = append(resp.Segments, SegmentResponse{
			From:       seg.From,
			To:         seg.To,
			Start:      toVec3(seg.Start),
			End:        toVec3(seg.End),
			Confidence: seg.Confidence,
		})
	}
	return resp
}

type bindingResponse struct {
	Rig        string            `json:"rig"`
	State      string            `json:"state"`
	Resolved   map[string]string `json:"resolved"`
	Unresolved []string          `json:"unresolved"`
}

func toBindingResponse(b retarget.Binding) bindingResponse {
	unresolved := b.Unresolved
	if unresolved == nil {
		unresolved = []string{}
	}
	sort.Strings(unresolved)
	return bindingResponse{
		Rig:        b.Rig,
		State:      b.State.String(),
		Resolved:   b.Resolved,
		Unresolved: unresolved,
	}
}

type resultResponse struct {
	Processed  bool    `json:"processed"`
	Dropped    string  `json:"dropped,omitempty"`
	Written    int     `json:"written"`
	Frozen     int     `json:"frozen"`
	Confidence float64 `json:"confidence"`
}

func toResultResponse(r retarget.Result) resultResponse {
	return resultResponse{
		Processed:  r.Processed(),
		Dropped:    string(r.Dropped),
		Written:    r.Written,
		Frozen:     r.Frozen,
		Confidence: r.Confidence,
	}
}

func formatTime(t time.Time) string {
	return t.Format(timeFormat)
}
