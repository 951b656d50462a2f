package retarget

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/ayusman/natya/internal/pose"
	"github.com/ayusman/natya/pkg/logger"
	"github.com/ayusman/natya/pkg/metrics"
)

// State is the dispatcher binding state.
type State int

const (
	Unbound State = iota
	BoundNoSkeleton
	BoundSkeleton
)

func (s State) String() string {
	switch s {
	case Unbound:
		return "unbound"
	case BoundNoSkeleton:
		return "bound_no_skeleton"
	case BoundSkeleton:
		return "bound_skeleton"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Handle is an opaque reference to a rig bone or part owned by the caller.
type Handle any

// Rig is a flattened rig handed to Bind. Parts maps concrete bone or part
// names to caller handles. Rest optionally overrides the rest direction of
// a skeleton bone, keyed by part name.
type Rig struct {
	Name     string
	Skeleton bool
	Parts    map[string]Handle
	Rest     map[string]r3.Vec
}

// Segment is a line between two proxy anchors. Confidence is the mean
// visibility of its endpoints in the frame that drew it.
type Segment struct {
	From       int     `json:"from"`
	To         int     `json:"to"`
	Start      r3.Vec  `json:"start"`
	End        r3.Vec  `json:"end"`
	Confidence float64 `json:"confidence"`
}

// Sink receives the outputs of every processed frame. Calls happen on the
// goroutine that called Process, after the engine lock is released.
type Sink interface {
	ApplyRotation(part string, h Handle, q quat.Number)
	ApplyPosition(part string, h Handle, p r3.Vec)
	ApplySegment(seg Segment)
}

// DropReason explains why a frame produced no update.
type DropReason string

const (
	DropNone       DropReason = ""
	DropUnbound    DropReason = "unbound"
	DropIncomplete DropReason = "incomplete"
	DropInvalid    DropReason = "invalid"
	DropUnreliable DropReason = "unreliable"
)

// Result summarizes one Process call.
type Result struct {
	Dropped    DropReason
	Written    int // bones or anchors updated
	Frozen     int // bones or anchors held by the confidence gate
	Confidence float64
}

// Processed reports whether the frame updated the rig.
func (r Result) Processed() bool {
	return r.Dropped == DropNone
}

// Binding describes how a rig was bound.
type Binding struct {
	Rig        string
	State      State
	Resolved   map[string]string // role or anchor name -> rig part name
	Unresolved []string
}

// Snapshot is a consistent copy of the last written pose.
type Snapshot struct {
	Rig        string
	State      State
	Seq        uint64
	Timestamp  time.Duration
	Confidence float64
	Rotations  map[string]quat.Number // by rig part name
	Positions  map[string]r3.Vec      // by rig part name
	Segments   []Segment
	Unresolved []string

	// Visibility of each bound part in the last processed frame, frozen
	// parts included. A bone reports the lower of its two endpoints.
	Visibility map[string]float64

	// Angles holds the elbow and knee angles in radians, keyed by the
	// names in pose.LimbAngles.
	Angles map[string]float64

	// Stable is set when most joints barely moved since the previous frame.
	Stable bool
}

type boundBone struct {
	mapping BoneMapping
	part    string
	handle  Handle
	rest    r3.Vec
}

type boundAnchor struct {
	index  int
	part   string
	handle Handle
}

// binding owns everything tied to one bound rig, including the smoothing
// history, so that swapping it out resets both together.
type binding struct {
	rig        string
	bones      []boundBone
	anchors    []boundAnchor
	anchorPart map[int]string
	unresolved []string
	smoother   *Smoother
}

// Engine maps pose frames onto the currently bound rig. Process is meant to
// be driven by one goroutine; Pose may be called from any goroutine.
type Engine struct {
	mu sync.RWMutex

	cfg      Config
	mappings []BoneMapping
	log      logger.Logger
	diag     logger.Logger
	metrics  *metrics.Manager
	sink     Sink

	state      State
	bound      *binding
	rotations  map[string]quat.Number
	positions  map[string]r3.Vec
	segments   []Segment
	visibility map[string]float64
	angles     map[string]float64
	stable     bool
	previous   pose.LandmarkSet
	confidence float64
	timestamp  time.Duration
	seq        uint64
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig sets the retargeting parameters.
func WithConfig(cfg Config) Option {
	return func(e *Engine) { e.cfg = cfg }
}

// WithLogger sets the logger. Per-frame diagnostics go through a
// rate-limited wrapper around it.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithMetrics sets the metrics manager.
func WithMetrics(m *metrics.Manager) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithMappings replaces the bone mapping table.
func WithMappings(m []BoneMapping) Option {
	return func(e *Engine) {
		if len(m) > 0 {
			e.mappings = m
		}
	}
}

// WithSink sets the output sink.
func WithSink(s Sink) Option {
	return func(e *Engine) { e.sink = s }
}

// New creates an unbound Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		cfg:       DefaultConfig(),
		mappings:  DefaultMappings(),
		log:       logger.Nop(),
		rotations: make(map[string]quat.Number),
		positions: make(map[string]r3.Vec),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.cfg = e.cfg.sanitize()
	e.diag = logger.Limited(e.log, time.Second, 1)
	e.metrics.SetBinding(int(Unbound), 0)
	return e
}

// Config returns the engine parameters.
func (e *Engine) Config() Config {
	return e.cfg
}

// State returns the current binding state.
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Bind resolves the rig's part names and makes it the retarget target.
// Any previous binding and its smoothing history are discarded first.
// Roles that cannot be resolved stay unbound until the next Bind.
func (e *Engine) Bind(ctx context.Context, rig Rig) Binding {
	names := make([]string, 0, len(rig.Parts))
	for name := range rig.Parts {
		names = append(names, name)
	}
	idx := newIndex(names)

	b := &binding{
		rig:        rig.Name,
		anchorPart: make(map[int]string),
		smoother:   NewSmoother(e.cfg.HistorySize),
	}
	resolved := make(map[string]string)
	state := BoundNoSkeleton

	if rig.Skeleton {
		state = BoundSkeleton
		claimed := make(map[string]string)
		for _, m := range e.mappings {
			match, ok := idx.resolve(m.Role, m.Alternates)
			if !ok {
				b.unresolved = append(b.unresolved, m.Role)
				continue
			}
			if owner, taken := claimed[match.Name]; taken {
				e.log.Debug(ctx, "rig bone already claimed",
					logger.String("role", m.Role),
					logger.String("bone", match.Name),
					logger.String("owner", owner))
				b.unresolved = append(b.unresolved, m.Role)
				continue
			}
			claimed[match.Name] = m.Role
			rest := m.RestDirection()
			if r, ok := rig.Rest[match.Name]; ok && r3.Norm(r) > degenerate {
				rest = r
			}
			b.bones = append(b.bones, boundBone{
				mapping: m,
				part:    match.Name,
				handle:  rig.Parts[match.Name],
				rest:    rest,
			})
			resolved[m.Role] = match.Name
		}
	} else {
		for _, i := range ProxyAnchors() {
			canonical, alternates := anchorNames(i)
			match, ok := idx.resolve(canonical, alternates)
			if !ok {
				b.unresolved = append(b.unresolved, canonical)
				continue
			}
			b.anchors = append(b.anchors, boundAnchor{
				index:  i,
				part:   match.Name,
				handle: rig.Parts[match.Name],
			})
			b.anchorPart[i] = match.Name
			resolved[canonical] = match.Name
		}
	}
	sort.Strings(b.unresolved)

	e.mu.Lock()
	e.bound = b
	e.state = state
	e.clearOutputs()
	e.mu.Unlock()

	e.metrics.SetBinding(int(state), len(b.unresolved))
	e.log.Info(ctx, "rig bound",
		logger.String("rig", rig.Name),
		logger.String("state", state.String()),
		logger.Int("resolved", len(resolved)),
		logger.Int("unresolved", len(b.unresolved)))
	if len(b.unresolved) > 0 {
		e.log.Warn(ctx, "unresolved rig roles",
			logger.String("rig", rig.Name),
			logger.Strings("roles", b.unresolved))
	}

	return Binding{
		Rig:        rig.Name,
		State:      state,
		Resolved:   resolved,
		Unresolved: append([]string(nil), b.unresolved...),
	}
}

// Unbind drops the current rig, its bindings and its smoothing history.
func (e *Engine) Unbind(ctx context.Context) {
	e.mu.Lock()
	prev := ""
	if e.bound != nil {
		prev = e.bound.rig
	}
	e.bound = nil
	e.state = Unbound
	e.clearOutputs()
	e.mu.Unlock()

	e.metrics.SetBinding(int(Unbound), 0)
	if prev != "" {
		e.log.Info(ctx, "rig unbound", logger.String("rig", prev))
	}
}

// Reset clears the smoothing history and returns the bound rig to rest.
func (e *Engine) Reset(ctx context.Context) {
	e.mu.Lock()
	b := e.bound
	if b == nil {
		e.mu.Unlock()
		return
	}
	b.smoother.Reset()
	e.clearOutputs()
	var out output
	for _, bb := range b.bones {
		e.rotations[bb.part] = Identity
		out.rotations = append(out.rotations, partRotation{bone: bb, q: Identity})
	}
	e.seq++
	e.mu.Unlock()

	e.flush(out)
	e.log.Info(ctx, "pose reset", logger.String("rig", b.rig))
}

// Pose returns a copy of the last written pose.
func (e *Engine) Pose() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	s := Snapshot{
		State:      e.state,
		Seq:        e.seq,
		Timestamp:  e.timestamp,
		Confidence: e.confidence,
		Rotations:  make(map[string]quat.Number, len(e.rotations)),
		Positions:  make(map[string]r3.Vec, len(e.positions)),
		Segments:   append([]Segment(nil), e.segments...),
		Visibility: make(map[string]float64, len(e.visibility)),
		Angles:     make(map[string]float64, len(e.angles)),
		Stable:     e.stable,
	}
	if e.bound != nil {
		s.Rig = e.bound.rig
		s.Unresolved = append([]string(nil), e.bound.unresolved...)
	}
	for k, v := range e.rotations {
		s.Rotations[k] = v
	}
	for k, v := range e.positions {
		s.Positions[k] = v
	}
	for k, v := range e.visibility {
		s.Visibility[k] = v
	}
	for k, v := range e.angles {
		s.Angles[k] = v
	}
	return s
}

// Process retargets one frame onto the bound rig. Frames that cannot be
// used are dropped and the previous pose is kept; the returned error is
// only non-nil when ctx is already done.
func (e *Engine) Process(ctx context.Context, frame pose.Frame) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	start := time.Now()

	res, out := e.process(ctx, frame)
	if !res.Processed() {
		return res, nil
	}

	e.flush(out)
	e.metrics.FrameProcessed(time.Since(start))
	e.metrics.BonesWritten(res.Written, res.Frozen)
	e.metrics.SetPoseConfidence(res.Confidence)
	return res, nil
}

func (e *Engine) process(ctx context.Context, frame pose.Frame) (Result, output) {
	e.mu.Lock()
	defer e.mu.Unlock()

	b := e.bound
	if b == nil {
		return Result{Dropped: DropUnbound}, output{}
	}

	if err := frame.Landmarks.Validate(); err != nil {
		reason, label := DropIncomplete, metrics.ReasonIncomplete
		if errors.Is(err, pose.ErrInvalidLandmark) {
			reason, label = DropInvalid, metrics.ReasonInvalid
		}
		e.metrics.FrameDropped(label)
		e.diag.Warn(ctx, "frame dropped", logger.String("reason", string(reason)), logger.Error(err))
		return Result{Dropped: reason}, output{}
	}

	confidence := pose.Confidence(frame.Landmarks)
	if e.cfg.ReliableRatio > 0 && !pose.Reliable(frame.Landmarks, e.cfg.ReliableVisibility, e.cfg.ReliableRatio) {
		e.metrics.FrameDropped(metrics.ReasonUnreliable)
		e.diag.Warn(ctx, "frame dropped",
			logger.String("reason", string(DropUnreliable)),
			logger.Float64("confidence", confidence))
		return Result{Dropped: DropUnreliable, Confidence: confidence}, output{}
	}

	norm := e.cfg.normalizer(frame.World)
	var res Result
	var out output
	var ext pose.LandmarkSet
	e.visibility = make(map[string]float64)
	if e.state == BoundSkeleton {
		ext = e.cfg.synthesizer().Extend(norm.Apply(frame.Landmarks))
		res, out = e.applySkeleton(b, ext)
	} else {
		ext = e.cfg.synthesizer().Extend(norm.ApplyHipCentered(frame.Landmarks, e.cfg.HipScale))
		res, out = e.applyProxy(b, ext)
	}
	res.Confidence = confidence

	e.angles = pose.Angles(ext, e.cfg.ConfidenceGate)
	e.stable = pose.Stable(e.previous, ext, e.cfg.StableDistance, e.cfg.StableRatio)
	e.previous = ext

	e.confidence = confidence
	e.timestamp = frame.Timestamp
	e.seq++
	return res, out
}

func (e *Engine) applySkeleton(b *binding, ext pose.LandmarkSet) (Result, output) {
	var res Result
	var out output
	for _, bb := range b.bones {
		parent, child := ext.At(bb.mapping.Parent), ext.At(bb.mapping.Child)
		e.visibility[bb.part] = min(parent.Vis(), child.Vis())
		if !e.passes(parent) || !e.passes(child) {
			res.Frozen++
			continue
		}

		q := SolveRotation(parent.Vec(), child.Vec(), bb.rest)
		q = b.smoother.Push(bb.mapping.Role, q)
		if e.cfg.ApplyBlend < 1 {
			prev, ok := e.rotations[bb.part]
			if !ok {
				prev = Identity
			}
			q = Slerp(prev, q, e.cfg.ApplyBlend)
		}

		e.rotations[bb.part] = q
		out.rotations = append(out.rotations, partRotation{bone: bb, q: q})
		res.Written++
	}
	return res, out
}

func (e *Engine) applyProxy(b *binding, ext pose.LandmarkSet) (Result, output) {
	var res Result
	var out output
	for _, a := range b.anchors {
		l := ext.At(a.index)
		e.visibility[a.part] = l.Vis()
		if !e.passes(l) {
			res.Frozen++
			continue
		}

		p := l.Vec()
		if prev, ok := e.positions[a.part]; ok && e.cfg.PositionBlend < 1 {
			p = r3.Add(prev, r3.Scale(e.cfg.PositionBlend, r3.Sub(p, prev)))
		}
		e.positions[a.part] = p
		out.positions = append(out.positions, partPosition{anchor: a, p: p})
		res.Written++
	}

	e.segments = e.segments[:0]
	for _, c := range ProxyConnections() {
		from, ok1 := e.anchorPosition(b, c[0])
		to, ok2 := e.anchorPosition(b, c[1])
		if !ok1 || !ok2 {
			continue
		}
		e.segments = append(e.segments, Segment{
			From:       c[0],
			To:         c[1],
			Start:      from,
			End:        to,
			Confidence: (ext.At(c[0]).Vis() + ext.At(c[1]).Vis()) / 2,
		})
	}
	out.segments = append([]Segment(nil), e.segments...)
	return res, out
}

func (e *Engine) anchorPosition(b *binding, index int) (r3.Vec, bool) {
	part, ok := b.anchorPart[index]
	if !ok {
		return r3.Vec{}, false
	}
	p, ok := e.positions[part]
	return p, ok
}

// passes applies the per-endpoint confidence gate.
func (e *Engine) passes(l *pose.Landmark) bool {
	return l != nil && l.Vis() >= e.cfg.ConfidenceGate
}

func (e *Engine) clearOutputs() {
	e.rotations = make(map[string]quat.Number)
	e.positions = make(map[string]r3.Vec)
	e.segments = nil
	e.visibility = nil
	e.angles = nil
	e.stable = false
	e.previous = nil
	e.confidence = 0
}

type partRotation struct {
	bone boundBone
	q    quat.Number
}

type partPosition struct {
	anchor boundAnchor
	p      r3.Vec
}

type output struct {
	rotations []partRotation
	positions []partPosition
	segments  []Segment
}

func (e *Engine) flush(out output) {
	if e.sink == nil {
		return
	}
	for _, r := range out.rotations {
		e.sink.ApplyRotation(r.bone.part, r.bone.handle, r.q)
	}
	for _, p := range out.positions {
		e.sink.ApplyPosition(p.anchor.part, p.anchor.handle, p.p)
	}
	for _, s := range out.segments {
		e.sink.ApplySegment(s)
	}
}
