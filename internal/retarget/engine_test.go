package retarget

import (
	"context"
	"encoding/json"
	"math"
	"sync"
	"testing"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/ayusman/natya/internal/pose"
)

// armsDown returns an image-space landmark set of a subject standing with
// both arms hanging straight down. After default normalization the left
// shoulder sits at (-0.5, 0, 0) and the left elbow at (-0.5, -0.5, 0).
func armsDown() pose.LandmarkSet {
	s := make(pose.LandmarkSet, pose.NumLandmarks)
	for i := range s {
		s[i] = pose.NewLandmark(0.5, 0.3, 0, 1)
	}
	set := func(i int, x, y, z float64) {
		s[i] = pose.NewLandmark(x, y, z, 1)
	}
	set(pose.Nose, 0.5, 0.35, -0.05)
	set(pose.LeftShoulder, 0.375, 0.5, 0)
	set(pose.RightShoulder, 0.625, 0.5, 0)
	set(pose.LeftElbow, 0.375, 0.625, 0)
	set(pose.RightElbow, 0.625, 0.625, 0)
	set(pose.LeftWrist, 0.375, 0.75, 0)
	set(pose.RightWrist, 0.625, 0.75, 0)
	set(pose.LeftIndex, 0.375, 0.8, 0)
	set(pose.RightIndex, 0.625, 0.8, 0)
	set(pose.LeftHip, 0.42, 0.75, 0)
	set(pose.RightHip, 0.58, 0.75, 0)
	set(pose.LeftKnee, 0.42, 0.875, 0)
	set(pose.RightKnee, 0.58, 0.875, 0)
	set(pose.LeftAnkle, 0.42, 1.0, 0)
	set(pose.RightAnkle, 0.58, 1.0, 0)
	set(pose.LeftFootIndex, 0.42, 1.02, -0.1)
	set(pose.RightFootIndex, 0.58, 1.02, -0.1)
	return s
}

func frameOf(s pose.LandmarkSet) pose.Frame {
	return pose.Frame{Landmarks: s}
}

func mixamoRig() Rig {
	parts := make(map[string]Handle)
	for _, name := range []string{
		"Hips", "Spine", "Spine1", "Neck", "Head",
		"LeftShoulder", "LeftArm", "LeftForeArm",
		"RightShoulder", "RightArm", "RightForeArm",
		"LeftUpLeg", "LeftLeg", "LeftFoot",
		"RightUpLeg", "RightLeg", "RightFoot",
	} {
		parts[name] = name
	}
	return Rig{Name: "mixamo", Skeleton: true, Parts: parts}
}

func proxyRig() Rig {
	parts := make(map[string]Handle)
	for i := 0; i < pose.NumLandmarks; i++ {
		parts[pose.Name(i)] = i
	}
	parts["hip_center"] = pose.HipCenter
	return Rig{Name: "proxy", Parts: parts}
}

type recordingSink struct {
	mu        sync.Mutex
	rotations map[string]quat.Number
	positions map[string]r3.Vec
	segments  int
}

func newRecordingSink() *recordingSink {
	return &recordingSink{
		rotations: make(map[string]quat.Number),
		positions: make(map[string]r3.Vec),
	}
}

func (s *recordingSink) ApplyRotation(part string, _ Handle, q quat.Number) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rotations[part] = q
}

func (s *recordingSink) ApplyPosition(part string, _ Handle, p r3.Vec) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[part] = p
}

func (s *recordingSink) ApplySegment(Segment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.segments++
}

func TestEngineStates(t *testing.T) {
	ctx := context.Background()
	e := New()

	if e.State() != Unbound {
		t.Fatalf("new engine state = %v, want unbound", e.State())
	}

	res, err := e.Process(ctx, frameOf(armsDown()))
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if res.Dropped != DropUnbound {
		t.Errorf("unbound Process dropped = %q, want %q", res.Dropped, DropUnbound)
	}

	e.Bind(ctx, proxyRig())
	if e.State() != BoundNoSkeleton {
		t.Errorf("state after proxy bind = %v", e.State())
	}

	e.Bind(ctx, mixamoRig())
	if e.State() != BoundSkeleton {
		t.Errorf("state after skeleton bind = %v", e.State())
	}

	e.Unbind(ctx)
	if e.State() != Unbound {
		t.Errorf("state after unbind = %v", e.State())
	}
	if snap := e.Pose(); len(snap.Rotations) != 0 || snap.Rig != "" {
		t.Errorf("snapshot after unbind = %+v, want empty", snap)
	}
}

func TestEngineArmPointsDown(t *testing.T) {
	ctx := context.Background()
	e := New()
	e.Bind(ctx, Rig{Name: "arm", Skeleton: true, Parts: map[string]Handle{"LeftShoulder": 1}})

	norm := e.Config().normalizer(false).Apply(armsDown())
	if !vecNear(norm[pose.LeftShoulder].Vec(), r3.Vec{X: -0.5}, epsilon) {
		t.Fatalf("normalized left shoulder = %v", norm[pose.LeftShoulder].Vec())
	}
	if !vecNear(norm[pose.LeftElbow].Vec(), r3.Vec{X: -0.5, Y: -0.5}, epsilon) {
		t.Fatalf("normalized left elbow = %v", norm[pose.LeftElbow].Vec())
	}

	res, err := e.Process(ctx, frameOf(armsDown()))
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if !res.Processed() || res.Written != 1 {
		t.Fatalf("result = %+v, want one bone written", res)
	}

	q := e.Pose().Rotations["LeftShoulder"]
	got := Rotate(q, Up)
	if !vecNear(got, r3.Vec{Y: -1}, 1e-9) {
		t.Errorf("Rotate(q, up) = %v, want (0,-1,0)", got)
	}
}

func TestEngineDeterminism(t *testing.T) {
	ctx := context.Background()
	a, b := New(), New()
	a.Bind(ctx, mixamoRig())
	b.Bind(ctx, mixamoRig())

	frames := []pose.LandmarkSet{armsDown(), armsDown(), armsDown()}
	frames[1][pose.LeftWrist] = pose.NewLandmark(0.2, 0.6, 0.05, 1)
	frames[2][pose.RightKnee] = pose.NewLandmark(0.65, 0.85, -0.1, 0.9)

	for _, f := range frames {
		if _, err := a.Process(ctx, frameOf(f)); err != nil {
			t.Fatal(err)
		}
		if _, err := b.Process(ctx, frameOf(f)); err != nil {
			t.Fatal(err)
		}
	}

	pa, pb := a.Pose(), b.Pose()
	if len(pa.Rotations) == 0 {
		t.Fatal("no rotations written")
	}
	for part, q := range pa.Rotations {
		if pb.Rotations[part] != q {
			t.Errorf("%s: %v != %v", part, q, pb.Rotations[part])
		}
	}
}

func TestEngineConfidenceGate(t *testing.T) {
	ctx := context.Background()
	e := New()
	e.Bind(ctx, mixamoRig())

	if _, err := e.Process(ctx, frameOf(armsDown())); err != nil {
		t.Fatal(err)
	}
	before := e.Pose()

	// Move the left arm and hide the elbow: both bones touching it must hold.
	f := armsDown()
	f[pose.LeftElbow] = pose.NewLandmark(0.2, 0.5, 0, 0.3)
	f[pose.LeftWrist] = pose.NewLandmark(0.1, 0.5, 0, 1)

	res, err := e.Process(ctx, frameOf(f))
	if err != nil {
		t.Fatal(err)
	}
	if res.Frozen != 2 {
		t.Errorf("Frozen = %d, want 2", res.Frozen)
	}

	after := e.Pose()
	for _, part := range []string{"LeftShoulder", "LeftArm"} {
		if after.Rotations[part] != before.Rotations[part] {
			t.Errorf("%s changed under the gate: %v -> %v", part, before.Rotations[part], after.Rotations[part])
		}
	}

	e.mu.RLock()
	hist := e.bound.smoother.Len("left_shoulder")
	e.mu.RUnlock()
	if hist != 1 {
		t.Errorf("gated bone history = %d, want 1", hist)
	}
}

func TestEngineDegenerateDirection(t *testing.T) {
	ctx := context.Background()
	e := New()
	e.Bind(ctx, mixamoRig())

	f := armsDown()
	f[pose.LeftElbow] = pose.NewLandmark(0.375, 0.5, 0, 1) // on top of the shoulder
	if _, err := e.Process(ctx, frameOf(f)); err != nil {
		t.Fatal(err)
	}
	if q := e.Pose().Rotations["LeftShoulder"]; q != Identity {
		t.Errorf("degenerate bone rotation = %v, want identity", q)
	}
}

func TestEngineIncompleteFrame(t *testing.T) {
	ctx := context.Background()
	e := New()
	e.Bind(ctx, mixamoRig())
	if _, err := e.Process(ctx, frameOf(armsDown())); err != nil {
		t.Fatal(err)
	}
	before := e.Pose()

	t.Run("short set", func(t *testing.T) {
		res, err := e.Process(ctx, frameOf(armsDown()[:20]))
		if err != nil {
			t.Fatal(err)
		}
		if res.Dropped != DropIncomplete {
			t.Errorf("Dropped = %q, want %q", res.Dropped, DropIncomplete)
		}
	})

	t.Run("nil landmark", func(t *testing.T) {
		f := armsDown()
		f[pose.RightWrist] = nil
		res, _ := e.Process(ctx, frameOf(f))
		if res.Dropped != DropIncomplete {
			t.Errorf("Dropped = %q, want %q", res.Dropped, DropIncomplete)
		}
	})

	after := e.Pose()
	if after.Seq != before.Seq {
		t.Errorf("Seq moved from %d to %d on dropped frames", before.Seq, after.Seq)
	}
	for part, q := range before.Rotations {
		if after.Rotations[part] != q {
			t.Errorf("%s changed on a dropped frame", part)
		}
	}
}

func TestEngineUnreliableFrame(t *testing.T) {
	ctx := context.Background()
	e := New()
	e.Bind(ctx, mixamoRig())

	f := armsDown()
	for _, i := range []int{pose.LeftElbow, pose.RightElbow, pose.LeftWrist, pose.RightWrist} {
		f[i] = pose.NewLandmark(f[i].X, f[i].Y, 0, 0.1)
	}
	res, err := e.Process(ctx, frameOf(f))
	if err != nil {
		t.Fatal(err)
	}
	if res.Dropped != DropUnreliable {
		t.Errorf("Dropped = %q, want %q", res.Dropped, DropUnreliable)
	}
}

func TestEngineGracefulSkip(t *testing.T) {
	ctx := context.Background()
	e := New()

	b := e.Bind(ctx, Rig{
		Name:     "partial",
		Skeleton: true,
		Parts:    map[string]Handle{"Hips": 0, "LeftShoulder": 1, "Tail": 2},
	})
	if len(b.Resolved) != 1 || b.Resolved["left_shoulder"] != "LeftShoulder" {
		t.Errorf("Resolved = %v", b.Resolved)
	}
	if len(b.Unresolved) != len(DefaultMappings())-1 {
		t.Errorf("Unresolved = %v", b.Unresolved)
	}

	res, err := e.Process(ctx, frameOf(armsDown()))
	if err != nil {
		t.Fatal(err)
	}
	if !res.Processed() || res.Written != 1 {
		t.Errorf("result = %+v, want one bone written", res)
	}

	e.Bind(ctx, Rig{Name: "empty", Skeleton: true})
	res, err = e.Process(ctx, frameOf(armsDown()))
	if err != nil || !res.Processed() || res.Written != 0 {
		t.Errorf("empty rig result = %+v, %v", res, err)
	}
}

func TestEngineBoneClaimedOnce(t *testing.T) {
	ctx := context.Background()
	e := New()

	// left_arm and left_forearm both list LeftForeArm; only the first gets it.
	b := e.Bind(ctx, Rig{Skeleton: true, Parts: map[string]Handle{"LeftForeArm": 1}})
	if b.Resolved["left_arm"] != "LeftForeArm" {
		t.Errorf("left_arm = %q, want LeftForeArm", b.Resolved["left_arm"])
	}
	if _, ok := b.Resolved["left_forearm"]; ok {
		t.Error("left_forearm should not share a bone with left_arm")
	}
}

func TestEngineRebindClearsHistory(t *testing.T) {
	ctx := context.Background()
	e := New()
	e.Bind(ctx, mixamoRig())
	for i := 0; i < 3; i++ {
		if _, err := e.Process(ctx, frameOf(armsDown())); err != nil {
			t.Fatal(err)
		}
	}

	e.mu.RLock()
	old := e.bound.smoother
	e.mu.RUnlock()
	if old.Len("spine") != 3 {
		t.Fatalf("history = %d, want 3", old.Len("spine"))
	}

	e.Bind(ctx, mixamoRig())
	e.mu.RLock()
	fresh := e.bound.smoother
	e.mu.RUnlock()
	if fresh == old || fresh.Len("spine") != 0 {
		t.Error("rebinding should start a fresh history")
	}
	if len(e.Pose().Rotations) != 0 {
		t.Error("rebinding should clear written rotations")
	}
}

func TestEngineReset(t *testing.T) {
	ctx := context.Background()
	sink := newRecordingSink()
	e := New(WithSink(sink))
	e.Bind(ctx, mixamoRig())
	if _, err := e.Process(ctx, frameOf(armsDown())); err != nil {
		t.Fatal(err)
	}

	e.Reset(ctx)

	for part, q := range e.Pose().Rotations {
		if q != Identity {
			t.Errorf("%s = %v after reset, want identity", part, q)
		}
	}
	if q := sink.rotations["LeftShoulder"]; q != Identity {
		t.Errorf("sink LeftShoulder = %v after reset, want identity", q)
	}
	e.mu.RLock()
	n := e.bound.smoother.Len("left_shoulder")
	e.mu.RUnlock()
	if n != 0 {
		t.Errorf("history after reset = %d, want 0", n)
	}
}

func TestEngineApplyBlend(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.ApplyBlend = 0.15
	e := New(WithConfig(cfg))
	e.Bind(ctx, Rig{Skeleton: true, Parts: map[string]Handle{"LeftShoulder": 1}})

	if _, err := e.Process(ctx, frameOf(armsDown())); err != nil {
		t.Fatal(err)
	}
	q := e.Pose().Rotations["LeftShoulder"]
	target := FromUnitVectors(Up, r3.Vec{Y: -1})
	want := Slerp(Identity, target, 0.15)
	if !quatNear(q, want, 1e-9) {
		t.Errorf("blended rotation = %v, want %v", q, want)
	}
}

func TestEngineProxy(t *testing.T) {
	ctx := context.Background()
	sink := newRecordingSink()
	e := New(WithSink(sink))
	b := e.Bind(ctx, proxyRig())

	if b.State != BoundNoSkeleton {
		t.Fatalf("state = %v", b.State)
	}
	if b.Resolved["left_shoulder"] != "left_shoulder" || b.Resolved["hip_center"] != "hip_center" {
		t.Errorf("Resolved = %v", b.Resolved)
	}

	res, err := e.Process(ctx, frameOf(armsDown()))
	if err != nil {
		t.Fatal(err)
	}
	if res.Written != pose.NumLandmarks+1 {
		t.Errorf("Written = %d, want %d", res.Written, pose.NumLandmarks+1)
	}

	snap := e.Pose()
	if hc := snap.Positions["hip_center"]; !vecNear(hc, r3.Vec{}, epsilon) {
		t.Errorf("hip center = %v, want origin", hc)
	}
	if ls := snap.Positions["left_shoulder"]; !vecNear(ls, r3.Vec{X: -0.25, Y: 0.5}, epsilon) {
		t.Errorf("left shoulder = %v, want (-0.25, 0.5, 0)", ls)
	}

	// 31 physical connections; the virtual chain needs spine_root and neck.
	if len(snap.Segments) != 31 {
		t.Errorf("segments = %d, want 31", len(snap.Segments))
	}
	if sink.segments != 31 || len(sink.positions) != pose.NumLandmarks+1 {
		t.Errorf("sink saw %d segments and %d positions", sink.segments, len(sink.positions))
	}
}

func TestEngineProxyAlternateNames(t *testing.T) {
	ctx := context.Background()
	e := New()
	b := e.Bind(ctx, Rig{Parts: map[string]Handle{"joint_11": 1, "RightShoulder": 2}})

	if b.Resolved["left_shoulder"] != "joint_11" {
		t.Errorf("left_shoulder = %q, want joint_11", b.Resolved["left_shoulder"])
	}
	if b.Resolved["right_shoulder"] != "RightShoulder" {
		t.Errorf("right_shoulder = %q, want RightShoulder", b.Resolved["right_shoulder"])
	}
}

func TestEngineProxyPositionBlend(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.PositionBlend = 0.5
	e := New(WithConfig(cfg))
	e.Bind(ctx, proxyRig())

	if _, err := e.Process(ctx, frameOf(armsDown())); err != nil {
		t.Fatal(err)
	}
	first := e.Pose().Positions["left_wrist"]

	f := armsDown()
	f[pose.LeftWrist] = pose.NewLandmark(0.375+0.25, 0.75, 0, 1) // +0.5 after hip scale
	if _, err := e.Process(ctx, frameOf(f)); err != nil {
		t.Fatal(err)
	}
	got := e.Pose().Positions["left_wrist"]
	want := r3.Add(first, r3.Vec{X: 0.25})
	if !vecNear(got, want, 1e-9) {
		t.Errorf("blended wrist = %v, want %v", got, want)
	}
}

func TestEngineContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := New()
	e.Bind(context.Background(), mixamoRig())
	if _, err := e.Process(ctx, frameOf(armsDown())); err == nil {
		t.Error("Process with cancelled context should return its error")
	}
}

func TestEngineConcurrentReaders(t *testing.T) {
	ctx := context.Background()
	e := New()
	e.Bind(ctx, mixamoRig())

	var wg sync.WaitGroup
	done := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
					_ = e.Pose()
				}
			}
		}()
	}

	for i := 0; i < 50; i++ {
		if _, err := e.Process(ctx, frameOf(armsDown())); err != nil {
			t.Fatal(err)
		}
	}
	close(done)
	wg.Wait()

	if got := e.Pose().Seq; got != 50 {
		t.Errorf("Seq = %d, want 50", got)
	}
}

func TestEngineInvalidFrame(t *testing.T) {
	ctx := context.Background()
	e := New()
	e.Bind(ctx, mixamoRig())
	if _, err := e.Process(ctx, frameOf(armsDown())); err != nil {
		t.Fatal(err)
	}
	before := e.Pose()

	bad := map[string]*pose.Landmark{
		"huge coordinate":     pose.NewLandmark(1e308, 0.625, 0, 1),
		"nan coordinate":      pose.NewLandmark(math.NaN(), 0.625, 0, 1),
		"huge visibility":     pose.NewLandmark(0.375, 0.625, 0, 1e308),
		"infinite depth":      pose.NewLandmark(0.375, 0.625, math.Inf(1), 1),
		"negative visibility": pose.NewLandmark(0.375, 0.625, 0, -1),
	}
	for name, l := range bad {
		t.Run(name, func(t *testing.T) {
			f := armsDown()
			f[pose.LeftElbow] = l
			res, err := e.Process(ctx, frameOf(f))
			if err != nil {
				t.Fatal(err)
			}
			if res.Dropped != DropInvalid {
				t.Errorf("Dropped = %q, want %q", res.Dropped, DropInvalid)
			}
		})
	}

	after := e.Pose()
	if after.Seq != before.Seq || after.Confidence != before.Confidence {
		t.Errorf("snapshot moved on invalid frames: seq %d -> %d, confidence %v -> %v",
			before.Seq, after.Seq, before.Confidence, after.Confidence)
	}
	for part, q := range before.Rotations {
		if after.Rotations[part] != q {
			t.Errorf("%s changed on an invalid frame", part)
		}
	}

	for i := 0; i < 3; i++ {
		if _, err := e.Process(ctx, frameOf(armsDown())); err != nil {
			t.Fatal(err)
		}
	}
	snap := e.Pose()
	for part, q := range snap.Rotations {
		if !Finite(q) {
			t.Errorf("%s = %v, want a finite rotation", part, q)
		}
	}
	if _, err := json.Marshal(snap); err != nil {
		t.Errorf("snapshot no longer encodes: %v", err)
	}
}

func TestEngineProxyDampsSpikes(t *testing.T) {
	ctx := context.Background()
	e := New()
	e.Bind(ctx, proxyRig())

	for i := 0; i < 5; i++ {
		if _, err := e.Process(ctx, frameOf(armsDown())); err != nil {
			t.Fatal(err)
		}
	}
	before := e.Pose().Positions["left_wrist"]

	f := armsDown()
	f[pose.LeftWrist] = pose.NewLandmark(0.375+0.25, 0.75, 0, 1) // +0.5 after hip scale
	if _, err := e.Process(ctx, frameOf(f)); err != nil {
		t.Fatal(err)
	}
	got := e.Pose().Positions["left_wrist"]
	want := r3.Add(before, r3.Vec{X: 0.5 * DefaultPositionBlend})
	if !vecNear(got, want, 1e-9) {
		t.Errorf("wrist after one spike = %v, want %v", got, want)
	}

	// The spike's effect decays once the input returns.
	if _, err := e.Process(ctx, frameOf(armsDown())); err != nil {
		t.Fatal(err)
	}
	back := e.Pose().Positions["left_wrist"]
	if d := r3.Norm(r3.Sub(back, before)); d >= r3.Norm(r3.Sub(got, before)) {
		t.Errorf("wrist did not settle back: distance %v", d)
	}
}

func TestEngineSnapshotFeedback(t *testing.T) {
	ctx := context.Background()
	e := New()
	e.Bind(ctx, proxyRig())

	if _, err := e.Process(ctx, frameOf(armsDown())); err != nil {
		t.Fatal(err)
	}
	snap := e.Pose()
	if snap.Stable {
		t.Error("first frame reported stable")
	}
	if v := snap.Visibility["left_wrist"]; v != 1 {
		t.Errorf("left_wrist visibility = %v, want 1", v)
	}
	if a, ok := snap.Angles["left_elbow"]; !ok || math.Abs(a-math.Pi) > 1e-9 {
		t.Errorf("left_elbow angle = %v (%v), want pi", a, ok)
	}
	if a := snap.Angles["right_knee"]; math.Abs(a-math.Pi) > 1e-9 {
		t.Errorf("right_knee angle = %v, want pi", a)
	}

	f := armsDown()
	f[pose.LeftElbow] = pose.NewLandmark(0.375, 0.625, 0, 0.3)
	if _, err := e.Process(ctx, frameOf(f)); err != nil {
		t.Fatal(err)
	}
	snap = e.Pose()
	if !snap.Stable {
		t.Error("unchanged positions not reported stable")
	}
	if v := snap.Visibility["left_elbow"]; math.Abs(v-0.3) > 1e-9 {
		t.Errorf("frozen left_elbow visibility = %v, want 0.3", v)
	}
	if _, ok := snap.Angles["left_elbow"]; ok {
		t.Error("left_elbow angle reported below the confidence gate")
	}

	var found bool
	for _, seg := range snap.Segments {
		if (seg.From == pose.LeftShoulder && seg.To == pose.LeftElbow) ||
			(seg.From == pose.LeftElbow && seg.To == pose.LeftShoulder) {
			found = true
			if math.Abs(seg.Confidence-0.65) > 1e-9 {
				t.Errorf("shoulder-elbow confidence = %v, want 0.65", seg.Confidence)
			}
		}
	}
	if !found {
		t.Error("no shoulder-elbow segment")
	}

	e.Reset(ctx)
	snap = e.Pose()
	if snap.Stable || len(snap.Angles) != 0 || len(snap.Visibility) != 0 {
		t.Errorf("reset kept feedback: stable=%v angles=%v visibility=%d", snap.Stable, snap.Angles, len(snap.Visibility))
	}
}

func TestEngineSkeletonVisibility(t *testing.T) {
	ctx := context.Background()
	e := New()
	e.Bind(ctx, mixamoRig())

	f := armsDown()
	f[pose.LeftWrist] = pose.NewLandmark(0.375, 0.75, 0, 0.4)
	if _, err := e.Process(ctx, frameOf(f)); err != nil {
		t.Fatal(err)
	}
	snap := e.Pose()
	// LeftShoulder spans shoulder to elbow, LeftArm elbow to wrist.
	if v := snap.Visibility["LeftShoulder"]; v != 1 {
		t.Errorf("LeftShoulder visibility = %v, want 1", v)
	}
	if v := snap.Visibility["LeftArm"]; math.Abs(v-0.4) > 1e-9 {
		t.Errorf("LeftArm visibility = %v, want the lower endpoint 0.4", v)
	}
}
