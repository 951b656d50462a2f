package retarget

import (
	"math"
	"sync"
	"testing"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestSmootherSingleSample(t *testing.T) {
	s := NewSmoother(DefaultHistorySize)
	q := FromUnitVectors(Up, r3.Vec{X: 1, Z: 1})

	if got := s.Push("left_arm", q); got != q {
		t.Errorf("Push with empty history = %v, want %v unchanged", got, q)
	}
}

func TestSmootherConvergence(t *testing.T) {
	q := FromUnitVectors(Up, r3.Vec{X: -0.3, Y: -1, Z: 0.2})

	for _, n := range []int{1, 2, 5, 20} {
		s := NewSmoother(DefaultHistorySize)
		var got quat.Number
		for i := 0; i < n; i++ {
			got = s.Push("spine", q)
		}
		if !quatNear(got, q, 1e-9) {
			t.Errorf("after %d identical samples got %v, want %v", n, got, q)
		}
	}
}

func TestSmootherCapacity(t *testing.T) {
	s := NewSmoother(3)
	for i := 0; i < 10; i++ {
		s.Push("neck", Identity)
	}
	if got := s.Len("neck"); got != 3 {
		t.Errorf("Len = %d, want 3", got)
	}
	if got := s.Len("other"); got != 0 {
		t.Errorf("Len(other) = %d, want 0", got)
	}

	if got := NewSmoother(0).Capacity(); got != 1 {
		t.Errorf("Capacity() with 0 = %d, want 1", got)
	}
}

func TestSmootherWeightsRecent(t *testing.T) {
	s := NewSmoother(DefaultHistorySize)
	old := Identity
	recent := FromUnitVectors(Up, r3.Vec{X: 1})

	s.Push("arm", old)
	got := s.Push("arm", recent)

	// Two samples weigh 1/2 and 1, so the result sits 2/3 of the way.
	want := Slerp(old, recent, 2.0/3.0)
	if !quatNear(got, want, 1e-9) {
		t.Errorf("smoothed = %v, want %v", got, want)
	}
}

func TestSmootherHemisphere(t *testing.T) {
	s := NewSmoother(DefaultHistorySize)
	q := FromUnitVectors(Up, r3.Vec{Z: 1})

	s.Push("thigh", q)
	got := s.Push("thigh", quat.Scale(-1, q))
	if !quatNear(got, q, 1e-9) {
		t.Errorf("q and -q should average to the same rotation, got %v", got)
	}
}

func TestSmootherReset(t *testing.T) {
	s := NewSmoother(DefaultHistorySize)
	s.Push("a", Identity)
	s.Push("b", Identity)
	s.Reset()
	if s.Len("a") != 0 || s.Len("b") != 0 {
		t.Error("Reset should drop every history")
	}
}

func TestSmootherConcurrent(t *testing.T) {
	s := NewSmoother(DefaultHistorySize)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.Push("shared", Identity)
			}
		}()
	}
	wg.Wait()
	if got := s.Len("shared"); got != DefaultHistorySize {
		t.Errorf("Len = %d, want %d", got, DefaultHistorySize)
	}
}

func TestSmootherSkipsNonFinite(t *testing.T) {
	s := NewSmoother(DefaultHistorySize)
	bad := quat.Number{Real: math.NaN(), Imag: 1}

	if got := s.Push("hand", bad); got != Identity {
		t.Errorf("empty history: got %v, want identity", got)
	}
	if s.Len("hand") != 0 {
		t.Fatalf("Len = %d, want 0", s.Len("hand"))
	}

	q := FromUnitVectors(Up, r3.Vec{X: 1})
	s.Push("hand", q)
	got := s.Push("hand", bad)
	if !quatNear(got, q, 1e-9) {
		t.Errorf("got %v, want the recorded average %v", got, q)
	}
	if s.Len("hand") != 1 {
		t.Errorf("Len = %d, want 1", s.Len("hand"))
	}
}
