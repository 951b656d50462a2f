package retarget

import (
	"sync"

	"gonum.org/v1/gonum/num/quat"
)

// DefaultHistorySize is the number of recent rotations kept per bone.
const DefaultHistorySize = 5

// Smoother keeps a bounded rotation history per bone and returns a weighted
// average that favors recent samples.
type Smoother struct {
	mu       sync.Mutex
	capacity int
	history  map[string][]quat.Number
}

// NewSmoother creates a Smoother holding at most capacity samples per bone.
// Capacities below one are raised to one.
func NewSmoother(capacity int) *Smoother {
	if capacity < 1 {
		capacity = 1
	}
	return &Smoother{
		capacity: capacity,
		history:  make(map[string][]quat.Number),
	}
}

// Capacity returns the maximum history length per bone.
func (s *Smoother) Capacity() int {
	return s.capacity
}

// Push appends q to the bone's history, evicting the oldest sample when full,
// and returns the smoothed rotation. The sample at position i (oldest first)
// of n carries weight (i+1)/n and is folded into a running slerp, so a single
// sample is returned unchanged. A non-finite q is not recorded; the current
// average (or Identity for an empty history) is returned instead.
func (s *Smoother) Push(key string, q quat.Number) quat.Number {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf := s.history[key]
	if !Finite(q) {
		if len(buf) == 0 {
			return Identity
		}
		return average(buf)
	}
	if len(buf) >= s.capacity {
		// Shift left, drop oldest
		copy(buf, buf[1:])
		buf = buf[:len(buf)-1]
	}
	buf = append(buf, q)
	s.history[key] = buf

	return average(buf)
}

// Len returns the current history length for a bone.
func (s *Smoother) Len(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history[key])
}

// Reset drops every history.
func (s *Smoother) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = make(map[string][]quat.Number)
}

func average(buf []quat.Number) quat.Number {
	n := float64(len(buf))
	smoothed := buf[0]
	var total float64
	for i, q := range buf {
		w := float64(i+1) / n
		if Dot(smoothed, q) < 0 {
			q = quat.Scale(-1, q)
		}
		smoothed = Slerp(smoothed, q, w/(total+w))
		total += w
	}
	return smoothed
}
