package capture

import (
	"sync"

	"gocv.io/x/gocv"
)

// Playback replays a fixed frame sequence as a Source. It backs tests and
// headless runs where no camera is attached.
type Playback struct {
	frames  []*gocv.Mat
	index   int
	loop    bool
	fps     int
	mu      sync.Mutex
	running bool
}

// NewPlayback creates a Playback over frames. When loop is set the sequence
// restarts after the last frame.
func NewPlayback(frames []*gocv.Mat, loop bool) *Playback {
	return &Playback{
		frames: frames,
		loop:   loop,
		fps:    DefaultFPS,
	}
}

// Blank returns n black frames of the default capture size. Callers own
// the returned Mats.
func Blank(n int) []*gocv.Mat {
	frames := make([]*gocv.Mat, n)
	for i := range frames {
		m := gocv.NewMatWithSize(DefaultHeight, DefaultWidth, gocv.MatTypeCV8UC3)
		frames[i] = &m
	}
	return frames
}

func (c *Playback) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = true
	c.index = 0
	return nil
}

func (c *Playback) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	return nil
}

// ReadFrame returns a clone of the next frame.
func (c *Playback) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil, ErrCameraNotOpen
	}

	if len(c.frames) == 0 {
		return nil, ErrNoFrames
	}

	if c.index >= len(c.frames) {
		if !c.loop {
			return nil, ErrNoFrames
		}
		c.index = 0
	}

	frame := c.frames[c.index].Clone()
	c.index++

	return &frame, nil
}

func (c *Playback) SetFPS(fps int) {
	if fps <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fps = fps
}

func (c *Playback) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fps
}

func (c *Playback) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Rewind restarts playback from the first frame.
func (c *Playback) Rewind() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.index = 0
}
