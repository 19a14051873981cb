package capture

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockCamera plays back a fixed frame sequence. With no frames configured it
// produces blank frames of the given size, which is enough to drive a
// MockDetector through the tracker.
type MockCamera struct {
	mu      sync.Mutex
	frames  []*gocv.Mat
	width   int
	height  int
	index   int
	loop    bool
	fps     int
	running bool
	reads   int
}

// NewMockCamera creates a camera that replays frames, looping if loop is set.
func NewMockCamera(frames []*gocv.Mat, loop bool) *MockCamera {
	return &MockCamera{frames: frames, loop: loop, fps: DefaultConfig().FPS}
}

// NewBlankCamera creates a camera that returns blank width x height frames
// forever.
func NewBlankCamera(width, height int) *MockCamera {
	return &MockCamera{width: width, height: height, loop: true, fps: DefaultConfig().FPS}
}

func (c *MockCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = true
	c.index = 0
	return nil
}

func (c *MockCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	return nil
}

func (c *MockCamera) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil, ErrCameraNotOpen
	}

	if len(c.frames) == 0 {
		if c.width <= 0 || c.height <= 0 {
			return nil, ErrNoFrame
		}
		c.reads++
		frame := gocv.NewMatWithSize(c.height, c.width, gocv.MatTypeCV8UC3)
		return &frame, nil
	}

	if c.index >= len(c.frames) {
		if !c.loop {
			return nil, ErrNoFrame
		}
		c.index = 0
	}

	// Clone so callers can close the frame without touching the original.
	frame := c.frames[c.index].Clone()
	c.index++
	c.reads++
	return &frame, nil
}

func (c *MockCamera) SetFPS(fps int) {
	if fps <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fps = fps
}

func (c *MockCamera) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fps
}

func (c *MockCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Reads returns the number of frames handed out.
func (c *MockCamera) Reads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}

// Reset restarts playback from the beginning.
func (c *MockCamera) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.index = 0
}
