// Package capture reads video frames from a camera device using GoCV (OpenCV).
package capture

import (
	"errors"
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

var (
	// ErrCameraNotOpen is returned when reading from a camera that is not open.
	ErrCameraNotOpen = errors.New("camera is not open")

	// ErrNoFrame is returned when the device produced no usable frame.
	ErrNoFrame = errors.New("no frame available")
)

// Config holds the capture device settings.
type Config struct {
	DeviceID int `json:"device_id"`
	FPS      int `json:"fps"`
	Width    int `json:"width"`
	Height   int `json:"height"`
}

// DefaultConfig returns 640x480 at 30 FPS on the first device. Cursor control
// needs a full frame rate; the tracker drops to a lower rate while no hands
// are in view.
func DefaultConfig() Config {
	return Config{
		DeviceID: 0,
		FPS:      30,
		Width:    640,
		Height:   480,
	}
}

// Validate checks the capture settings.
func (c Config) Validate() error {
	var errs []error
	if c.DeviceID < 0 {
		errs = append(errs, fmt.Errorf("device_id must not be negative, got %d", c.DeviceID))
	}
	if c.FPS <= 0 {
		errs = append(errs, fmt.Errorf("fps must be positive, got %d", c.FPS))
	}
	if c.Width <= 0 || c.Height <= 0 {
		errs = append(errs, fmt.Errorf("resolution must be positive, got %dx%d", c.Width, c.Height))
	}
	return errors.Join(errs...)
}

// Camera defines the interface for camera capture implementations.
type Camera interface {
	Open() error
	Close() error
	// ReadFrame returns the next frame. The caller must close it.
	ReadFrame() (*gocv.Mat, error)
	SetFPS(fps int)
	FPS() int
	IsOpen() bool
}

// deviceCamera captures from a local video device.
type deviceCamera struct {
	config  Config
	capture *gocv.VideoCapture
	mu      sync.Mutex
}

// NewCamera creates a Camera for the configured device. The device is not
// opened until Open is called.
func NewCamera(config Config) Camera {
	return &deviceCamera{config: config}
}

// Open opens the device and applies the configured resolution and rate.
func (c *deviceCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture != nil {
		return nil
	}

	vc, err := gocv.OpenVideoCapture(c.config.DeviceID)
	if err != nil {
		return fmt.Errorf("open camera %d: %w", c.config.DeviceID, err)
	}

	vc.Set(gocv.VideoCaptureFrameWidth, float64(c.config.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(c.config.Height))
	vc.Set(gocv.VideoCaptureFPS, float64(c.config.FPS))

	c.capture = vc
	return nil
}

// Close releases the device. Closing a camera that is not open is a no-op.
func (c *deviceCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return nil
	}

	err := c.capture.Close()
	c.capture = nil
	return err
}

func (c *deviceCamera) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return nil, ErrCameraNotOpen
	}

	mat := gocv.NewMat()
	if ok := c.capture.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("camera %d: %w", c.config.DeviceID, ErrNoFrame)
	}

	return &mat, nil
}

// SetFPS changes the capture rate. Values less than or equal to 0 are ignored.
func (c *deviceCamera) SetFPS(fps int) {
	if fps <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.config.FPS = fps
	if c.capture != nil {
		c.capture.Set(gocv.VideoCaptureFPS, float64(fps))
	}
}

func (c *deviceCamera) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.config.FPS
}

func (c *deviceCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capture != nil
}
