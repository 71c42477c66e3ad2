package camera

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// ErrClosed is returned after the camera has been released.
var ErrClosed = errors.New("camera closed")

// Capture manages webcam capture
type Capture struct {
	webcam   *gocv.VideoCapture
	frame    gocv.Mat
	deviceID int
	mu       sync.Mutex
}

// Open opens a camera with a preferred 720p resolution
func Open(deviceID int) (*Capture, error) {
	return OpenWithResolution(deviceID, 1280, 720)
}

// OpenWithResolution opens a camera with a preferred resolution
func OpenWithResolution(deviceID, width, height int) (*Capture, error) {
	webcam, err := gocv.OpenVideoCapture(deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to open camera %d: %w", deviceID, err)
	}

	webcam.Set(gocv.VideoCaptureFrameWidth, float64(width))
	webcam.Set(gocv.VideoCaptureFrameHeight, float64(height))

	// Frames may arrive at a different size; Snapshot reports what it gets.
	return &Capture{
		webcam:   webcam,
		frame:    gocv.NewMat(),
		deviceID: deviceID,
	}, nil
}

// Frame grabs the current frame. It reports false when no frame is ready.
func (c *Capture) Frame() (image.Image, bool) {
	img, err := c.Snapshot()
	return img, err == nil
}

// Snapshot grabs one frame as an image.
func (c *Capture) Snapshot() (image.Image, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.webcam == nil {
		return nil, ErrClosed
	}
	if ok := c.webcam.Read(&c.frame); !ok || c.frame.Empty() {
		return nil, fmt.Errorf("camera %d: no frame available", c.deviceID)
	}
	img, err := c.frame.ToImage()
	if err != nil {
		return nil, fmt.Errorf("camera %d: convert frame: %w", c.deviceID, err)
	}
	return img, nil
}

// Close releases the camera. It is safe to call more than once.
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.webcam == nil {
		return nil
	}
	err := c.webcam.Close()
	c.webcam = nil
	if ferr := c.frame.Close(); err == nil {
		err = ferr
	}
	return err
}
