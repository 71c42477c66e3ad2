// Package store holds the shared session state: detection results, strokes,
// request configuration and view flags. All reads return copies and all
// writes notify subscribers after the lock is released.
package store

import (
	"image"
	"image/color"
	"sort"
	"sync"

	"github.com/menta2k/image-annotator/pkg/detection"
	"github.com/menta2k/image-annotator/pkg/types"
)

// Change is a bit set describing what a write touched.
type Change uint32

const (
	ChangeResults Change = 1 << iota
	ChangeStrokes
	// ChangeConfig covers every field that shapes a model request.
	ChangeConfig
	ChangeMedia
	ChangeLive
	ChangeLayout
	ChangeView
	ChangeDiagnostics
)

// Diagnostics is the request/response display state for static sends.
type Diagnostics struct {
	RequestJSON  string
	ResponseJSON string
	ResponseTime string
}

// Store is the single source of truth for a session.
type Store struct {
	mu sync.RWMutex

	mode    types.DetectionMode
	prompts detection.Prompts
	model   string
	temp    float64
	think   bool

	boxes  []types.NormalizedBox
	masks  []types.MaskEntry
	points []types.NormalizedPoint

	strokes    []types.Stroke
	strokeOpen bool

	epoch     uint64
	image     image.Image
	uploaded  bool
	imageSent bool

	live          bool
	is3D          bool
	drawMode      bool
	activeColor   color.NRGBA
	revealOnHover bool
	hoverEntered  bool
	hovered       int

	container types.Size
	media     types.Size
	rect      types.DisplayRect

	diag Diagnostics

	subMu  sync.Mutex
	subs   map[int]subscriber
	nextID int
}

type subscriber struct {
	mask Change
	fn   func(Change)
}

// New creates a store with default request configuration.
func New() *Store {
	return &Store{
		mode:        types.BoundingBoxes2D,
		prompts:     detection.NewPrompts(),
		model:       types.ModelGeminiFlash,
		temp:        0.5,
		activeColor: StrokeColors[2],
		hovered:     -1,
		subs:        make(map[int]subscriber),
	}
}

// Subscribe registers fn for changes intersecting mask and returns a function
// that removes the subscription.
func (s *Store) Subscribe(mask Change, fn func(Change)) func() {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = subscriber{mask: mask, fn: fn}
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify(c Change) {
	if c == 0 {
		return
	}
	s.subMu.Lock()
	fns := make([]func(Change), 0, len(s.subs))
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		if sub := s.subs[id]; sub.mask&c != 0 {
			fns = append(fns, sub.fn)
		}
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}

// update runs fn under the write lock and notifies with the change it returns.
func (s *Store) update(fn func() Change) {
	s.mu.Lock()
	c := fn()
	s.mu.Unlock()
	s.notify(c)
}

// SetBoundingBoxes replaces the box results.
func (s *Store) SetBoundingBoxes(boxes []types.NormalizedBox) {
	s.update(func() Change {
		s.boxes = append([]types.NormalizedBox(nil), boxes...)
		s.hoverEntered = false
		s.hovered = -1
		return ChangeResults
	})
}

// SetMasks replaces the mask results, ordered by descending box area.
func (s *Store) SetMasks(masks []types.MaskEntry) {
	sorted := append([]types.MaskEntry(nil), masks...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Area() > sorted[j].Area()
	})
	s.update(func() Change {
		s.masks = sorted
		s.hoverEntered = false
		s.hovered = -1
		return ChangeResults
	})
}

// SetPoints replaces the point results.
func (s *Store) SetPoints(points []types.NormalizedPoint) {
	s.update(func() Change {
		s.points = append([]types.NormalizedPoint(nil), points...)
		return ChangeResults
	})
}

// ApplyResult stores a parse result under its mode.
func (s *Store) ApplyResult(res *detection.Result) {
	switch res.Mode {
	case types.SegmentationMasks:
		s.SetMasks(res.Masks)
	case types.Points:
		s.SetPoints(res.Points)
	default:
		s.SetBoundingBoxes(res.Boxes)
	}
}

// BoundingBoxes returns a copy of the box results.
func (s *Store) BoundingBoxes() []types.NormalizedBox {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]types.NormalizedBox(nil), s.boxes...)
}

// Masks returns a copy of the mask results.
func (s *Store) Masks() []types.MaskEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]types.MaskEntry(nil), s.masks...)
}

// Points returns a copy of the point results.
func (s *Store) Points() []types.NormalizedPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]types.NormalizedPoint(nil), s.points...)
}

// Reset clears results, strokes, hover and diagnostics.
func (s *Store) Reset() {
	s.update(s.resetLocked)
}

func (s *Store) resetLocked() Change {
	s.boxes = nil
	s.masks = nil
	s.points = nil
	s.strokes = nil
	s.strokeOpen = false
	s.hoverEntered = false
	s.hovered = -1
	s.diag = Diagnostics{}
	return ChangeResults | ChangeStrokes | ChangeDiagnostics | ChangeView
}

// AcquireImage installs a new still image, resets state and bumps the
// session epoch. uploaded is false for demo images.
func (s *Store) AcquireImage(img image.Image, uploaded bool) uint64 {
	var epoch uint64
	s.update(func() Change {
		c := s.resetLocked()
		s.image = img
		s.uploaded = uploaded
		s.imageSent = false
		s.epoch++
		epoch = s.epoch
		if img != nil {
			b := img.Bounds()
			c |= s.setMediaLocked(types.Size{Width: float64(b.Dx()), Height: float64(b.Dy())})
		}
		return c | ChangeMedia
	})
	return epoch
}

// Epoch returns the current session epoch.
func (s *Store) Epoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

// Image returns the current still image, or nil.
func (s *Store) Image() image.Image {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.image
}

// Uploaded reports whether the current image came from the user.
func (s *Store) Uploaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.uploaded
}

// ImageSent reports whether the current image has been sent successfully.
func (s *Store) ImageSent() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.imageSent
}

// SetImageSent sets the image-sent flag.
func (s *Store) SetImageSent(sent bool) {
	s.update(func() Change {
		if s.imageSent == sent {
			return 0
		}
		s.imageSent = sent
		return ChangeView
	})
}
