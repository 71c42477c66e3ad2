package detection

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/menta2k/image-annotator/pkg/processing"
	"github.com/menta2k/image-annotator/pkg/types"
)

// ErrParse is matched by every error returned from Parse.
var ErrParse = errors.New("unparseable model response")

// ParseError carries the raw response text that failed to parse.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse model response: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Is reports ErrParse as a match.
func (e *ParseError) Is(target error) bool { return target == ErrParse }

// Result holds the typed entries decoded from one model response.
// Only the slice matching Mode is populated.
type Result struct {
	Mode   types.DetectionMode
	Boxes  []types.NormalizedBox
	Masks  []types.MaskEntry
	Points []types.NormalizedPoint
	// Pretty is the indented JSON of the sanitized response.
	Pretty string
}

// Len returns the number of entries for the result's mode.
func (r *Result) Len() int {
	switch r.Mode {
	case types.SegmentationMasks:
		return len(r.Masks)
	case types.Points:
		return len(r.Points)
	default:
		return len(r.Boxes)
	}
}

type rawEntry struct {
	Box2D []float64 `json:"box_2d"`
	Point []float64 `json:"point"`
	Mask  string    `json:"mask"`
	Label string    `json:"label"`
}

// Parse decodes a model response for the given mode. Either every entry is
// accepted or the whole response is rejected with a *ParseError.
func Parse(mode types.DetectionMode, raw string) (*Result, error) {
	clean := SanitizeModelJSON(raw)
	fail := func(err error) (*Result, error) {
		return nil, &ParseError{Raw: raw, Err: err}
	}

	// Single objects are treated as a one-element list
	if strings.HasPrefix(clean, "{") {
		clean = "[" + clean + "]"
	}

	var items []json.RawMessage
	if err := json.Unmarshal([]byte(clean), &items); err != nil {
		return fail(err)
	}

	res := &Result{Mode: mode}
	proc := processing.NewProcessor()
	for i, item := range items {
		var e rawEntry
		if err := json.Unmarshal(item, &e); err != nil {
			return fail(fmt.Errorf("entry %d: %w", i, err))
		}
		switch mode {
		case types.BoundingBoxes2D:
			box, err := gridBox(e.Box2D)
			if err != nil {
				return fail(fmt.Errorf("entry %d: %w", i, err))
			}
			res.Boxes = append(res.Boxes, BoxFromGrid(box, e.Label))
		case types.SegmentationMasks:
			box, err := gridBox(e.Box2D)
			if err != nil {
				return fail(fmt.Errorf("entry %d: %w", i, err))
			}
			if e.Mask == "" {
				return fail(fmt.Errorf("entry %d: missing mask", i))
			}
			mask, err := proc.DecodeImageDataURL(e.Mask)
			if err != nil {
				return fail(fmt.Errorf("entry %d: decode mask: %w", i, err))
			}
			res.Masks = append(res.Masks, types.MaskEntry{NormalizedBox: BoxFromGrid(box, e.Label), Mask: mask})
		case types.Points:
			if len(e.Point) != 2 {
				return fail(fmt.Errorf("entry %d: point needs 2 values, got %d", i, len(e.Point)))
			}
			res.Points = append(res.Points, PointFromGrid([2]float64{e.Point[0], e.Point[1]}, e.Label))
		default:
			return fail(fmt.Errorf("unknown detection mode %d", int(mode)))
		}
	}

	if mode == types.SegmentationMasks {
		items = sortMasks(res.Masks, items)
	}
	res.Pretty = indentItems(items)
	return res, nil
}

// sortMasks orders masks by descending box area so small masks stack on top.
// items is permuted the same way.
func sortMasks(masks []types.MaskEntry, items []json.RawMessage) []json.RawMessage {
	order := make([]int, len(masks))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return masks[order[a]].Area() > masks[order[b]].Area()
	})

	sortedMasks := make([]types.MaskEntry, len(masks))
	sortedItems := make([]json.RawMessage, len(items))
	for to, from := range order {
		sortedMasks[to] = masks[from]
		sortedItems[to] = items[from]
	}
	copy(masks, sortedMasks)
	return sortedItems
}

func indentItems(items []json.RawMessage) string {
	var joined bytes.Buffer
	joined.WriteByte('[')
	for i, item := range items {
		if i > 0 {
			joined.WriteByte(',')
		}
		joined.Write(item)
	}
	joined.WriteByte(']')

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, joined.Bytes(), "", "  "); err != nil {
		return ""
	}
	return pretty.String()
}

func gridBox(v []float64) ([4]float64, error) {
	if len(v) != 4 {
		return [4]float64{}, fmt.Errorf("box_2d needs 4 values, got %d", len(v))
	}
	return [4]float64{v[0], v[1], v[2], v[3]}, nil
}
