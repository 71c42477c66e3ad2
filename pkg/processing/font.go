package processing

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// DefaultLabelSize is the label font size in points.
const DefaultLabelSize = 13

const labelPad = 3

// LabelFont draws text labels on a filled background.
type LabelFont struct {
	face     font.Face
	height   int
	baseline int
}

// DefaultLabelFont uses the built-in 7x13 face. It covers ASCII only.
func DefaultLabelFont() *LabelFont {
	return newLabelFont(basicfont.Face7x13)
}

// LoadLabelFont loads a TrueType or OpenType font, or the first font of a
// collection, at size points. Labels in non-Latin scripts need a font that
// covers them.
func LoadLabelFont(path string, size float64) (*LabelFont, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read font: %w", err)
	}
	return ParseLabelFont(data, size)
}

// ParseLabelFont builds a label font from TrueType or OpenType bytes.
func ParseLabelFont(data []byte, size float64) (*LabelFont, error) {
	if size <= 0 {
		size = DefaultLabelSize
	}
	f, err := opentype.Parse(data)
	if err != nil {
		coll, cerr := opentype.ParseCollection(data)
		if cerr != nil {
			return nil, fmt.Errorf("failed to parse font: %w", err)
		}
		if coll.NumFonts() == 0 {
			return nil, errors.New("font collection is empty")
		}
		if f, err = coll.Font(0); err != nil {
			return nil, fmt.Errorf("failed to parse font: %w", err)
		}
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return nil, fmt.Errorf("font face: %w", err)
	}
	return newLabelFont(face), nil
}

func newLabelFont(face font.Face) *LabelFont {
	m := face.Metrics()
	ascent := m.Ascent.Ceil()
	return &LabelFont{
		face:     face,
		height:   ascent + m.Descent.Ceil() + 2*labelPad - 2,
		baseline: ascent + labelPad - 1,
	}
}

// Height is the pixel height of a label including padding.
func (f *LabelFont) Height() int {
	return f.height
}

// Draw draws text on a filled background with its top-left corner at (x, y).
// Glyphs missing from the face are drawn as the face's placeholder.
func (f *LabelFont) Draw(img *image.NRGBA, x, y int, text string, fg, bg color.NRGBA) {
	width := font.MeasureString(f.face, text).Ceil()
	FillRect(img, image.Rect(x, y, x+width+2*labelPad, y+f.height), bg)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(fg),
		Face: f.face,
		Dot:  fixed.P(x+labelPad, y+f.baseline),
	}
	d.DrawString(text)
}
