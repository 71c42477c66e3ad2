package detection

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"strings"
	"testing"

	"github.com/menta2k/image-annotator/pkg/client"
	"github.com/menta2k/image-annotator/pkg/types"
)

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func maskDataURL(t *testing.T) string {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 2, 2))
	img.SetGray(0, 0, color.Gray{Y: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestBoxFromGrid(t *testing.T) {
	box := BoxFromGrid([4]float64{100, 200, 500, 800}, "cat")
	if !near(box.X, 0.2) || !near(box.Y, 0.1) || !near(box.Width, 0.6) || !near(box.Height, 0.4) {
		t.Errorf("Unexpected box: %+v", box)
	}
	if box.Label != "cat" {
		t.Errorf("Expected label cat, got %s", box.Label)
	}

	over := BoxFromGrid([4]float64{-10, 0, 1200, 1000}, "")
	if !near(over.Y, -0.01) || !near(over.Height, 1.21) {
		t.Errorf("Out-of-range values should not be clamped: %+v", over)
	}
}

func TestPointFromGrid(t *testing.T) {
	p := PointFromGrid([2]float64{250, 750}, "cup")
	if !near(p.Point.X, 0.75) || !near(p.Point.Y, 0.25) {
		t.Errorf("Expected (0.75,0.25), got %+v", p.Point)
	}
}

func TestSanitizeModelJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `[{"a":1}]`, `[{"a":1}]`},
		{"json fence", "Here you go:\n```json\n[{\"a\":1}]\n```\nthanks", `[{"a":1}]`},
		{"bare fence", "```\n[1,2]\n```", `[1,2]`},
		{"trailing comma", `[{"a":1},]`, `[{"a":1}]`},
		{"comma inside string", `[{"label":"a, ]b"}]`, `[{"label":"a, ]b"}]`},
		{"object", `result: {"a":[1]}`, `{"a":[1]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeModelJSON(tt.in); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestParseBoxes(t *testing.T) {
	raw := "```json\n[{\"box_2d\": [100, 200, 500, 800], \"label\": \"猫\"}, {\"box_2d\": [0, 0, 1000, 1000], \"label\": \"背景\"}]\n```"
	res, err := Parse(types.BoundingBoxes2D, raw)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(res.Boxes) != 2 || res.Len() != 2 {
		t.Fatalf("Expected 2 boxes, got %d", len(res.Boxes))
	}
	if !near(res.Boxes[0].X, 0.2) || res.Boxes[0].Label != "猫" {
		t.Errorf("Unexpected first box: %+v", res.Boxes[0])
	}
	if !strings.Contains(res.Pretty, "\n  ") {
		t.Errorf("Expected indented pretty output, got %q", res.Pretty)
	}
}

func TestParsePoints(t *testing.T) {
	res, err := Parse(types.Points, `[{"point": [250, 750], "label": "cup"}]`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(res.Points) != 1 || !near(res.Points[0].Point.X, 0.75) {
		t.Errorf("Unexpected points: %+v", res.Points)
	}
}

func TestParseMasks(t *testing.T) {
	raw := `[{"box_2d": [0, 0, 100, 100], "mask": "` + maskDataURL(t) + `", "label": "a"}]`
	res, err := Parse(types.SegmentationMasks, raw)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(res.Masks) != 1 || res.Masks[0].Mask == nil {
		t.Fatalf("Expected one decoded mask, got %+v", res.Masks)
	}
	if res.Masks[0].Mask.Bounds().Dx() != 2 {
		t.Errorf("Expected 2px mask, got %v", res.Masks[0].Mask.Bounds())
	}
}

func TestParseMasksLargestFirst(t *testing.T) {
	mask := maskDataURL(t)
	raw := `[{"box_2d": [400, 400, 600, 600], "mask": "` + mask + `", "label": "small"},` +
		`{"box_2d": [0, 0, 1000, 1000], "mask": "` + mask + `", "label": "large"},` +
		`{"box_2d": [0, 0, 500, 500], "mask": "` + mask + `", "label": "medium"}]`
	res, err := Parse(types.SegmentationMasks, raw)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	want := []string{"large", "medium", "small"}
	if len(res.Masks) != len(want) {
		t.Fatalf("Expected %d masks, got %d", len(want), len(res.Masks))
	}
	for i, label := range want {
		if res.Masks[i].Label != label {
			t.Errorf("Expected %s at %d, got %s", label, i, res.Masks[i].Label)
		}
	}

	large := strings.Index(res.Pretty, `"large"`)
	small := strings.Index(res.Pretty, `"small"`)
	if large < 0 || small < 0 || large > small {
		t.Errorf("Expected pretty JSON in area order, got %q", res.Pretty)
	}
}

func TestParseKeepsCommaInLabel(t *testing.T) {
	res, err := Parse(types.BoundingBoxes2D, `[{"box_2d": [0, 0, 10, 10], "label": "a, ]b"}]`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if res.Boxes[0].Label != "a, ]b" {
		t.Errorf("Expected label %q, got %q", "a, ]b", res.Boxes[0].Label)
	}
}

func TestParseRejectsWholeResponse(t *testing.T) {
	tests := []struct {
		name string
		mode types.DetectionMode
		raw  string
	}{
		{"not json", types.BoundingBoxes2D, "I cannot help with that"},
		{"short box", types.BoundingBoxes2D, `[{"box_2d":[1,2,3,4],"label":"ok"},{"box_2d":[1,2],"label":"bad"}]`},
		{"short point", types.Points, `[{"point":[1],"label":"bad"}]`},
		{"missing mask", types.SegmentationMasks, `[{"box_2d":[1,2,3,4],"label":"x"}]`},
		{"bad mask", types.SegmentationMasks, `[{"box_2d":[1,2,3,4],"mask":"data:image/png;base64,aGVsbG8=","label":"x"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Parse(tt.mode, tt.raw)
			if res != nil {
				t.Errorf("Expected nil result, got %+v", res)
			}
			if !errors.Is(err, ErrParse) {
				t.Fatalf("Expected ErrParse, got %v", err)
			}
			var pe *ParseError
			if !errors.As(err, &pe) || pe.Raw != tt.raw {
				t.Errorf("Expected ParseError carrying raw text, got %v", err)
			}
		})
	}
}

func TestParseEmptyList(t *testing.T) {
	res, err := Parse(types.Points, "[]")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if res.Len() != 0 {
		t.Errorf("Expected empty result, got %d", res.Len())
	}
}

func TestPromptsInstruction(t *testing.T) {
	p := NewPrompts()

	got := p.Instruction(types.BoundingBoxes2D)
	if !strings.HasPrefix(got, "检测 物品，") {
		t.Errorf("Unexpected 2D instruction: %s", got)
	}

	seg := p.Instruction(types.SegmentationMasks)
	if !strings.HasPrefix(seg, "给出 所有物体的分割掩码") {
		t.Errorf("Unexpected segmentation instruction: %s", seg)
	}

	edited := p.WithTarget(types.Points, "杯子")
	if !strings.HasPrefix(edited.Instruction(types.Points), "指出 杯子，不超过10个") {
		t.Errorf("Unexpected points instruction: %s", edited.Instruction(types.Points))
	}
	if p.Target(types.Points) != "物品" {
		t.Error("WithTarget must not modify the original")
	}

	edited2D := p.WithTarget(types.BoundingBoxes2D, "汽车")
	if edited2D.Target(types.BoundingBoxes2D) != "汽车" || !strings.Contains(edited2D.Instruction(types.BoundingBoxes2D), "汽车") {
		t.Errorf("2D target not applied: %s", edited2D.Instruction(types.BoundingBoxes2D))
	}
}

func TestBuildRequestThinkingBudget(t *testing.T) {
	img := types.ImagePart{Data: []byte{1}, MIMEType: "image/png"}

	req := BuildRequest(types.RequestConfig{Model: "m", Temperature: 0.5, InstructionText: "go"}, img)
	if req.Config.ThinkingBudget == nil || *req.Config.ThinkingBudget != 0 {
		t.Errorf("Expected zero thinking budget, got %v", req.Config.ThinkingBudget)
	}
	if req.Config.ResponseMIMEType != "application/json" || req.Instruction != "go" {
		t.Errorf("Unexpected request: %+v", req)
	}

	req = BuildRequest(types.RequestConfig{Model: "m", ThinkingEnabled: true}, img)
	if req.Config.ThinkingBudget != nil {
		t.Errorf("Expected nil thinking budget when enabled, got %d", *req.Config.ThinkingBudget)
	}
}

func TestDetectorDetect(t *testing.T) {
	var got types.ModelRequest
	d := NewDetector(client.Func(func(ctx context.Context, req types.ModelRequest) (types.ModelResponse, error) {
		got = req
		return types.ModelResponse{Text: `[{"point":[500,500],"label":"x"}]`}, nil
	}))

	res, err := d.DetectImage(context.Background(), types.RequestConfig{Model: "m", InstructionText: "find"}, types.ImagePart{MIMEType: "image/png"}, types.Points)
	if err != nil {
		t.Fatalf("DetectImage failed: %v", err)
	}
	if len(res.Points) != 1 || got.Instruction != "find" {
		t.Errorf("Unexpected result %+v for request %+v", res, got)
	}

	if _, err := d.DetectImage(context.Background(), types.RequestConfig{}, types.ImagePart{}, types.Points); err == nil {
		t.Error("Expected error for missing model")
	}
}
