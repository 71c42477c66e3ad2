package detection

import (
	"fmt"

	"github.com/menta2k/image-annotator/pkg/types"
)

// DefaultTarget is the object description used by the 2D box prompt.
const DefaultTarget = "物品"

// PromptParts is a [prefix, target, suffix] triple. The middle element is the
// user-editable target.
type PromptParts [3]string

// DefaultPromptParts are the instruction templates for every mode.
var DefaultPromptParts = map[types.DetectionMode]PromptParts{
	types.BoundingBoxes2D: {
		"请找出",
		"物品",
		"的位置，以JSON列表形式返回。不要返回掩码。限制25个物品。label字段必须使用中文。",
	},
	types.SegmentationMasks: {
		"给出",
		"所有物体",
		"的分割掩码。输出一个JSON列表，其中每个条目包含 'box_2d'（2D边界框）、'mask'（分割掩码）和 'label'（中文文本标签）。使用描述性的中文标签。",
	},
	types.Points: {
		"指出",
		"物品",
		`，不超过10个。答案应遵循json格式：[{"point": <point>, "label": <中文标签>}, ...]。点坐标为归一化到0-1000的[y, x]格式。`,
	},
}

// Prompts holds the editable instruction state.
type Prompts struct {
	Target2D string
	Parts    map[types.DetectionMode]PromptParts
}

// NewPrompts returns the default instruction state.
func NewPrompts() Prompts {
	parts := make(map[types.DetectionMode]PromptParts, len(DefaultPromptParts))
	for k, v := range DefaultPromptParts {
		parts[k] = v
	}
	return Prompts{Target2D: DefaultTarget, Parts: parts}
}

// Clone returns a deep copy.
func (p Prompts) Clone() Prompts {
	parts := make(map[types.DetectionMode]PromptParts, len(p.Parts))
	for k, v := range p.Parts {
		parts[k] = v
	}
	return Prompts{Target2D: p.Target2D, Parts: parts}
}

// Target returns the editable target for mode.
func (p Prompts) Target(mode types.DetectionMode) string {
	if mode == types.BoundingBoxes2D {
		return p.Target2D
	}
	return p.Parts[mode][1]
}

// WithTarget returns a copy with the editable target for mode replaced.
func (p Prompts) WithTarget(mode types.DetectionMode, target string) Prompts {
	out := p.Clone()
	if mode == types.BoundingBoxes2D {
		out.Target2D = target
		return out
	}
	parts := out.Parts[mode]
	parts[1] = target
	out.Parts[mode] = parts
	return out
}

// Instruction builds the text sent alongside the image for mode.
func (p Prompts) Instruction(mode types.DetectionMode) string {
	if mode == types.BoundingBoxes2D {
		return fmt.Sprintf("检测 %s，不超过20个物品。输出一个JSON列表，每个条目包含 'box_2d' 中的2D边界框和 'label' 中的中文文本标签。", p.Target2D)
	}
	parts, ok := p.Parts[mode]
	if !ok {
		return ""
	}
	return parts[0] + " " + parts[1] + parts[2]
}
