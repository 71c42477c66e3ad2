package store

import (
	"github.com/menta2k/image-annotator/pkg/detection"
	"github.com/menta2k/image-annotator/pkg/types"
)

// Mode returns the current detection mode.
func (s *Store) Mode() types.DetectionMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// SetMode switches the detection mode. Results of other modes are kept.
func (s *Store) SetMode(mode types.DetectionMode) {
	s.update(func() Change {
		if s.mode == mode {
			return 0
		}
		s.mode = mode
		s.hoverEntered = false
		s.hovered = -1
		return ChangeConfig | ChangeView
	})
}

// Prompts returns a copy of the instruction state.
func (s *Store) Prompts() detection.Prompts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prompts.Clone()
}

// Target returns the editable target of the current mode.
func (s *Store) Target() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prompts.Target(s.mode)
}

// SetTarget edits the target of the current mode.
func (s *Store) SetTarget(target string) {
	s.update(func() Change {
		if s.prompts.Target(s.mode) == target {
			return 0
		}
		s.prompts = s.prompts.WithTarget(s.mode, target)
		return ChangeConfig
	})
}

// SetPromptParts replaces the template of a mode.
func (s *Store) SetPromptParts(mode types.DetectionMode, parts detection.PromptParts) {
	s.update(func() Change {
		p := s.prompts.Clone()
		p.Parts[mode] = parts
		s.prompts = p
		return ChangeConfig
	})
}

// Model returns the selected model identifier.
func (s *Store) Model() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model
}

// SetModel selects the model.
func (s *Store) SetModel(model string) {
	s.update(func() Change {
		if s.model == model {
			return 0
		}
		s.model = model
		return ChangeConfig
	})
}

// SetTemperature sets the sampling temperature.
func (s *Store) SetTemperature(t float64) {
	s.update(func() Change {
		if s.temp == t {
			return 0
		}
		s.temp = t
		return ChangeConfig
	})
}

// SetThinking enables or disables model thinking.
func (s *Store) SetThinking(enabled bool) {
	s.update(func() Change {
		if s.think == enabled {
			return 0
		}
		s.think = enabled
		return ChangeConfig
	})
}

// RequestConfig snapshots the current request-shaping state with the
// instruction text already resolved for the current mode.
func (s *Store) RequestConfig() types.RequestConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return types.RequestConfig{
		Model:           s.model,
		Temperature:     s.temp,
		ThinkingEnabled: s.think,
		InstructionText: s.prompts.Instruction(s.mode),
	}
}

// LiveMode reports whether live capture is active.
func (s *Store) LiveMode() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.live
}

// SetLiveMode toggles live capture. Enabling resets results and strokes.
func (s *Store) SetLiveMode(live bool) {
	s.update(func() Change {
		if s.live == live {
			return 0
		}
		var c Change
		if live {
			c = s.resetLocked()
			s.uploaded = false
			s.image = nil
			s.epoch++
		}
		s.live = live
		return c | ChangeLive
	})
}

// Diagnostics returns the request/response display state.
func (s *Store) Diagnostics() Diagnostics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.diag
}

// ClearDiagnostics empties the display state.
func (s *Store) ClearDiagnostics() {
	s.update(func() Change {
		s.diag = Diagnostics{}
		return ChangeDiagnostics
	})
}

// SetRequestJSON records the redacted request payload.
func (s *Store) SetRequestJSON(v string) {
	s.update(func() Change {
		s.diag.RequestJSON = v
		return ChangeDiagnostics
	})
}

// SetResponseJSON records the response or error display text.
func (s *Store) SetResponseJSON(v string) {
	s.update(func() Change {
		s.diag.ResponseJSON = v
		return ChangeDiagnostics
	})
}

// SetResponseTime records the formatted elapsed time.
func (s *Store) SetResponseTime(v string) {
	s.update(func() Change {
		s.diag.ResponseTime = v
		return ChangeDiagnostics
	})
}
