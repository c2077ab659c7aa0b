// Copyright 2024 GearnsC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tonemap

import (
	"fmt"
	"strings"

	"github.com/gitgerby/frame-factory/internal/pkg/colorprops"
)

// Preset selects how densely dynamic peak detection samples the frame.
type Preset int

const (
	PresetFast Preset = iota
	PresetStandard
	PresetHigh
)

// stride returns the pixel sampling stride for the preset.
func (p Preset) stride() int {
	switch p {
	case PresetFast:
		return 8
	case PresetHigh:
		return 2
	default:
		return 4
	}
}

// ParsePreset maps a configuration string to a Preset, defaulting to
// standard.
func ParsePreset(s string) (Preset, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "standard":
		return PresetStandard, nil
	case "fast":
		return PresetFast, nil
	case "high":
		return PresetHigh, nil
	default:
		return PresetStandard, fmt.Errorf("unrecognized dpd preset %q", s)
	}
}

// Params carries every numeric input of the tone-mapping engine. All values
// arrive from the resolved configuration and are forwarded unchanged through
// every retry rung; the engine only validates the bounds it directly depends
// on.
type Params struct {
	Curve          Curve
	TargetNits     float64
	BlackFloorNits float64
	DynamicPeak    bool
	DPDPreset      Preset
	// KneeOffset shifts the knee of the spline-family curves; ignored by
	// the others.
	KneeOffset float64
	// Cutoff is the normalized luminance below which samples are excluded
	// from scene-peak estimation.
	Cutoff float64
	// Percentile of sampled luminance used as the scene peak estimate.
	Percentile float64
	// SmoothingFrames is the window length for peak smoothing across
	// consecutive frames; zero disables smoothing.
	SmoothingFrames int
	// SceneCutLow/SceneCutHigh bound the relative peak change treated as
	// in-scene drift versus a hard scene cut.
	SceneCutLow  float64
	SceneCutHigh float64
	// Mastering carries the clip's static HDR side data when present.
	Mastering colorprops.Mastering
}

// Validate checks the bounds the engine depends on.
func (p Params) Validate() error {
	if p.TargetNits <= 0 {
		return fmt.Errorf("target peak must be positive, got %v", p.TargetNits)
	}
	if p.BlackFloorNits < 0 || p.BlackFloorNits >= p.TargetNits {
		return fmt.Errorf("black floor %v out of range [0, target %v)", p.BlackFloorNits, p.TargetNits)
	}
	if p.KneeOffset < 0 || p.KneeOffset > 1 {
		return fmt.Errorf("knee offset %v out of range [0, 1]", p.KneeOffset)
	}
	if p.Cutoff < 0 || p.Cutoff > 0.05 {
		return fmt.Errorf("cutoff %v out of range [0, 0.05]", p.Cutoff)
	}
	if p.Percentile <= 0 || p.Percentile > 1 {
		return fmt.Errorf("peak percentile %v out of range (0, 1]", p.Percentile)
	}
	if p.SmoothingFrames < 0 {
		return fmt.Errorf("smoothing window must not be negative, got %d", p.SmoothingFrames)
	}
	if p.SceneCutLow < 0 || p.SceneCutHigh < p.SceneCutLow {
		return fmt.Errorf("scene thresholds %v/%v must satisfy 0 <= low <= high", p.SceneCutLow, p.SceneCutHigh)
	}
	return nil
}

// Defaults returns the parameter set used when the configuration leaves the
// tone-mapping section empty: BT.2390 to 100 nits with dynamic peak
// detection on.
func Defaults() Params {
	return Params{
		Curve:           CurveBT2390,
		TargetNits:      100,
		BlackFloorNits:  0.05,
		DynamicPeak:     true,
		DPDPreset:       PresetStandard,
		KneeOffset:      0,
		Cutoff:          0.005,
		Percentile:      0.999,
		SmoothingFrames: 8,
		SceneCutLow:     0.1,
		SceneCutHigh:    0.5,
	}
}
