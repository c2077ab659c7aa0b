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

// Package verify catches silent tone-map no-ops by diffing the tone-mapped
// conversion of a representative frame against a naive direct RGB
// conversion of the same source frame. A measured delta of exactly zero on
// a clip where tone mapping was applied means the conversion changed
// nothing, which is a defect.
package verify

import (
	"fmt"
	"math"

	"github.com/gitgerby/frame-factory/internal/pkg/frame"
	"github.com/gitgerby/frame-factory/internal/pkg/tonemap"
)

// Config controls frame selection for verification.
type Config struct {
	Enabled       bool
	StartSeconds  float64
	StepSeconds   float64
	MaxSeconds    float64
	LumaThreshold float64
}

// DefaultConfig samples from 30s in, every 60s, up to 10 minutes, looking
// for a frame at least 10% bright.
func DefaultConfig() Config {
	return Config{
		Enabled:       true,
		StartSeconds:  30,
		StepSeconds:   60,
		MaxSeconds:    600,
		LumaThreshold: 0.1,
	}
}

// Result reports the verification outcome for one clip.
type Result struct {
	FrameIndex      int
	AvgDelta        float64
	MaxDelta        float64
	SelectionReason string
}

// Failure is the escalated error for a zero or implausible delta on an
// applied tone map.
type Failure struct {
	Result Result
}

func (f *Failure) Error() string {
	return fmt.Sprintf("tone-map verification failed on frame %d: avg delta %v, max delta %v (conversion appears to be a no-op)",
		f.Result.FrameIndex, f.Result.AvgDelta, f.Result.MaxDelta)
}

// SelectFrame picks the representative frame for verification. Sampling
// skips the first StartSeconds, then visits every StepSeconds up to
// MaxSeconds, returning the first sampled frame whose average luma meets
// LumaThreshold. If none qualify the brightest sampled frame wins, and if
// sampling is impossible the clip's temporal midpoint stands in.
func SelectFrame(src frame.Source, cfg Config) (int, string, error) {
	total := src.Frames()
	if total == 0 {
		return 0, "", fmt.Errorf("clip has no frames to verify")
	}
	fps := src.FrameRate()
	first := int(cfg.StartSeconds * fps)
	step := int(cfg.StepSeconds * fps)
	if step < 1 {
		step = 1
	}
	last := int(cfg.MaxSeconds * fps)
	if last >= total {
		last = total - 1
	}

	if first > last {
		return total / 2, "fallback: clip too short to sample, using midpoint", nil
	}

	brightest := -1
	brightestLuma := math.Inf(-1)
	for idx := first; idx <= last; idx += step {
		n, err := src.Frame(idx)
		if err != nil {
			return total / 2, fmt.Sprintf("fallback: sampling failed (%v), using midpoint", err), nil
		}
		avg := n.AverageLuma()
		if avg >= cfg.LumaThreshold {
			return idx, fmt.Sprintf("first sampled frame with average luma %.3f >= %.3f", avg, cfg.LumaThreshold), nil
		}
		if avg > brightestLuma {
			brightestLuma = avg
			brightest = idx
		}
	}
	return brightest, fmt.Sprintf("brightest sampled frame (average luma %.3f, none met threshold)", brightestLuma), nil
}

// Run verifies the tone map of one clip. It converts the selected source
// frame twice, once through the engine's ladder and once naively without
// tone mapping, reduces both to 8-bit RGB without dithering, and reports
// the average and maximum absolute pixel delta on the 8-bit scale.
func Run(src frame.Source, eng *tonemap.Engine, cfg Config) (*Result, error) {
	idx, reason, err := SelectFrame(src, cfg)
	if err != nil {
		return nil, err
	}
	n, err := src.Frame(idx)
	if err != nil {
		return nil, fmt.Errorf("failed to decode verification frame %d: %v", idx, err)
	}

	mapped, _, err := eng.Map(n.Clone())
	if err != nil {
		return nil, fmt.Errorf("tone map of verification frame %d failed: %v", idx, err)
	}
	naive, err := frame.ToRGB48(n)
	if err != nil {
		return nil, fmt.Errorf("naive conversion of verification frame %d failed: %v", idx, err)
	}

	avg, max := diffRGB8(mapped, naive)
	return &Result{FrameIndex: idx, AvgDelta: avg, MaxDelta: max, SelectionReason: reason}, nil
}

// diffRGB8 computes per-pixel absolute differences between two 16-bit RGB
// nodes after reduction to the 8-bit scale, matching what an exported still
// would show.
func diffRGB8(a, b *frame.Node) (avg, max float64) {
	var sum float64
	var count int
	for p := 0; p < 3; p++ {
		ap, bp := a.Planes[p], b.Planes[p]
		n := len(ap)
		if len(bp) < n {
			n = len(bp)
		}
		for i := 0; i < n; i++ {
			d := math.Abs(float64(ap[i]>>8) - float64(bp[i]>>8))
			sum += d
			if d > max {
				max = d
			}
			count++
		}
	}
	if count > 0 {
		avg = sum / float64(count)
	}
	return avg, max
}
