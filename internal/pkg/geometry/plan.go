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

// Package geometry plans and applies crop and pad operations under chroma
// subsampling alignment constraints. Odd-pixel operations are legal only on
// axes free of subsampling, so the planner decides per clip whether a
// temporary promotion to a non-subsampled high-bit-depth format is required
// before geometry runs.
package geometry

import (
	"fmt"
	"strings"

	"github.com/google/logger"

	"github.com/gitgerby/frame-factory/internal/pkg/frame"
)

// Policy selects how the planner treats odd crop or pad deltas on
// subsampled clips.
type Policy int

const (
	// PolicyAuto promotes to full chroma only when an odd delta lands on a
	// subsampled axis.
	PolicyAuto Policy = iota
	// PolicyForceFullChroma always promotes subsampled SDR clips.
	PolicyForceFullChroma
	// PolicySubsampSafe never promotes; odd deltas are rebalanced to the
	// nearest even value instead, shifting the picture by one pixel.
	PolicySubsampSafe
)

func (p Policy) String() string {
	switch p {
	case PolicyForceFullChroma:
		return "force_full_chroma"
	case PolicySubsampSafe:
		return "subsamp_safe"
	default:
		return "auto"
	}
}

// ParsePolicy maps a configuration string to a Policy, defaulting to auto.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return PolicyAuto, nil
	case "force_full_chroma":
		return PolicyForceFullChroma, nil
	case "subsamp_safe":
		return PolicySubsampSafe, nil
	default:
		return PolicyAuto, fmt.Errorf("unrecognized odd-geometry policy %q", s)
	}
}

// Axis names which axes carry an odd-pixel operation.
type Axis int

const (
	AxisNone Axis = iota
	AxisVertical
	AxisHorizontal
	AxisBoth
)

func (a Axis) String() string {
	switch a {
	case AxisVertical:
		return "vertical"
	case AxisHorizontal:
		return "horizontal"
	case AxisBoth:
		return "both"
	default:
		return "none"
	}
}

// Deltas holds the planned crop and pad amounts for one clip, in pixels.
type Deltas struct {
	CropTop, CropBottom, CropLeft, CropRight int
	PadTop, PadBottom, PadLeft, PadRight     int
}

// Plan is the immutable per-clip geometry decision: the (possibly
// rebalanced) deltas plus whether the clip must pivot through a
// non-subsampled format before they are applied. Computed once per clip
// pair before rendering.
type Plan struct {
	Deltas
	RequiresFullChroma bool
	Axis               Axis
}

func odd(v int) bool { return v%2 != 0 }

// PlanGeometry computes the geometry plan for one clip. hdr marks clips
// that tone-map before geometry and therefore already sit in high-bit-depth
// RGB, exempt from subsampling constraints. Clips already in RGB or 4:4:4
// short-circuit to no promotion regardless of policy.
func PlanGeometry(d Deltas, f frame.Format, hdr bool, pol Policy) Plan {
	p := Plan{Deltas: d}

	verticalOdd := odd(d.CropTop) || odd(d.CropBottom) || odd(d.PadTop) || odd(d.PadBottom)
	horizontalOdd := odd(d.CropLeft) || odd(d.CropRight) || odd(d.PadLeft) || odd(d.PadRight)
	switch {
	case verticalOdd && horizontalOdd:
		p.Axis = AxisBoth
	case verticalOdd:
		p.Axis = AxisVertical
	case horizontalOdd:
		p.Axis = AxisHorizontal
	}

	if hdr || f.FullChroma() {
		return p
	}

	switch pol {
	case PolicyAuto:
		p.RequiresFullChroma = (verticalOdd && f.SubsampledVertically()) ||
			(horizontalOdd && f.SubsampledHorizontally())
	case PolicyForceFullChroma:
		p.RequiresFullChroma = true
	case PolicySubsampSafe:
		rebalanced := false
		for _, v := range []*int{
			&p.CropTop, &p.CropBottom, &p.CropLeft, &p.CropRight,
			&p.PadTop, &p.PadBottom, &p.PadLeft, &p.PadRight,
		} {
			if odd(*v) {
				*v--
				rebalanced = true
			}
		}
		if rebalanced {
			logger.Warningf("subsamp_safe rebalanced odd geometry deltas to even values; picture shifts by one pixel")
		}
	}
	return p
}

// Identity reports whether the plan performs no geometry at all.
func (p Plan) Identity() bool {
	return p.Deltas == Deltas{}
}
