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

// Package frame holds the in-memory representation of a single decodable
// frame: planar pixel storage, pixel format description, the frame's color
// properties, and provenance tags. Every pipeline stage consumes a node and
// produces a new one; nodes are never mutated in place once handed off.
package frame

import "fmt"

// Family identifies whether a format stores RGB or YUV channels.
type Family int

const (
	FamilyYUV Family = iota
	FamilyRGB
)

// Format describes how samples are laid out: channel family, bit depth, and
// chroma subsampling expressed as plane-dimension shifts. SubW/SubH of 1,1
// is 4:2:0; 1,0 is 4:2:2; 0,0 is 4:4:4 or RGB. Samples are stored in uint16
// regardless of depth, holding values in [0, 2^Bits-1].
type Format struct {
	Family Family
	Bits   int
	SubW   int
	SubH   int
}

// Common pixel formats used by the pipeline.
var (
	YUV420P8  = Format{Family: FamilyYUV, Bits: 8, SubW: 1, SubH: 1}
	YUV420P10 = Format{Family: FamilyYUV, Bits: 10, SubW: 1, SubH: 1}
	YUV422P8  = Format{Family: FamilyYUV, Bits: 8, SubW: 1, SubH: 0}
	YUV444P8  = Format{Family: FamilyYUV, Bits: 8}
	YUV444P16 = Format{Family: FamilyYUV, Bits: 16}
	RGB24     = Format{Family: FamilyRGB, Bits: 8}
	RGB48     = Format{Family: FamilyRGB, Bits: 16}
)

// SubsampledHorizontally reports whether chroma planes are narrower than the
// luma plane.
func (f Format) SubsampledHorizontally() bool { return f.SubW > 0 }

// SubsampledVertically reports whether chroma planes are shorter than the
// luma plane.
func (f Format) SubsampledVertically() bool { return f.SubH > 0 }

// Subsampled reports whether either axis carries reduced chroma resolution.
func (f Format) Subsampled() bool { return f.SubW > 0 || f.SubH > 0 }

// FullChroma reports whether the format is free of subsampling constraints:
// RGB or 4:4:4 YUV.
func (f Format) FullChroma() bool { return !f.Subsampled() }

func (f Format) String() string {
	if f.Family == FamilyRGB {
		return fmt.Sprintf("rgb%d", f.Bits*3)
	}
	switch {
	case f.SubW == 1 && f.SubH == 1:
		return fmt.Sprintf("yuv420p%d", f.Bits)
	case f.SubW == 1 && f.SubH == 0:
		return fmt.Sprintf("yuv422p%d", f.Bits)
	default:
		return fmt.Sprintf("yuv444p%d", f.Bits)
	}
}

// maxValue returns the largest representable sample for the format's depth.
func (f Format) maxValue() int { return (1 << f.Bits) - 1 }
