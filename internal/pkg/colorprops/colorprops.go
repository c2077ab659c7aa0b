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

// Package colorprops models the color metadata attached to a decoded video
// frame: matrix coefficients, transfer characteristics, color primaries, and
// sample range. It provides parsing from ffprobe-style metadata strings,
// resolution-based defaults for sources that ship without metadata, and a
// normalizer that guarantees a fully populated description for every
// downstream stage.
package colorprops

import "fmt"

// Matrix identifies the YUV<->RGB matrix coefficients of a frame.
type Matrix int

const (
	MatrixUnknown Matrix = iota
	// MatrixRGB is the identity matrix; any RGB-family frame must carry it.
	MatrixRGB
	MatrixBT709
	MatrixBT601
	MatrixBT2020NCL
)

// Transfer identifies the transfer characteristics (gamma curve) of a frame.
type Transfer int

const (
	TransferUnknown Transfer = iota
	TransferBT709
	TransferBT1886
	TransferPQ
	TransferHLG
)

// Primaries identifies the chromaticity coordinates of the RGB channels.
type Primaries int

const (
	PrimariesUnknown Primaries = iota
	PrimariesBT709
	PrimariesBT601
	PrimariesBT2020
)

// Range identifies whether samples occupy the full code-value span or the
// reduced studio span (16-235 on the 8-bit scale).
type Range int

const (
	RangeUnknown Range = iota
	RangeLimited
	RangeFull
)

// Props is the complete color description of a single frame. All four fields
// must be populated before a frame enters the rendering pipeline; Normalize
// guarantees that.
type Props struct {
	Matrix    Matrix
	Transfer  Transfer
	Primaries Primaries
	Range     Range
}

func (m Matrix) String() string {
	switch m {
	case MatrixRGB:
		return "rgb"
	case MatrixBT709:
		return "bt709"
	case MatrixBT601:
		return "bt601"
	case MatrixBT2020NCL:
		return "bt2020nc"
	default:
		return "unknown"
	}
}

func (t Transfer) String() string {
	switch t {
	case TransferBT709:
		return "bt709"
	case TransferBT1886:
		return "bt1886"
	case TransferPQ:
		return "smpte2084"
	case TransferHLG:
		return "arib-std-b67"
	default:
		return "unknown"
	}
}

func (p Primaries) String() string {
	switch p {
	case PrimariesBT709:
		return "bt709"
	case PrimariesBT601:
		return "smpte170m"
	case PrimariesBT2020:
		return "bt2020"
	default:
		return "unknown"
	}
}

func (r Range) String() string {
	switch r {
	case RangeLimited:
		return "tv"
	case RangeFull:
		return "pc"
	default:
		return "unknown"
	}
}

func (p Props) String() string {
	return fmt.Sprintf("matrix=%s transfer=%s primaries=%s range=%s",
		p.Matrix, p.Transfer, p.Primaries, p.Range)
}

// IsHDR reports whether the description identifies a high-dynamic-range
// signal: PQ or HLG transfer combined with BT.2020 primaries.
func (p Props) IsHDR() bool {
	if p.Primaries != PrimariesBT2020 {
		return false
	}
	return p.Transfer == TransferPQ || p.Transfer == TransferHLG
}

// Complete reports whether all four fields carry a known value.
func (p Props) Complete() bool {
	return p.Matrix != MatrixUnknown && p.Transfer != TransferUnknown &&
		p.Primaries != PrimariesUnknown && p.Range != RangeUnknown
}

// SDRRGB is the canonical description stamped onto a frame after a
// successful HDR to SDR conversion: identity matrix, BT.1886 transfer,
// BT.709 primaries, full range.
func SDRRGB() Props {
	return Props{
		Matrix:    MatrixRGB,
		Transfer:  TransferBT1886,
		Primaries: PrimariesBT709,
		Range:     RangeFull,
	}
}
