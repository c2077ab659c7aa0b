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

package colorprops

import "strings"

// ParseMatrix maps an ffprobe-style color_space string to a Matrix value.
// Unrecognized or empty strings map to MatrixUnknown so the normalizer can
// apply a resolution-based default.
func ParseMatrix(s string) Matrix {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rgb", "gbr":
		return MatrixRGB
	case "bt709":
		return MatrixBT709
	case "bt601", "bt470bg", "smpte170m":
		return MatrixBT601
	case "bt2020nc", "bt2020ncl", "bt2020_ncl":
		return MatrixBT2020NCL
	default:
		return MatrixUnknown
	}
}

// ParseTransfer maps an ffprobe-style color_transfer string to a Transfer
// value.
func ParseTransfer(s string) Transfer {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bt709":
		return TransferBT709
	case "bt1886":
		return TransferBT1886
	case "smpte2084", "smpte st 2084", "pq":
		return TransferPQ
	case "arib-std-b67", "hlg":
		return TransferHLG
	default:
		return TransferUnknown
	}
}

// ParsePrimaries maps an ffprobe-style color_primaries string to a Primaries
// value.
func ParsePrimaries(s string) Primaries {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bt709":
		return PrimariesBT709
	case "bt601", "bt470bg", "smpte170m":
		return PrimariesBT601
	case "bt2020":
		return PrimariesBT2020
	default:
		return PrimariesUnknown
	}
}

// ParseRange maps an ffprobe-style color_range string to a Range value.
func ParseRange(s string) Range {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tv", "limited", "mpeg":
		return RangeLimited
	case "pc", "full", "jpeg":
		return RangeFull
	default:
		return RangeUnknown
	}
}

// Parse assembles a Props from the four ffprobe-style metadata strings.
// Absent fields simply come back unknown; callers run the result through
// Normalize before use.
func Parse(matrix, transfer, primaries, rng string) Props {
	return Props{
		Matrix:    ParseMatrix(matrix),
		Transfer:  ParseTransfer(transfer),
		Primaries: ParsePrimaries(primaries),
		Range:     ParseRange(rng),
	}
}
