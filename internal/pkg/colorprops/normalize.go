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

// hdWidth/hdHeight are the thresholds above which a source defaults to
// BT.709 metadata instead of BT.601.
const (
	hdWidth  = 1280
	hdHeight = 720
)

// DefaultForResolution returns the conventional color description assumed
// for a source of the given dimensions when the container carries no
// metadata: BT.709 for HD material and BT.601 for SD.
func DefaultForResolution(width, height int) Props {
	if width >= hdWidth || height >= hdHeight {
		return Props{
			Matrix:    MatrixBT709,
			Transfer:  TransferBT709,
			Primaries: PrimariesBT709,
			Range:     RangeLimited,
		}
	}
	return Props{
		Matrix:    MatrixBT601,
		Transfer:  TransferBT709,
		Primaries: PrimariesBT601,
		Range:     RangeLimited,
	}
}

// Merge fills the unknown fields of p from fallback and returns the result.
// Fields p already declares are authoritative and never overwritten.
func Merge(p, fallback Props) Props {
	if p.Matrix == MatrixUnknown {
		p.Matrix = fallback.Matrix
	}
	if p.Transfer == TransferUnknown {
		p.Transfer = fallback.Transfer
	}
	if p.Primaries == PrimariesUnknown {
		p.Primaries = fallback.Primaries
	}
	if p.Range == RangeUnknown {
		p.Range = fallback.Range
	}
	return p
}

// Normalize fills every unknown field of p with an explicit fallback and
// returns a Props guaranteed Complete. Explicit metadata is authoritative
// and never overwritten. Missing matrix/transfer/primaries come from the
// resolution default; a missing range is resolved through detectRange,
// which is only invoked when the container genuinely carried no range
// information. detectRange may be nil, in which case the resolution
// default range (limited) is used.
func Normalize(p Props, width, height int, detectRange func() Range) Props {
	def := DefaultForResolution(width, height)
	if p.Matrix == MatrixUnknown {
		p.Matrix = def.Matrix
	}
	if p.Transfer == TransferUnknown {
		p.Transfer = def.Transfer
	}
	if p.Primaries == PrimariesUnknown {
		p.Primaries = def.Primaries
	}
	if p.Range == RangeUnknown {
		if detectRange != nil {
			p.Range = detectRange()
		}
		if p.Range == RangeUnknown {
			p.Range = def.Range
		}
	}
	return p
}
