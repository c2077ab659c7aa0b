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

package export

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/gitgerby/frame-factory/internal/pkg/colorprops"
	"github.com/gitgerby/frame-factory/internal/pkg/frame"
)

// rgb48Frame builds a 16-bit RGB node with a shallow gradient, the worst
// case for visible banding after reduction.
func rgb48Frame(rng colorprops.Range) *frame.Node {
	n := frame.New(frame.RGB48, 32, 16)
	n.Props = colorprops.Props{
		Matrix:    colorprops.MatrixRGB,
		Transfer:  colorprops.TransferBT1886,
		Primaries: colorprops.PrimariesBT709,
		Range:     rng,
	}
	for p := range n.Planes {
		for i := range n.Planes[p] {
			n.Planes[p][i] = uint16(20000 + i*40)
		}
	}
	return n
}

func TestExportRangeDecision(t *testing.T) {
	testCases := []struct {
		desc        string
		srcRange    colorprops.Range
		mode        RangeMode
		expectRange colorprops.Range
		expectTag   string
	}{
		{
			desc:        "auto preserves full",
			srcRange:    colorprops.RangeFull,
			mode:        RangeAuto,
			expectRange: colorprops.RangeFull,
		},
		{
			desc:        "auto preserves limited",
			srcRange:    colorprops.RangeLimited,
			mode:        RangeAuto,
			expectRange: colorprops.RangeLimited,
		},
		{
			desc:        "forced full expansion records source range",
			srcRange:    colorprops.RangeLimited,
			mode:        RangeForceFull,
			expectRange: colorprops.RangeFull,
			expectTag:   "tv",
		},
		{
			desc:        "forced full on a full source adds no tag",
			srcRange:    colorprops.RangeFull,
			mode:        RangeForceFull,
			expectRange: colorprops.RangeFull,
		},
		{
			desc:        "forced limited compresses full",
			srcRange:    colorprops.RangeFull,
			mode:        RangeForceLimited,
			expectRange: colorprops.RangeLimited,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()
			n := rgb48Frame(tc.srcRange)
			out, err := Export(n, Spec{Range: tc.mode, Dither: DitherNone})
			if err != nil {
				t.Fatalf("%q: got error: %v want: nil", tc.desc, err)
			}
			if out.Props.Range != tc.expectRange {
				t.Errorf("%q: exported range %s want %s", tc.desc, out.Props.Range, tc.expectRange)
			}
			if got := out.Tag(frame.TagSourceColorRange); got != tc.expectTag {
				t.Errorf("%q: source range tag %q want %q", tc.desc, got, tc.expectTag)
			}
		})
	}
}

func TestExportLimitedExpansionLevels(t *testing.T) {
	n := frame.New(frame.RGB48, 4, 4)
	n.Props = colorprops.Props{Matrix: colorprops.MatrixRGB, Range: colorprops.RangeLimited}
	for p := range n.Planes {
		for i := range n.Planes[p] {
			// Limited 16-bit white.
			n.Planes[p][i] = 235 << 8
		}
	}
	out, err := Export(n, Spec{Range: RangeForceFull, Dither: DitherNone})
	if err != nil {
		t.Fatalf("got error: %v want: nil", err)
	}
	if out.Planes[0][0] != 255 {
		t.Errorf("limited white expanded to %d want 255", out.Planes[0][0])
	}

	// And limited black lands on full-range zero.
	for p := range n.Planes {
		for i := range n.Planes[p] {
			n.Planes[p][i] = 16 << 8
		}
	}
	out, err = Export(n, Spec{Range: RangeForceFull, Dither: DitherNone})
	if err != nil {
		t.Fatalf("got error: %v want: nil", err)
	}
	if out.Planes[0][0] != 0 {
		t.Errorf("limited black expanded to %d want 0", out.Planes[0][0])
	}
}

func TestExportDeterministic(t *testing.T) {
	for _, d := range []Dither{DitherErrorDiffusion, DitherOrdered, DitherNone} {
		d := d
		t.Run(d.String(), func(t *testing.T) {
			t.Parallel()
			n := rgb48Frame(colorprops.RangeFull)
			a, err := Export(n.Clone(), Spec{Dither: d})
			if err != nil {
				t.Fatalf("got error: %v want: nil", err)
			}
			b, err := Export(n.Clone(), Spec{Dither: d})
			if err != nil {
				t.Fatalf("got error: %v want: nil", err)
			}
			for p := range a.Planes {
				if diff := cmp.Diff(a.Planes[p], b.Planes[p]); diff != "" {
					t.Fatalf("plane %d differs between identical exports:\n%s", p, diff)
				}
			}
		})
	}
}

func TestExportDitherPreservesMean(t *testing.T) {
	// Error diffusion must not shift the average level of a shallow
	// gradient by more than a fraction of a code value.
	n := rgb48Frame(colorprops.RangeFull)
	out, err := Export(n, Spec{Dither: DitherErrorDiffusion})
	if err != nil {
		t.Fatalf("got error: %v want: nil", err)
	}
	var wantSum, gotSum float64
	for i, v := range n.Planes[0] {
		wantSum += float64(v) * 255 / 65280
		gotSum += float64(out.Planes[0][i])
	}
	count := float64(len(n.Planes[0]))
	if d := wantSum/count - gotSum/count; d > 0.5 || d < -0.5 {
		t.Errorf("dither shifted mean by %v codes", d)
	}
}

func TestExportRejectsYUV(t *testing.T) {
	n := frame.New(frame.YUV444P16, 4, 4)
	n.Props = colorprops.Props{Matrix: colorprops.MatrixBT709, Range: colorprops.RangeFull}
	if _, err := Export(n, Spec{}); err == nil {
		t.Error("expected error for yuv input, got nil")
	}
}

func TestToImage(t *testing.T) {
	n := frame.New(frame.RGB24, 2, 2)
	n.Props = colorprops.Props{Matrix: colorprops.MatrixRGB, Range: colorprops.RangeFull}
	n.Planes[0][0] = 10
	n.Planes[1][0] = 20
	n.Planes[2][0] = 30

	img, err := ToImage(n)
	if err != nil {
		t.Fatalf("got error: %v want: nil", err)
	}
	r, g, b, a := img.NRGBAAt(0, 0).R, img.NRGBAAt(0, 0).G, img.NRGBAAt(0, 0).B, img.NRGBAAt(0, 0).A
	if r != 10 || g != 20 || b != 30 || a != 255 {
		t.Errorf("pixel (0,0) = %d/%d/%d/%d want 10/20/30/255", r, g, b, a)
	}
}
