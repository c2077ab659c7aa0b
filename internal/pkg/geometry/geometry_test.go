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

package geometry

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/gitgerby/frame-factory/internal/pkg/colorprops"
	"github.com/gitgerby/frame-factory/internal/pkg/frame"
)

func TestPlanGeometry(t *testing.T) {
	testCases := []struct {
		desc     string
		deltas   Deltas
		format   frame.Format
		hdr      bool
		policy   Policy
		expected Plan
	}{
		{
			desc:   "odd top crop on 420 promotes under auto",
			deltas: Deltas{CropTop: 1},
			format: frame.YUV420P8,
			policy: PolicyAuto,
			expected: Plan{
				Deltas:             Deltas{CropTop: 1},
				RequiresFullChroma: true,
				Axis:               AxisVertical,
			},
		},
		{
			desc:   "even deltas on 420 need no promotion",
			deltas: Deltas{CropTop: 2, PadBottom: 4},
			format: frame.YUV420P8,
			policy: PolicyAuto,
			expected: Plan{
				Deltas: Deltas{CropTop: 2, PadBottom: 4},
			},
		},
		{
			desc:   "odd horizontal pad on 422 promotes under auto",
			deltas: Deltas{PadLeft: 3},
			format: frame.YUV422P8,
			policy: PolicyAuto,
			expected: Plan{
				Deltas:             Deltas{PadLeft: 3},
				RequiresFullChroma: true,
				Axis:               AxisHorizontal,
			},
		},
		{
			desc:   "odd vertical crop on 422 is already aligned",
			deltas: Deltas{CropBottom: 1},
			format: frame.YUV422P8,
			policy: PolicyAuto,
			expected: Plan{
				Deltas: Deltas{CropBottom: 1},
				Axis:   AxisVertical,
			},
		},
		{
			desc:   "hdr clip is exempt from promotion",
			deltas: Deltas{CropTop: 1, CropLeft: 1},
			format: frame.YUV420P10,
			hdr:    true,
			policy: PolicyAuto,
			expected: Plan{
				Deltas: Deltas{CropTop: 1, CropLeft: 1},
				Axis:   AxisBoth,
			},
		},
		{
			desc:   "full chroma source never promotes",
			deltas: Deltas{CropTop: 1},
			format: frame.YUV444P8,
			policy: PolicyForceFullChroma,
			expected: Plan{
				Deltas: Deltas{CropTop: 1},
				Axis:   AxisVertical,
			},
		},
		{
			desc:   "force policy promotes even-aligned clips",
			deltas: Deltas{CropTop: 2},
			format: frame.YUV420P8,
			policy: PolicyForceFullChroma,
			expected: Plan{
				Deltas:             Deltas{CropTop: 2},
				RequiresFullChroma: true,
			},
		},
		{
			desc:   "subsamp_safe rebalances odd deltas to even",
			deltas: Deltas{CropTop: 3, PadRight: 5},
			format: frame.YUV420P8,
			policy: PolicySubsampSafe,
			expected: Plan{
				Deltas: Deltas{CropTop: 2, PadRight: 4},
				Axis:   AxisBoth,
			},
		},
	}

	// Each subtest records the case it ran so a reintroduced loop-variable
	// capture cannot silently collapse the table onto its last row.
	var mu sync.Mutex
	ran := make(map[string]bool)
	t.Cleanup(func() {
		if len(ran) != len(testCases) {
			t.Errorf("executed %d distinct cases, want %d", len(ran), len(testCases))
		}
	})

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()
			mu.Lock()
			ran[tc.desc] = true
			mu.Unlock()
			got := PlanGeometry(tc.deltas, tc.format, tc.hdr, tc.policy)
			if diff := cmp.Diff(tc.expected, got); diff != "" {
				t.Errorf("%q: unexpected plan (-want +got):\n%s", tc.desc, diff)
			}
		})
	}
}

func yuvNode(f frame.Format, w, h int) *frame.Node {
	n := frame.New(f, w, h)
	n.Props = colorprops.Props{
		Matrix:    colorprops.MatrixBT709,
		Transfer:  colorprops.TransferBT709,
		Primaries: colorprops.PrimariesBT709,
		Range:     colorprops.RangeLimited,
	}
	for i := range n.Planes[0] {
		n.Planes[0][i] = uint16(i % 220)
	}
	for i := range n.Planes[1] {
		n.Planes[1][i] = 100
		n.Planes[2][i] = 160
	}
	return n
}

func TestPromote(t *testing.T) {
	n := yuvNode(frame.YUV420P8, 8, 6)
	out, err := Promote(n)
	if err != nil {
		t.Fatalf("got error: %v want: nil", err)
	}
	if out.Format != frame.YUV444P16 {
		t.Fatalf("promoted format %s want yuv444p16", out.Format)
	}
	// Depth promotion is an exact shift, no dither.
	if out.Planes[0][5] != n.Planes[0][5]<<8 {
		t.Errorf("luma sample %d want %d", out.Planes[0][5], n.Planes[0][5]<<8)
	}
	// Chroma replicates the co-sited sample: the 2x2 block under one
	// source chroma sample holds identical values.
	cw, _ := out.PlaneDims(1)
	if out.Planes[1][0] != out.Planes[1][1] || out.Planes[1][0] != out.Planes[1][cw] {
		t.Error("chroma replication not co-sited across 2x2 block")
	}
	if out.Planes[1][0] != 100<<8 {
		t.Errorf("chroma sample %d want %d", out.Planes[1][0], 100<<8)
	}
}

func TestPromoteIncompleteProps(t *testing.T) {
	n := frame.New(frame.YUV420P8, 8, 8)
	if _, err := Promote(n); err == nil {
		t.Error("expected error for incomplete color properties, got nil")
	}
}

func TestApplyCropPad(t *testing.T) {
	n := yuvNode(frame.YUV420P8, 16, 12)
	// Distinct luma per row to track geometry.
	for y := 0; y < 12; y++ {
		for x := 0; x < 16; x++ {
			n.Planes[0][y*16+x] = uint16(y*16 + x)
		}
	}

	plan := Plan{Deltas: Deltas{CropTop: 2, CropLeft: 4, PadBottom: 2}}
	out, err := Apply(n, plan)
	if err != nil {
		t.Fatalf("got error: %v want: nil", err)
	}
	if out.Width != 12 || out.Height != 12 {
		t.Fatalf("output %dx%d want 12x12", out.Width, out.Height)
	}
	// Top-left of the output is source (4, 2).
	if out.Planes[0][0] != 2*16+4 {
		t.Errorf("cropped origin sample %d want %d", out.Planes[0][0], 2*16+4)
	}
	// Pad rows fill with limited-range black.
	if got := out.Planes[0][11*12]; got != 16 {
		t.Errorf("pad luma %d want black level 16", got)
	}
	if got := out.Planes[1][5*6]; got != 128 {
		t.Errorf("pad chroma %d want neutral 128", got)
	}
	if out.Props != n.Props {
		t.Error("apply dropped color properties")
	}
}

func TestApplyPromotesWhenPlanned(t *testing.T) {
	n := yuvNode(frame.YUV420P8, 16, 12)
	plan := Plan{
		Deltas:             Deltas{CropTop: 1},
		RequiresFullChroma: true,
		Axis:               AxisVertical,
	}
	out, err := Apply(n, plan)
	if err != nil {
		t.Fatalf("got error: %v want: nil", err)
	}
	if out.Format != frame.YUV444P16 {
		t.Errorf("output format %s want yuv444p16", out.Format)
	}
	if out.Height != 11 {
		t.Errorf("output height %d want 11", out.Height)
	}
}

func TestApplyMisalignedPlanIsPlannerBug(t *testing.T) {
	n := yuvNode(frame.YUV420P8, 16, 12)
	// A plan with an odd delta but no promotion is malformed for 4:2:0.
	_, err := Apply(n, Plan{Deltas: Deltas{CropTop: 1}})
	if err == nil {
		t.Fatal("expected alignment error, got nil")
	}
	var ge *Error
	if !errors.As(err, &ge) {
		t.Fatalf("error %T is not a geometry invariant error", err)
	}
}

func TestApplyFullRangePadLevel(t *testing.T) {
	n := yuvNode(frame.YUV420P8, 8, 8)
	n.Props.Range = colorprops.RangeFull
	out, err := Apply(n, Plan{Deltas: Deltas{PadBottom: 2}})
	if err != nil {
		t.Fatalf("got error: %v want: nil", err)
	}
	if got := out.Planes[0][9*8]; got != 0 {
		t.Errorf("full-range pad luma %d want 0", got)
	}
}

func TestApplyCropConsumesFrame(t *testing.T) {
	n := yuvNode(frame.YUV420P8, 8, 8)
	if _, err := Apply(n, Plan{Deltas: Deltas{CropTop: 8}}); err == nil {
		t.Error("expected error for crop consuming the frame, got nil")
	}
}
