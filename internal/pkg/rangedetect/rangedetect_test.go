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

package rangedetect

import (
	"testing"

	"github.com/gitgerby/frame-factory/internal/pkg/colorprops"
	"github.com/gitgerby/frame-factory/internal/pkg/frame"
)

// gradientFrame builds an 8-bit 4:2:0 frame whose luma sweeps linearly from
// lo to hi.
func gradientFrame(lo, hi int) *frame.Node {
	n := frame.New(frame.YUV420P8, 64, 64)
	p := n.Planes[0]
	for i := range p {
		p[i] = uint16(lo + (hi-lo)*i/(len(p)-1))
	}
	return n
}

func TestClassify(t *testing.T) {
	testCases := []struct {
		desc     string
		node     *frame.Node
		expected colorprops.Range
	}{
		{
			desc:     "studio swing classifies limited",
			node:     gradientFrame(16, 235),
			expected: colorprops.RangeLimited,
		},
		{
			desc:     "full swing classifies full",
			node:     gradientFrame(0, 255),
			expected: colorprops.RangeFull,
		},
		{
			desc:     "overshoot within headroom stays limited",
			node:     gradientFrame(13, 238),
			expected: colorprops.RangeLimited,
		},
		{
			desc:     "deep blacks alone classify full",
			node:     gradientFrame(0, 200),
			expected: colorprops.RangeFull,
		},
		{
			desc:     "narrow mid-gray ramp classifies limited",
			node:     gradientFrame(100, 150),
			expected: colorprops.RangeLimited,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()
			if got := Classify(tc.node); got != tc.expected {
				t.Errorf("%q: Classify() = %s want %s", tc.desc, got, tc.expected)
			}
		})
	}
}

func TestClassifyOutlierTrimming(t *testing.T) {
	// One dead pixel in an otherwise limited frame must not flip the
	// classification; the trimmed quantiles exclude it.
	n := gradientFrame(16, 235)
	n.Planes[0][0] = 0
	if got := Classify(n); got != colorprops.RangeLimited {
		t.Errorf("single outlier flipped classification to %s", got)
	}
}

func TestClassifyTenBit(t *testing.T) {
	n := frame.New(frame.YUV420P10, 32, 32)
	p := n.Planes[0]
	// Full-range 10-bit sweep: 0..1023 rescales past studio swing.
	for i := range p {
		p[i] = uint16(1023 * i / (len(p) - 1))
	}
	if got := Classify(n); got != colorprops.RangeFull {
		t.Errorf("10-bit full sweep classified %s want pc", got)
	}
}

func TestDetectMemoizes(t *testing.T) {
	src := &frame.MemorySource{
		Nodes: []*frame.Node{gradientFrame(0, 255), gradientFrame(0, 255), gradientFrame(0, 255)},
		FPS:   24,
	}
	d := New()

	r, err := d.Detect(src, "clip")
	if err != nil {
		t.Fatalf("got error: %v want: nil", err)
	}
	if r != colorprops.RangeFull {
		t.Fatalf("Detect() = %s want pc", r)
	}

	// Second call must come from the cache even if the source changes.
	src.Nodes = []*frame.Node{gradientFrame(16, 235)}
	r, err = d.Detect(src, "clip")
	if err != nil {
		t.Fatalf("got error: %v want: nil", err)
	}
	if r != colorprops.RangeFull {
		t.Errorf("cached Detect() = %s want pc", r)
	}
}

func TestDetectEmptySource(t *testing.T) {
	d := New()
	if _, err := d.Detect(&frame.MemorySource{}, "empty"); err == nil {
		t.Error("expected error for empty source, got nil")
	}
}

func TestCheck(t *testing.T) {
	testCases := []struct {
		desc     string
		meta     colorprops.Range
		detected colorprops.Range
		expected colorprops.Range
	}{
		{
			desc:     "metadata wins over disagreeing detection",
			meta:     colorprops.RangeLimited,
			detected: colorprops.RangeFull,
			expected: colorprops.RangeLimited,
		},
		{
			desc:     "agreement passes through",
			meta:     colorprops.RangeFull,
			detected: colorprops.RangeFull,
			expected: colorprops.RangeFull,
		},
		{
			desc:     "missing metadata adopts detection",
			meta:     colorprops.RangeUnknown,
			detected: colorprops.RangeLimited,
			expected: colorprops.RangeLimited,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()
			if got := Check("clip", tc.meta, tc.detected); got != tc.expected {
				t.Errorf("%q: Check() = %s want %s", tc.desc, got, tc.expected)
			}
		})
	}
}
