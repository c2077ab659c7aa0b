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
	"math"
	"testing"
)

func TestPeakTrackerSmoothing(t *testing.T) {
	tr := peakTracker{size: 4, low: 0.1, high: 0.5}

	if got := tr.observe(1000); got != 1000 {
		t.Fatalf("first observation = %v want 1000", got)
	}
	// A moderate drift folds into the window mean.
	got := tr.observe(1200)
	if math.Abs(got-1100) > 1e-9 {
		t.Errorf("smoothed peak = %v want 1100", got)
	}
}

func TestPeakTrackerSceneCutResets(t *testing.T) {
	tr := peakTracker{size: 4, low: 0.1, high: 0.5}
	tr.observe(1000)
	tr.observe(1100)

	// A jump past the high threshold clears the window; the new scene's
	// estimate stands alone.
	if got := tr.observe(4000); got != 4000 {
		t.Errorf("post-cut peak = %v want 4000", got)
	}
	if len(tr.window) != 1 {
		t.Errorf("window holds %d entries after scene cut, want 1", len(tr.window))
	}
}

func TestPeakTrackerIgnoresNoise(t *testing.T) {
	tr := peakTracker{size: 4, low: 0.1, high: 0.5}
	tr.observe(1000)

	// Sub-threshold flicker does not disturb the window.
	if got := tr.observe(1010); got != 1000 {
		t.Errorf("noisy observation shifted peak to %v", got)
	}
	if len(tr.window) != 1 {
		t.Errorf("window grew to %d entries on noise, want 1", len(tr.window))
	}
}

func TestPeakTrackerWindowBound(t *testing.T) {
	tr := peakTracker{size: 3, low: 0, high: 10}
	for i := 0; i < 10; i++ {
		tr.observe(1000 + float64(i)*200)
	}
	if len(tr.window) > 3 {
		t.Errorf("window grew to %d entries, bound is 3", len(tr.window))
	}
}

func TestPeakTrackerDisabled(t *testing.T) {
	tr := peakTracker{}
	if got := tr.observe(1234); got != 1234 {
		t.Errorf("disabled tracker altered estimate: %v", got)
	}
}

func TestEstimatePeak(t *testing.T) {
	testCases := []struct {
		desc       string
		samples    []float64
		percentile float64
		expected   float64
	}{
		{
			desc:       "max percentile returns brightest sample",
			samples:    []float64{5, 1, 3, 2, 4},
			percentile: 1,
			expected:   5,
		},
		{
			desc:       "median of a sweep",
			samples:    []float64{1, 2, 3, 4, 5},
			percentile: 0.5,
			expected:   3,
		},
		{
			desc:       "empty samples yield zero",
			samples:    nil,
			percentile: 0.999,
			expected:   0,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			if got := estimatePeak(tc.samples, tc.percentile); got != tc.expected {
				t.Errorf("%q: estimatePeak() = %v want %v", tc.desc, got, tc.expected)
			}
		})
	}
}
