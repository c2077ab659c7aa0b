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
	"sort"

	"gonum.org/v1/gonum/stat"
)

// peakTracker smooths per-frame scene peak estimates across a sliding window
// and resets the window on scene cuts. It is owned by a single Engine and is
// not safe for concurrent use; engines are per clip and frames of one clip
// evaluate sequentially through it.
type peakTracker struct {
	window []float64
	size   int
	low    float64
	high   float64
}

// observe folds a raw per-frame peak estimate into the smoothing window and
// returns the smoothed peak. A relative jump at or above the high threshold
// is treated as a scene cut and clears the window; a change below the low
// threshold is treated as measurement noise and does not disturb the
// window.
func (t *peakTracker) observe(raw float64) float64 {
	if t.size <= 0 {
		return raw
	}
	if n := len(t.window); n > 0 {
		last := t.window[n-1]
		rel := math.Abs(raw-last) / math.Max(last, 1e-6)
		switch {
		case rel >= t.high:
			t.window = t.window[:0]
		case rel < t.low:
			return stat.Mean(t.window, nil)
		}
	}
	t.window = append(t.window, raw)
	if len(t.window) > t.size {
		t.window = t.window[len(t.window)-t.size:]
	}
	return stat.Mean(t.window, nil)
}

// estimatePeak returns the configured percentile of the sampled luminance
// values in nits. Samples are consumed (sorted in place).
func estimatePeak(samples []float64, percentile float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	sort.Float64s(samples)
	return stat.Quantile(percentile, stat.Empirical, samples, nil)
}
