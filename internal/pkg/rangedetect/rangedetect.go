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

// Package rangedetect infers limited versus full sample range from luma
// statistics when container metadata is missing, and flags mismatches when
// metadata and pixels disagree. Explicit metadata always wins; detection
// only fills genuine gaps.
package rangedetect

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/logger"
	"gonum.org/v1/gonum/stat"

	"github.com/gitgerby/frame-factory/internal/pkg/colorprops"
	"github.com/gitgerby/frame-factory/internal/pkg/frame"
)

// Classification thresholds on the 8-bit luma scale. Samples clustering
// inside nominal studio swing (16-235) classify as limited; excursions well
// past those levels classify as full.
const (
	limitedBlack = 16.0
	limitedWhite = 235.0
	// headroom tolerates minor overshoot ringing around the studio levels
	// before a clip is called full range.
	headroom = 4.0
	// loQuantile/hiQuantile trim isolated hot or dead pixels so a single
	// outlier cannot flip the classification.
	loQuantile = 0.001
	hiQuantile = 0.999
)

// Detector classifies the sample range of clips, memoizing one result per
// clip key. Results are write-once and safe for concurrent readers.
type Detector struct {
	mu    sync.Mutex
	cache map[string]colorprops.Range
}

// New returns an empty Detector.
func New() *Detector {
	return &Detector{cache: make(map[string]colorprops.Range)}
}

// Classify inspects one frame's luma plane and returns the inferred range.
// The low and high trimmed quantiles of the luma codes are rescaled to the
// 8-bit scale and compared against studio swing.
func Classify(n *frame.Node) colorprops.Range {
	p := n.Planes[0]
	if len(p) == 0 {
		return colorprops.RangeLimited
	}
	samples := make([]float64, len(p))
	scale := float64(int(1) << (n.Format.Bits - 8))
	for i, v := range p {
		samples[i] = float64(v) / scale
	}
	sort.Float64s(samples)
	lo := stat.Quantile(loQuantile, stat.Empirical, samples, nil)
	hi := stat.Quantile(hiQuantile, stat.Empirical, samples, nil)
	if lo < limitedBlack-headroom || hi > limitedWhite+headroom {
		return colorprops.RangeFull
	}
	return colorprops.RangeLimited
}

// Detect classifies the representative frame of a clip, caching the result
// under key so each clip is sampled at most once per run. The temporal
// midpoint stands in as the representative frame.
func (d *Detector) Detect(src frame.Source, key string) (colorprops.Range, error) {
	d.mu.Lock()
	if r, ok := d.cache[key]; ok {
		d.mu.Unlock()
		return r, nil
	}
	d.mu.Unlock()

	if src.Frames() == 0 {
		return colorprops.RangeUnknown, fmt.Errorf("clip %q has no frames to sample", key)
	}
	n, err := src.Frame(src.Frames() / 2)
	if err != nil {
		return colorprops.RangeUnknown, fmt.Errorf("failed to decode range sample frame: %v", err)
	}
	r := Classify(n)

	d.mu.Lock()
	// First writer wins so concurrent detections of one clip stay coherent.
	if prev, ok := d.cache[key]; ok {
		r = prev
	} else {
		d.cache[key] = r
	}
	d.mu.Unlock()
	return r, nil
}

// Check compares explicit container metadata against the detected range and
// logs a warning on mismatch. The metadata value is returned unchanged:
// detection is a hint, never a silent override.
func Check(key string, meta, detected colorprops.Range) colorprops.Range {
	if meta == colorprops.RangeUnknown {
		return detected
	}
	if detected != colorprops.RangeUnknown && detected != meta {
		logger.Warningf("%s: metadata claims %s range but sampled luma suggests %s; trusting metadata", key, meta, detected)
	}
	return meta
}
