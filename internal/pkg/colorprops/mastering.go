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

import (
	"fmt"
	"strconv"
	"strings"
)

// Mastering carries the HDR mastering-display and content-light-level side
// data of a clip, when the container provides it. Luminance values are in
// nits. A zero MaxLuminance means the side data was absent and the tone
// mapper should fall back to the transfer function's nominal peak.
type Mastering struct {
	MaxLuminance float64
	MinLuminance float64
	MaxCLL       int
	MaxFALL      int
}

// evalLuminanceFraction evaluates a luminance value from its fraction string
// representation as emitted in mastering display side data, e.g. "10000000/10000".
// It splits the input on '/' and returns the quotient as nits, or an error if
// either component fails to parse or the denominator is zero.
func evalLuminanceFraction(frac string) (float64, error) {
	splits := strings.Split(frac, "/")
	if len(splits) != 2 {
		return 0, fmt.Errorf("invalid luminance fraction: %s", frac)
	}
	n, err := strconv.ParseFloat(splits[0], 64)
	if err != nil {
		return 0, err
	}
	d, err := strconv.ParseFloat(splits[1], 64)
	if err != nil {
		return 0, err
	}
	if d == 0 {
		return 0, fmt.Errorf("zero denominator in luminance fraction: %s", frac)
	}
	return n / d, nil
}

// ParseMastering builds a Mastering from the fraction-formatted max/min
// luminance strings of mastering display side data plus the integer content
// light levels. Empty luminance strings are treated as absent side data and
// leave the corresponding field zero.
func ParseMastering(maxLum, minLum string, maxCLL, maxFALL int) (Mastering, error) {
	m := Mastering{MaxCLL: maxCLL, MaxFALL: maxFALL}
	if maxLum != "" {
		v, err := evalLuminanceFraction(maxLum)
		if err != nil {
			return Mastering{}, fmt.Errorf("failed to eval max luminance: %v", err)
		}
		m.MaxLuminance = v
	}
	if minLum != "" {
		v, err := evalLuminanceFraction(minLum)
		if err != nil {
			return Mastering{}, fmt.Errorf("failed to eval min luminance: %v", err)
		}
		m.MinLuminance = v
	}
	return m, nil
}

// PeakNits returns the best available estimate of the source's static peak
// brightness: MaxCLL when present, otherwise the mastering display max
// luminance, otherwise the nominal peak of the transfer function (10000 for
// PQ, 1000 for HLG).
func (m Mastering) PeakNits(t Transfer) float64 {
	if m.MaxCLL > 0 {
		return float64(m.MaxCLL)
	}
	if m.MaxLuminance > 0 {
		return m.MaxLuminance
	}
	if t == TransferHLG {
		return 1000
	}
	return 10000
}
