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
	"fmt"
	"math"
	"strings"
)

// Curve selects the tone-mapping operator applied during HDR to SDR
// conversion.
type Curve int

const (
	CurveBT2390 Curve = iota
	CurveHable
	CurveMobius
	CurveReinhard
	CurveClip
)

func (c Curve) String() string {
	switch c {
	case CurveBT2390:
		return "bt.2390"
	case CurveHable:
		return "hable"
	case CurveMobius:
		return "mobius"
	case CurveReinhard:
		return "reinhard"
	case CurveClip:
		return "clip"
	default:
		return "unknown"
	}
}

// ParseCurve maps a configuration string to a Curve. The default curve for
// an unset string is bt.2390.
func ParseCurve(s string) (Curve, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "bt.2390", "bt2390":
		return CurveBT2390, nil
	case "hable":
		return CurveHable, nil
	case "mobius":
		return CurveMobius, nil
	case "reinhard":
		return CurveReinhard, nil
	case "clip":
		return CurveClip, nil
	default:
		return CurveBT2390, fmt.Errorf("unrecognized tone curve %q", s)
	}
}

// splineFamily reports whether the curve honors the knee/shoulder offset
// parameter.
func (c Curve) splineFamily() bool { return c == CurveBT2390 || c == CurveMobius }

// mapSignal maps one luminance sample through the curve. sigNits and
// peakNits are the sample and estimated source peak in absolute nits,
// targetNits is the SDR peak, floorNits the display black floor, and knee
// the knee/shoulder offset honored by the spline family. The result is
// normalized display light in [0,1].
func (c Curve) mapSignal(sigNits, peakNits, targetNits, floorNits, knee float64) float64 {
	sig := sigNits / targetNits
	peak := peakNits / targetNits
	if peak <= 1 {
		// Source fits inside the target; nothing to compress.
		return clamp01(sig)
	}
	switch c {
	case CurveBT2390:
		return bt2390EETF(sigNits, peakNits, targetNits, floorNits, knee)
	case CurveHable:
		return clamp01(hable(sig) / hable(peak))
	case CurveMobius:
		return clamp01(mobius(sig, peak, knee))
	case CurveReinhard:
		return clamp01(sig * (1 + sig/(peak*peak)) / (1 + sig))
	case CurveClip:
		return clamp01(sig)
	default:
		return clamp01(sig)
	}
}

// hable is the classic filmic shoulder used for HDR rolloff.
func hable(x float64) float64 {
	const (
		a = 0.15
		b = 0.50
		c = 0.10
		d = 0.20
		e = 0.02
		f = 0.30
	)
	return (x*(x*a+c*b)+d*e)/(x*(x*a+b)+d*f) - e/f
}

// mobius preserves the signal linearly below the knee j and compresses the
// remainder through a rational shoulder that hits 1.0 at the source peak.
func mobius(x, peak, j float64) float64 {
	if x <= j {
		return x
	}
	a := -j * j * (peak - 1) / (j*j - 2*j + peak)
	b := (j*j - 2*j*peak + peak) / math.Max(peak-1, 1e-6)
	scale := (b*b + 2*b*j + j*j) / (b - a)
	return scale * (x + a) / (x + b)
}

// bt2390EETF implements the BT.2390 hermite-spline EETF on the PQ scale.
// Inputs are absolute nits; the mapping converts to the PQ domain,
// compresses highlights above the knee, lifts toward the display black
// floor, and returns normalized display light relative to the target.
func bt2390EETF(sigNits, peakNits, targetNits, floorNits, knee float64) float64 {
	if sigNits <= 0 {
		return 0
	}
	// Everything below is on the PQ scale normalized to the source peak.
	srcMax := pqOETF(peakNits)
	maxLum := pqOETF(targetNits) / srcMax
	minLum := pqOETF(floorNits) / srcMax

	e1 := pqOETF(sigNits) / srcMax
	ks := clamp01(1.5*maxLum - 0.5 + knee)

	e2 := e1
	if e1 > ks && ks < 1 {
		t := (e1 - ks) / (1 - ks)
		t2 := t * t
		t3 := t2 * t
		e2 = (2*t3-3*t2+1)*ks + (t3-2*t2+t)*(1-ks) + (-2*t3+3*t2)*maxLum
	}
	e3 := e2 + minLum*math.Pow(1-e2, 4)
	return clamp01(pqEOTF(e3*srcMax) / targetNits)
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
