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

import "math"

// SMPTE ST.2084 (PQ) constants.
const (
	pqM1 = 2610.0 / 16384
	pqM2 = 2523.0 / 4096 * 128
	pqC1 = 3424.0 / 4096
	pqC2 = 2413.0 / 4096 * 32
	pqC3 = 2392.0 / 4096 * 32

	// pqPeakNits is the absolute luminance a PQ code value of 1.0 maps to.
	pqPeakNits = 10000.0

	// hlgPeakNits is the nominal peak of an HLG display per BT.2100.
	hlgPeakNits = 1000.0
	// hlgGamma is the reference OOTF system gamma.
	hlgGamma = 1.2
)

// ARIB STD-B67 (HLG) inverse OETF constants.
const (
	hlgA = 0.17883277
	hlgB = 0.28466892
	hlgC = 0.55991073
)

// pqEOTF decodes a PQ code value in [0,1] to absolute luminance in nits.
func pqEOTF(e float64) float64 {
	if e <= 0 {
		return 0
	}
	ep := math.Pow(e, 1/pqM2)
	num := ep - pqC1
	if num < 0 {
		num = 0
	}
	den := pqC2 - pqC3*ep
	return pqPeakNits * math.Pow(num/den, 1/pqM1)
}

// pqOETF encodes absolute luminance in nits to a PQ code value in [0,1].
func pqOETF(nits float64) float64 {
	if nits <= 0 {
		return 0
	}
	y := math.Pow(nits/pqPeakNits, pqM1)
	return math.Pow((pqC1+pqC2*y)/(1+pqC3*y), pqM2)
}

// hlgInverseOETF decodes an HLG code value in [0,1] to normalized scene
// light in [0,1].
func hlgInverseOETF(e float64) float64 {
	if e <= 0 {
		return 0
	}
	if e <= 0.5 {
		return e * e / 3
	}
	return (math.Exp((e-hlgC)/hlgA) + hlgB) / 12
}

// hlgEOTF decodes an HLG code value to absolute display luminance in nits by
// applying the inverse OETF followed by the reference OOTF at the nominal
// 1000 nit display peak.
func hlgEOTF(e float64) float64 {
	scene := hlgInverseOETF(e)
	return hlgPeakNits * math.Pow(scene, hlgGamma)
}

// bt1886Encode applies the SDR display gamma encode to a normalized linear
// value in [0,1].
func bt1886Encode(x float64) float64 {
	if x <= 0 {
		return 0
	}
	return math.Pow(x, 1/2.4)
}

// bt2020To709 converts a linear-light RGB triple from BT.2020 primaries to
// BT.709. Out-of-gamut results clamp at zero, a plain colorimetric clip
// rather than perceptual gamut mapping.
func bt2020To709(r, g, b float64) (float64, float64, float64) {
	nr := 1.6605*r - 0.5876*g - 0.0728*b
	ng := -0.1246*r + 1.1329*g - 0.0083*b
	nb := -0.0182*r - 0.1006*g + 1.1187*b
	if nr < 0 {
		nr = 0
	}
	if ng < 0 {
		ng = 0
	}
	if nb < 0 {
		nb = 0
	}
	return nr, ng, nb
}
