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

package frame

import (
	"fmt"
	"math"

	"github.com/gitgerby/frame-factory/internal/pkg/colorprops"
)

// LumaCoefficients returns the Kr/Kb luma weights for a YUV matrix.
func LumaCoefficients(m colorprops.Matrix) (kr, kb float64, err error) {
	switch m {
	case colorprops.MatrixBT709:
		return 0.2126, 0.0722, nil
	case colorprops.MatrixBT601:
		return 0.2990, 0.1140, nil
	case colorprops.MatrixBT2020NCL:
		return 0.2627, 0.0593, nil
	default:
		return 0, 0, fmt.Errorf("no luma coefficients for matrix %q", m)
	}
}

// rangeScale returns the scale and offset mapping normalized luma [0,1] and
// chroma [-0.5,0.5] to code values at the given depth.
func rangeScale(r colorprops.Range, bits int) (yScale, yOff, cScale, cOff float64) {
	d := float64(int(1) << (bits - 8))
	if r == colorprops.RangeFull {
		m := float64(int(1)<<bits - 1)
		return m, 0, m, float64(int(1) << (bits - 1))
	}
	return 219 * d, 16 * d, 224 * d, 128 * d
}

// NormalizeLuma converts a luma code value to the normalized [0,1] scale for
// the node's range and depth. Out-of-range codes are not clamped so callers
// can observe excursions beyond nominal black and white.
func (n *Node) NormalizeLuma(code uint16) float64 {
	yScale, yOff, _, _ := rangeScale(n.Props.Range, n.Format.Bits)
	return (float64(code) - yOff) / yScale
}

// AverageLuma returns the mean normalized luma of the frame. For RGB nodes
// the first (red) plane stands in, which is adequate for the brightness
// screening this feeds.
func (n *Node) AverageLuma() float64 {
	p := n.Planes[0]
	if len(p) == 0 {
		return 0
	}
	var sum float64
	for _, v := range p {
		sum += float64(v)
	}
	yScale, yOff, _, _ := rangeScale(n.Props.Range, n.Format.Bits)
	return (sum/float64(len(p)) - yOff) / yScale
}

// chromaAt samples the chroma planes for luma position (x, y), honoring the
// node's subsampling factors. Nearest-neighbor siting; geometry promotion is
// responsible for anything finer.
func (n *Node) chromaAt(x, y int) (uint16, uint16) {
	cw, _ := n.PlaneDims(1)
	cx := x >> n.Format.SubW
	cy := y >> n.Format.SubH
	return n.Planes[1][cy*cw+cx], n.Planes[2][cy*cw+cx]
}

// RGBFloats decodes the node to normalized, still gamma-encoded R'G'B'
// channels in [0,1], honoring the node's matrix and range. This is the
// shared front half of both the direct RGB conversion and the tone-mapping
// linearization. Values are clamped to [0,1].
func (n *Node) RGBFloats() (r, g, b []float64, err error) {
	size := n.Width * n.Height
	r = make([]float64, size)
	g = make([]float64, size)
	b = make([]float64, size)

	if n.Format.Family == FamilyRGB {
		m := float64(n.Format.maxValue())
		for i := 0; i < size; i++ {
			r[i] = clampUnit(float64(n.Planes[0][i]) / m)
			g[i] = clampUnit(float64(n.Planes[1][i]) / m)
			b[i] = clampUnit(float64(n.Planes[2][i]) / m)
		}
		return r, g, b, nil
	}

	kr, kb, err := LumaCoefficients(n.Props.Matrix)
	if err != nil {
		return nil, nil, nil, err
	}
	kg := 1 - kr - kb
	yScale, yOff, cScale, cOff := rangeScale(n.Props.Range, n.Format.Bits)
	for y := 0; y < n.Height; y++ {
		for x := 0; x < n.Width; x++ {
			i := y*n.Width + x
			uc, vc := n.chromaAt(x, y)
			yv := (float64(n.Planes[0][i]) - yOff) / yScale
			u := (float64(uc) - cOff) / cScale
			v := (float64(vc) - cOff) / cScale

			rv := yv + 2*(1-kr)*v
			bv := yv + 2*(1-kb)*u
			gv := (yv - kr*rv - kb*bv) / kg
			r[i] = clampUnit(rv)
			g[i] = clampUnit(gv)
			b[i] = clampUnit(bv)
		}
	}
	return r, g, b, nil
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ToRGB48 performs the direct, non-linearized conversion of a YUV node to
// 16-bit RGB using the node's own matrix and range. Transfer and primaries
// pass through untouched and the sample range is preserved, so a limited
// range source yields limited-range RGB codes; the exporter owns any range
// expansion. RGB input nodes are promoted to 16-bit depth and returned
// otherwise unchanged. No dithering is applied.
func ToRGB48(n *Node) (*Node, error) {
	props := n.Props
	props.Matrix = colorprops.MatrixRGB
	if n.Format.Family == FamilyRGB {
		out := promoteDepth(n, 16)
		out.Props = props
		return out, nil
	}
	r, g, b, err := n.RGBFloats()
	if err != nil {
		return nil, err
	}

	out := New(RGB48, n.Width, n.Height)
	out.Props = props
	out.Tags = copyTags(n.Tags)

	oScale, oOff, _, _ := rangeScale(props.Range, 16)
	for i := range r {
		out.Planes[0][i] = quantize16(r[i], oScale, oOff)
		out.Planes[1][i] = quantize16(g[i], oScale, oOff)
		out.Planes[2][i] = quantize16(b[i], oScale, oOff)
	}
	return out, nil
}

// promoteDepth rescales sample codes to the target bit depth by left shift.
// Promotions never dither; only the final 8-bit reduction in the exporter
// does.
func promoteDepth(n *Node, bits int) *Node {
	if n.Format.Bits == bits {
		return n.Clone()
	}
	f := n.Format
	f.Bits = bits
	out := New(f, n.Width, n.Height)
	out.Props = n.Props
	out.Tags = copyTags(n.Tags)
	shift := uint(bits - n.Format.Bits)
	for i := range n.Planes {
		for j, v := range n.Planes[i] {
			out.Planes[i][j] = v << shift
		}
	}
	return out
}

func quantize16(v, scale, off float64) uint16 {
	c := math.Round(v*scale + off)
	if c < 0 {
		c = 0
	}
	if c > 65535 {
		c = 65535
	}
	return uint16(c)
}
