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

// Package export performs the final range-aware reduction of a 16-bit RGB
// node to 8-bit RGB. Dithering applies only here; every earlier bit-depth
// promotion in the pipeline is undithered, so two exports of the same node
// with the same dither mode are byte-identical.
package export

import (
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/google/logger"

	"github.com/gitgerby/frame-factory/internal/pkg/colorprops"
	"github.com/gitgerby/frame-factory/internal/pkg/frame"
)

// Dither selects the quantization strategy for the 16-to-8-bit reduction.
type Dither int

const (
	DitherErrorDiffusion Dither = iota
	DitherOrdered
	DitherNone
)

func (d Dither) String() string {
	switch d {
	case DitherOrdered:
		return "ordered"
	case DitherNone:
		return "none"
	default:
		return "error_diffusion"
	}
}

// ParseDither maps a configuration string to a Dither mode, defaulting to
// error diffusion.
func ParseDither(s string) (Dither, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "error_diffusion":
		return DitherErrorDiffusion, nil
	case "ordered":
		return DitherOrdered, nil
	case "none":
		return DitherNone, nil
	default:
		return DitherErrorDiffusion, fmt.Errorf("unrecognized dither mode %q", s)
	}
}

// RangeMode selects the export range decision.
type RangeMode int

const (
	// RangeAuto preserves the source range: full stays full, limited stays
	// limited.
	RangeAuto RangeMode = iota
	// RangeForceFull expands limited sources to full range, recording the
	// pre-expansion range in a provenance tag.
	RangeForceFull
	// RangeForceLimited keeps or compresses to limited range.
	RangeForceLimited
)

// ParseRangeMode maps a configuration string to a RangeMode, defaulting to
// auto.
func ParseRangeMode(s string) (RangeMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return RangeAuto, nil
	case "full", "pc":
		return RangeForceFull, nil
	case "limited", "tv":
		return RangeForceLimited, nil
	default:
		return RangeAuto, fmt.Errorf("unrecognized export range %q", s)
	}
}

// Spec governs the final bit-depth reduction step.
type Spec struct {
	Range  RangeMode
	Dither Dither
}

// bayer4 is the 4x4 ordered dither threshold matrix, normalized at use.
var bayer4 = [4][4]float64{
	{0, 8, 2, 10},
	{12, 4, 14, 6},
	{3, 11, 1, 9},
	{7, 15, 5, 13},
}

// Export reduces a 16-bit (or deeper) RGB node to 8-bit RGB applying the
// configured range decision and dither mode. The returned node's range metadata always
// matches its pixel reality; when a limited source is expanded to full by
// explicit request, the pre-expansion range is recorded under the
// SourceColorRange tag for downstream inspection.
func Export(n *frame.Node, spec Spec) (*frame.Node, error) {
	if n.Format.Family != frame.FamilyRGB {
		return nil, fmt.Errorf("export expects an RGB node, got %s", n.Format)
	}
	if err := n.Validate(); err != nil {
		return nil, fmt.Errorf("refusing to export inconsistent node: %v", err)
	}

	srcRange := n.Props.Range
	outRange := srcRange
	switch spec.Range {
	case RangeForceFull:
		outRange = colorprops.RangeFull
	case RangeForceLimited:
		outRange = colorprops.RangeLimited
	}

	out := frame.New(frame.RGB24, n.Width, n.Height)
	out.Props = n.Props
	out.Props.Range = outRange
	for k, v := range n.Tags {
		out.SetTag(k, v)
	}
	if srcRange == colorprops.RangeLimited && outRange == colorprops.RangeFull {
		out.SetTag(frame.TagSourceColorRange, srcRange.String())
		logger.Infof("expanding limited-range source to full-range export; source range recorded in %s tag", frame.TagSourceColorRange)
	}

	scale, off := rangeRemap(srcRange, outRange, n.Format.Bits)
	for p := 0; p < 3; p++ {
		reducePlane(out.Planes[p], n.Planes[p], n.Width, scale, off, spec.Dither)
	}
	return out, nil
}

// rangeRemap returns the linear remap taking source code values at the
// input depth to ideal 8-bit codes at the output range.
func rangeRemap(src, dst colorprops.Range, bits int) (scale, off float64) {
	d := float64(int(1) << (bits - 8))
	srcScale, srcOff := 255.0*d, 0.0
	if src == colorprops.RangeLimited {
		srcScale, srcOff = 219*d, 16*d
	}
	dstScale, dstOff := 255.0, 0.0
	if dst == colorprops.RangeLimited {
		dstScale, dstOff = 219, 16
	}
	scale = dstScale / srcScale
	off = dstOff - srcOff*scale
	return scale, off
}

// reducePlane quantizes one plane to 8-bit codes with the selected dither.
// Error diffusion uses the Floyd-Steinberg kernel in left-to-right scan
// order, which keeps the output fully deterministic for a given input.
func reducePlane(dst, src []uint16, width int, scale, off float64, d Dither) {
	switch d {
	case DitherErrorDiffusion:
		height := len(src) / width
		carry := make([]float64, width+2)
		for y := 0; y < height; y++ {
			next := make([]float64, width+2)
			for x := 0; x < width; x++ {
				i := y*width + x
				v := float64(src[i])*scale + off + carry[x+1]
				q := clamp8(math.Floor(v + 0.5))
				dst[i] = uint16(q)
				e := v - float64(q)
				carry[x+2] += e * 7 / 16
				next[x] += e * 3 / 16
				next[x+1] += e * 5 / 16
				next[x+2] += e * 1 / 16
			}
			carry = next
		}
	case DitherOrdered:
		height := len(src) / width
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				i := y*width + x
				t := (bayer4[y%4][x%4] + 0.5) / 16
				dst[i] = uint16(clamp8(math.Floor(float64(src[i])*scale + off + t)))
			}
		}
	default:
		for i, v := range src {
			dst[i] = uint16(clamp8(math.Floor(float64(v)*scale + off + 0.5)))
		}
	}
}

func clamp8(v float64) int {
	i := int(v)
	if i < 0 {
		return 0
	}
	if i > 255 {
		return 255
	}
	return i
}

// ToImage adapts an exported 8-bit RGB node to the standard library image
// type consumed by lossless encoders.
func ToImage(n *frame.Node) (*image.NRGBA, error) {
	if n.Format != frame.RGB24 {
		return nil, fmt.Errorf("image adapter expects rgb24, got %s", n.Format)
	}
	img := image.NewNRGBA(image.Rect(0, 0, n.Width, n.Height))
	for y := 0; y < n.Height; y++ {
		for x := 0; x < n.Width; x++ {
			i := y*n.Width + x
			o := img.PixOffset(x, y)
			img.Pix[o] = uint8(n.Planes[0][i])
			img.Pix[o+1] = uint8(n.Planes[1][i])
			img.Pix[o+2] = uint8(n.Planes[2][i])
			img.Pix[o+3] = 255
		}
	}
	return img, nil
}

// Sink receives finished stills. The concrete writer (PNG file, upload
// buffer) lives outside this package.
type Sink interface {
	Write(name string, img image.Image) error
}
