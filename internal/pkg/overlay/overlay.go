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

// Package overlay burns operator-facing diagnostic text into a frame while
// preserving its color metadata. Text rendering backends are permitted to
// reset or drop metadata, so Stamp re-applies the pre-overlay color
// properties and provenance tags to the node it returns; skipping that
// restamp would void every invariant established upstream.
package overlay

import (
	"image"
	"image/draw"

	"github.com/google/logger"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/gitgerby/frame-factory/internal/pkg/colorprops"
	"github.com/gitgerby/frame-factory/internal/pkg/frame"
)

// Renderer rasterizes text lines onto a frame. Implementations may return a
// node stripped of color properties and tags; Stamp restores them.
type Renderer interface {
	Draw(n *frame.Node, lines []string) (*frame.Node, error)
}

// NullRenderer is the no-op implementation used when the backend lacks text
// rendering capability. Frames pass through un-stamped.
type NullRenderer struct{}

func (NullRenderer) Draw(n *frame.Node, _ []string) (*frame.Node, error) { return n, nil }

// BasicRenderer rasterizes with the fixed 7x13 bitmap face, scaled up for
// high-resolution frames.
type BasicRenderer struct {
	// Margin in pixels from the top-left corner; defaults to 12.
	Margin int
}

// Stamp renders the diagnostic lines through r and returns the stamped
// node. Overlay failures never abort the run: on error the original,
// un-stamped node proceeds and the failure is logged. The pre-overlay color
// properties and tags are explicitly re-applied to the returned node, so
// stamping an already-stamped node leaves its metadata unchanged.
func Stamp(n *frame.Node, r Renderer, lines []string) *frame.Node {
	props := n.Props
	tags := make(map[string]string, len(n.Tags))
	for k, v := range n.Tags {
		tags[k] = v
	}

	out, err := r.Draw(n, lines)
	if err != nil {
		logger.Warningf("overlay text rendering failed, frame proceeds un-stamped: %v", err)
		out = n
	}
	// Restamp the node that is actually returned downstream.
	out.Props = props
	out.Tags = nil
	for k, v := range tags {
		out.SetTag(k, v)
	}
	logger.Infof("overlay applied %d lines, color properties restamped (%s)", len(lines), props)
	return out
}

// Draw rasterizes the lines into an alpha mask and burns white glyphs with
// a one-pixel drop shadow into a copy of the frame. The returned node
// deliberately carries no color properties or tags, mirroring backend text
// renderers that reset metadata; Stamp restores both.
func (b BasicRenderer) Draw(n *frame.Node, lines []string) (*frame.Node, error) {
	margin := b.Margin
	if margin <= 0 {
		margin = 12
	}
	scale := n.Height / 720
	if scale < 1 {
		scale = 1
	}

	face := basicfont.Face7x13
	mask := image.NewAlpha(image.Rect(0, 0, n.Width, n.Height))
	d := font.Drawer{
		Dst:  mask,
		Src:  image.NewUniform(image.White),
		Face: face,
	}
	lineHeight := face.Metrics().Height.Ceil() + 2
	for i, line := range lines {
		d.Dot = fixed.P(margin/scale, margin/scale+face.Metrics().Ascent.Ceil()+i*lineHeight)
		d.DrawString(line)
	}
	if scale > 1 {
		mask = scaleMask(mask, scale)
	}

	out := frame.New(n.Format, n.Width, n.Height)
	for p := range n.Planes {
		copy(out.Planes[p], n.Planes[p])
	}
	burn(out, n.Props, mask)
	return out, nil
}

// scaleMask integer-upscales the rasterized mask so the bitmap face stays
// legible on large frames.
func scaleMask(m *image.Alpha, scale int) *image.Alpha {
	b := m.Bounds()
	out := image.NewAlpha(b)
	draw.Draw(out, b, image.Transparent, image.Point{}, draw.Src)
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			if m.AlphaAt(x/scale, y/scale).A > 0 {
				out.SetAlpha(x, y, m.AlphaAt(x/scale, y/scale))
			}
		}
	}
	return out
}

// burn writes white glyphs (with a one-pixel black shadow for legibility)
// into the node's planes at the positions covered by the mask. props is the
// consumed node's color description, needed to pick correct white and black
// code levels; the output node's own metadata stays unset here.
func burn(n *frame.Node, props colorprops.Props, mask *image.Alpha) {
	white, black := textLevels(n.Format, props)
	neutral := uint16(128) << (n.Format.Bits - 8)

	set := func(x, y int, lum uint16) {
		if x < 0 || y < 0 || x >= n.Width || y >= n.Height {
			return
		}
		i := y*n.Width + x
		if n.Format.Family == frame.FamilyRGB {
			n.Planes[0][i] = lum
			n.Planes[1][i] = lum
			n.Planes[2][i] = lum
			return
		}
		n.Planes[0][i] = lum
		if !n.Format.Subsampled() {
			n.Planes[1][i] = neutral
			n.Planes[2][i] = neutral
		}
	}

	for y := 0; y < n.Height; y++ {
		for x := 0; x < n.Width; x++ {
			if mask.AlphaAt(x, y).A == 0 {
				continue
			}
			set(x+1, y+1, black)
			set(x, y, white)
		}
	}
}

// textLevels returns the white and black code values for the format and
// range.
func textLevels(f frame.Format, props colorprops.Props) (white, black uint16) {
	d := uint16(1) << (f.Bits - 8)
	if props.Range == colorprops.RangeLimited {
		return 235 * d, 16 * d
	}
	return uint16(int(1)<<f.Bits - 1), 0
}
