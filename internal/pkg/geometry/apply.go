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

package geometry

import (
	"fmt"

	"github.com/google/logger"

	"github.com/gitgerby/frame-factory/internal/pkg/colorprops"
	"github.com/gitgerby/frame-factory/internal/pkg/frame"
)

// Error indicates a geometry operation that violated the planner's
// invariants. Given a well-formed Plan it is unreachable; its presence
// signals a planner bug rather than a runtime condition to recover from.
type Error struct {
	Op     string
	Detail string
}

func (e *Error) Error() string {
	return fmt.Sprintf("geometry invariant violated in %s: %s", e.Op, e.Detail)
}

// Promote converts a subsampled YUV node to 16-bit 4:4:4 using the node's
// already-normalized color properties as explicit conversion inputs. Chroma
// upsampling replicates the co-sited sample and depth promotion is a plain
// shift; no stage of the promotion dithers, keeping geometry bit-exact and
// deterministic. Nodes already in RGB or 4:4:4 only gain depth.
func Promote(n *frame.Node) (*frame.Node, error) {
	if !n.Props.Complete() {
		return nil, &Error{Op: "promote", Detail: fmt.Sprintf("node color properties incomplete (%s); promotion never re-samples pixels to guess them", n.Props)}
	}
	if n.Format.Family == frame.FamilyRGB {
		out, err := frame.ToRGB48(n)
		if err != nil {
			return nil, err
		}
		return out, nil
	}

	f := frame.YUV444P16
	out := frame.New(f, n.Width, n.Height)
	out.Props = n.Props
	for k, v := range n.Tags {
		out.SetTag(k, v)
	}
	shift := uint(16 - n.Format.Bits)

	// Luma: depth promotion only.
	for i, v := range n.Planes[0] {
		out.Planes[0][i] = v << shift
	}
	// Chroma: replicate subsampled samples up to full resolution.
	cw, _ := n.PlaneDims(1)
	for p := 1; p <= 2; p++ {
		for y := 0; y < n.Height; y++ {
			cy := y >> n.Format.SubH
			for x := 0; x < n.Width; x++ {
				cx := x >> n.Format.SubW
				out.Planes[p][y*n.Width+x] = n.Planes[p][cy*cw+cx] << shift
			}
		}
	}
	return out, nil
}

// Apply executes the plan against a node: promote when the plan requires
// full chroma, then crop, then pad. The returned node carries the input's
// color properties and tags.
func Apply(n *frame.Node, p Plan) (*frame.Node, error) {
	out := n
	if p.RequiresFullChroma {
		promoted, err := Promote(n)
		if err != nil {
			return nil, err
		}
		logger.Infof("promoted %s to %s for odd geometry on %s axis", n.Format, promoted.Format, p.Axis)
		out = promoted
	}

	var err error
	if p.CropTop|p.CropBottom|p.CropLeft|p.CropRight != 0 {
		out, err = crop(out, p.CropTop, p.CropBottom, p.CropLeft, p.CropRight)
		if err != nil {
			return nil, err
		}
	}
	if p.PadTop|p.PadBottom|p.PadLeft|p.PadRight != 0 {
		out, err = pad(out, p.PadTop, p.PadBottom, p.PadLeft, p.PadRight)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// checkAlignment rejects odd offsets on subsampled axes. Reaching this with
// a planner-produced Plan means the planner is broken.
func checkAlignment(n *frame.Node, op string, top, bottom, left, right int) error {
	if n.Format.SubsampledVertically() && (odd(top) || odd(bottom)) {
		return &Error{Op: op, Detail: fmt.Sprintf("odd vertical delta %d/%d on vertically subsampled format %s", top, bottom, n.Format)}
	}
	if n.Format.SubsampledHorizontally() && (odd(left) || odd(right)) {
		return &Error{Op: op, Detail: fmt.Sprintf("odd horizontal delta %d/%d on horizontally subsampled format %s", left, right, n.Format)}
	}
	return nil
}

func crop(n *frame.Node, top, bottom, left, right int) (*frame.Node, error) {
	if err := checkAlignment(n, "crop", top, bottom, left, right); err != nil {
		return nil, err
	}
	w := n.Width - left - right
	h := n.Height - top - bottom
	if w <= 0 || h <= 0 {
		return nil, &Error{Op: "crop", Detail: fmt.Sprintf("crop %d/%d/%d/%d consumes the whole %dx%d frame", top, bottom, left, right, n.Width, n.Height)}
	}
	out := frame.New(n.Format, w, h)
	out.Props = n.Props
	for k, v := range n.Tags {
		out.SetTag(k, v)
	}
	for p := range n.Planes {
		sw, _ := n.PlaneDims(p)
		dw, dh := out.PlaneDims(p)
		px := left >> subShiftW(n.Format, p)
		py := top >> subShiftH(n.Format, p)
		for y := 0; y < dh; y++ {
			src := (y+py)*sw + px
			copy(out.Planes[p][y*dw:(y+1)*dw], n.Planes[p][src:src+dw])
		}
	}
	return out, nil
}

func pad(n *frame.Node, top, bottom, left, right int) (*frame.Node, error) {
	if err := checkAlignment(n, "pad", top, bottom, left, right); err != nil {
		return nil, err
	}
	w := n.Width + left + right
	h := n.Height + top + bottom
	out := frame.New(n.Format, w, h)
	out.Props = n.Props
	for k, v := range n.Tags {
		out.SetTag(k, v)
	}
	for p := range n.Planes {
		fill := blackLevel(n, p)
		dst := out.Planes[p]
		for i := range dst {
			dst[i] = fill
		}
		sw, sh := n.PlaneDims(p)
		dw, _ := out.PlaneDims(p)
		px := left >> subShiftW(n.Format, p)
		py := top >> subShiftH(n.Format, p)
		for y := 0; y < sh; y++ {
			copy(dst[(y+py)*dw+px:(y+py)*dw+px+sw], n.Planes[p][y*sw:(y+1)*sw])
		}
	}
	return out, nil
}

func subShiftW(f frame.Format, plane int) int {
	if plane == 0 || f.Family == frame.FamilyRGB {
		return 0
	}
	return f.SubW
}

func subShiftH(f frame.Format, plane int) int {
	if plane == 0 || f.Family == frame.FamilyRGB {
		return 0
	}
	return f.SubH
}

// blackLevel returns the code value representing black (or neutral chroma)
// for plane p at the node's range and depth.
func blackLevel(n *frame.Node, p int) uint16 {
	d := uint16(1) << (n.Format.Bits - 8)
	if n.Format.Family == frame.FamilyYUV && p > 0 {
		return 128 * d
	}
	if n.Props.Range == colorprops.RangeLimited {
		return 16 * d
	}
	return 0
}
