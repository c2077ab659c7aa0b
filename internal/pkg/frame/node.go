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

	"github.com/gitgerby/frame-factory/internal/pkg/colorprops"
)

// Tag keys attached to nodes as processing provenance.
const (
	TagToneMap          = "ToneMap"
	TagSourceColorRange = "SourceColorRange"
)

// Node is one decodable frame plus its color description and provenance
// tags. Ownership follows a linear chain: a stage consumes its input node
// and returns a fresh node, so two stages never alias the same planes for
// writing.
type Node struct {
	Format Format
	Width  int
	Height int
	Planes [3][]uint16
	Props  colorprops.Props
	Tags   map[string]string
}

// New allocates a node with zeroed planes for the given format and luma
// dimensions.
func New(f Format, width, height int) *Node {
	n := &Node{Format: f, Width: width, Height: height}
	for i := 0; i < 3; i++ {
		w, h := n.PlaneDims(i)
		n.Planes[i] = make([]uint16, w*h)
	}
	return n
}

// PlaneDims returns the dimensions of plane i, accounting for chroma
// subsampling. Plane 0 is luma (or R), planes 1 and 2 are chroma (or G/B).
func (n *Node) PlaneDims(i int) (int, int) {
	if i == 0 || n.Format.Family == FamilyRGB {
		return n.Width, n.Height
	}
	// Rounds up for odd luma dimensions.
	w := (n.Width + n.Format.SubW) >> n.Format.SubW
	h := (n.Height + n.Format.SubH) >> n.Format.SubH
	return w, h
}

// Clone returns a deep copy of the node, planes and tags included.
func (n *Node) Clone() *Node {
	out := &Node{Format: n.Format, Width: n.Width, Height: n.Height, Props: n.Props}
	for i := range n.Planes {
		out.Planes[i] = make([]uint16, len(n.Planes[i]))
		copy(out.Planes[i], n.Planes[i])
	}
	out.Tags = copyTags(n.Tags)
	return out
}

// WithProps returns a new node sharing this node's planes but carrying the
// given color description. Safe under the linear ownership chain because
// the input node is considered consumed.
func (n *Node) WithProps(p colorprops.Props) *Node {
	out := &Node{Format: n.Format, Width: n.Width, Height: n.Height, Planes: n.Planes, Props: p}
	out.Tags = copyTags(n.Tags)
	return out
}

// SetTag records a provenance tag on the node.
func (n *Node) SetTag(key, value string) {
	if n.Tags == nil {
		n.Tags = make(map[string]string)
	}
	n.Tags[key] = value
}

// Tag returns the value of a provenance tag, or "" when unset.
func (n *Node) Tag(key string) string { return n.Tags[key] }

func copyTags(tags map[string]string) map[string]string {
	if tags == nil {
		return nil
	}
	out := make(map[string]string, len(tags))
	for k, v := range tags {
		out[k] = v
	}
	return out
}

// Validate checks structural consistency: plane lengths match the format and
// dimensions, and RGB-family nodes carry the identity matrix rather than a
// leftover YUV matrix code.
func (n *Node) Validate() error {
	for i := range n.Planes {
		w, h := n.PlaneDims(i)
		if len(n.Planes[i]) != w*h {
			return fmt.Errorf("plane %d holds %d samples, want %d (%dx%d)", i, len(n.Planes[i]), w*h, w, h)
		}
	}
	if n.Format.Family == FamilyRGB && n.Props.Matrix != colorprops.MatrixRGB {
		return fmt.Errorf("rgb node carries matrix %q, want rgb identity", n.Props.Matrix)
	}
	return nil
}
