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

// Source provides lazily decoded frames for one clip. Implementations decode
// a frame only when it is requested, keeping the pipeline pull-based: frames
// never needed for output or verification are never materialized. Frame must
// be safe for concurrent calls with distinct indices.
type Source interface {
	// Frames returns the number of decodable frames in the clip.
	Frames() int
	// FrameRate returns the clip frame rate in frames per second.
	FrameRate() float64
	// Frame decodes and returns frame idx as a fresh node.
	Frame(idx int) (*Node, error)
}

// DeclaredSource wraps a Source with caller-declared color description,
// filling only the fields the container left unknown. Container metadata
// stays authoritative; the declaration exists so HDR material in containers
// that cannot carry transfer or primaries still enters the pipeline with
// its real description instead of the resolution default.
type DeclaredSource struct {
	Source
	Declared colorprops.Props
}

func (s DeclaredSource) Frame(idx int) (*Node, error) {
	n, err := s.Source.Frame(idx)
	if err != nil {
		return nil, err
	}
	n.Props = colorprops.Merge(n.Props, s.Declared)
	return n, nil
}

// MemorySource is a Source backed by pre-decoded nodes. Used by tests and by
// callers that already hold frames in memory.
type MemorySource struct {
	Nodes []*Node
	FPS   float64
}

func (s *MemorySource) Frames() int { return len(s.Nodes) }

func (s *MemorySource) FrameRate() float64 {
	if s.FPS <= 0 {
		return 24
	}
	return s.FPS
}

func (s *MemorySource) Frame(idx int) (*Node, error) {
	if idx < 0 || idx >= len(s.Nodes) {
		return nil, fmt.Errorf("frame %d out of range, clip holds %d", idx, len(s.Nodes))
	}
	return s.Nodes[idx].Clone(), nil
}
