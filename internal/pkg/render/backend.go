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

package render

import "github.com/gitgerby/frame-factory/internal/pkg/overlay"

// Backend exposes the fixed capability set of the decode/filter stack the
// pipeline runs on. Capabilities are declared, not probed at call time;
// missing capabilities degrade through the defined fallbacks (tone-map
// bypass or un-stamped frames) instead of runtime attribute inspection.
type Backend interface {
	SupportsTonemap() bool
	SupportsOverlayText() bool
	TextRenderer() overlay.Renderer
}

// SoftwareBackend is the built-in pure-software backend with every
// capability available.
type SoftwareBackend struct{}

func (SoftwareBackend) SupportsTonemap() bool          { return true }
func (SoftwareBackend) SupportsOverlayText() bool      { return true }
func (SoftwareBackend) TextRenderer() overlay.Renderer { return overlay.BasicRenderer{} }

// NullBackend lacks every optional capability. HDR clips fail (strict) or
// fall back to direct conversion (lenient), and frames proceed un-stamped.
type NullBackend struct{}

func (NullBackend) SupportsTonemap() bool          { return false }
func (NullBackend) SupportsOverlayText() bool      { return false }
func (NullBackend) TextRenderer() overlay.Renderer { return overlay.NullRenderer{} }
