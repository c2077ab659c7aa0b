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

import (
	"fmt"
	"strings"

	"github.com/gitgerby/frame-factory/internal/pkg/tonemap"
)

// ClipProcessError reports that a clip could not be processed: the tone-map
// retry ladder was exhausted, or a required backend capability is missing.
// It carries the failing stage and the full retry history so the caller can
// surface what happened without a stack trace.
type ClipProcessError struct {
	Clip     string
	Stage    string
	Attempts []tonemap.Attempt
	Err      error
}

func (e *ClipProcessError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "clip %q failed at stage %s: %v", e.Clip, e.Stage, e.Err)
	for _, a := range e.Attempts {
		outcome := "failed"
		if a.Succeeded {
			outcome = "succeeded"
		}
		fmt.Fprintf(&b, "\n  rung %s %s", a.Rung, outcome)
		if a.Err != "" {
			fmt.Fprintf(&b, ": %s", a.Err)
		}
	}
	return b.String()
}

func (e *ClipProcessError) Unwrap() error { return e.Err }
