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
	"context"
	"fmt"

	"github.com/google/logger"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/gitgerby/frame-factory/internal/pkg/export"
)

// Run renders the requested frame indices of every clip. Clips are
// independent and process concurrently on up to Workers goroutines; frames
// within one clip evaluate sequentially. The semaphore bounds how many
// decoded frames are in flight at once, which is the only resource shared
// across clips. In strict mode the first clip failure cancels the run; in
// lenient mode per-clip fallbacks inside RenderFrame keep the run going and
// only unrecoverable errors surface here.
func (r *Renderer) Run(ctx context.Context, clips []Clip, frames []int, sink export.Sink) error {
	runID := uuid.NewString()
	logger.Infof("run %s: %d clips, %d frames each", runID, len(clips), len(frames))

	g, ctx := errgroup.WithContext(ctx)
	if r.opts.Workers > 0 {
		g.SetLimit(r.opts.Workers)
	}
	cacheMax := r.opts.FrameCacheMax
	if cacheMax <= 0 {
		cacheMax = 16
	}
	sem := semaphore.NewWeighted(cacheMax)

	for _, clip := range clips {
		clip := clip
		g.Go(func() error {
			cs, err := r.prepare(clip)
			if err != nil {
				return err
			}
			for _, idx := range frames {
				if err := sem.Acquire(ctx, 1); err != nil {
					return err
				}
				name := fmt.Sprintf("%s_%06d.png", clip.Name, idx)
				err := r.RenderFrame(cs, clip, idx, sink, name)
				sem.Release(1)
				if err != nil {
					return fmt.Errorf("run %s: %w", runID, err)
				}
			}
			return nil
		})
	}
	return g.Wait()
}
