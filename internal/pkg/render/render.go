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

// Package render orchestrates the per-frame processing chain: normalize
// color metadata, tone-map HDR sources through the retry ladder, confirm
// sample range, apply planned geometry with chroma-safe promotion, verify
// the tone map once per clip, burn the diagnostic overlay, and export
// range-correct 8-bit RGB. Frames are pulled lazily; nothing decodes until
// an output frame is requested.
package render

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/logger"

	"github.com/gitgerby/frame-factory/internal/pkg/colorprops"
	"github.com/gitgerby/frame-factory/internal/pkg/export"
	"github.com/gitgerby/frame-factory/internal/pkg/frame"
	"github.com/gitgerby/frame-factory/internal/pkg/geometry"
	"github.com/gitgerby/frame-factory/internal/pkg/metricscache"
	"github.com/gitgerby/frame-factory/internal/pkg/overlay"
	"github.com/gitgerby/frame-factory/internal/pkg/rangedetect"
	"github.com/gitgerby/frame-factory/internal/pkg/tonemap"
	"github.com/gitgerby/frame-factory/internal/pkg/verify"
)

// Clip binds a frame source to its identity, static HDR side data, and the
// geometry deltas planned against its comparison partner.
type Clip struct {
	Name      string
	Source    frame.Source
	Mastering colorprops.Mastering
	Deltas    geometry.Deltas
}

// Options is the resolved preset bundle governing a run.
type Options struct {
	ToneMap       tonemap.Params
	Policy        geometry.Policy
	Export        export.Spec
	Verify        verify.Config
	Strict        bool
	Workers       int
	FrameCacheMax int64
}

// Renderer executes the pipeline for one or more clips.
type Renderer struct {
	opts    Options
	backend Backend
	det     *rangedetect.Detector
	cache   *metricscache.Cache

	// newEngine builds every tone-map engine the renderer uses, for both
	// rendering and verification, so a replaced conversion primitive reaches
	// both paths.
	newEngine func(tonemap.Params) (*tonemap.Engine, error)
}

// New builds a renderer. cache may be nil to disable cross-run persistence.
func New(opts Options, backend Backend, cache *metricscache.Cache) *Renderer {
	return &Renderer{
		opts:      opts,
		backend:   backend,
		det:       rangedetect.New(),
		cache:     cache,
		newEngine: tonemap.New,
	}
}

// clipState holds the per-clip decisions computed once and reused for every
// rendered frame of that clip. Detection results are write-once; frames of
// a clip render sequentially on one worker.
type clipState struct {
	props      colorprops.Props
	hdr        bool
	plan       geometry.Plan
	engine     *tonemap.Engine
	verifyOnce sync.Once
	verifyErr  error
}

// prepare computes the clip-level state: normalized color description,
// HDR classification, geometry plan, and a tone-map engine seeded with the
// clip's mastering side data.
func (r *Renderer) prepare(clip Clip) (*clipState, error) {
	if clip.Source.Frames() == 0 {
		return nil, fmt.Errorf("clip %q holds no frames", clip.Name)
	}
	probe, err := clip.Source.Frame(0)
	if err != nil {
		return nil, fmt.Errorf("failed to decode first frame of %q: %v", clip.Name, err)
	}

	props := colorprops.Normalize(probe.Props, probe.Width, probe.Height, func() colorprops.Range {
		return r.detectRange(clip)
	})
	if detected := r.detectRange(clip); detected != colorprops.RangeUnknown {
		props.Range = rangedetect.Check(clip.Name, props.Range, detected)
	}

	cs := &clipState{props: props, hdr: props.IsHDR()}
	if err := r.cache.PutHDR(clip.Name, cs.hdr); err != nil {
		logger.Warningf("failed to persist hdr classification for %q: %v", clip.Name, err)
	}

	cs.plan = geometry.PlanGeometry(clip.Deltas, probe.Format, cs.hdr, r.opts.Policy)
	logger.Infof("%s: geometry plan axis=%s requires_full_chroma=%t policy=%s",
		clip.Name, cs.plan.Axis, cs.plan.RequiresFullChroma, r.opts.Policy)

	params := r.opts.ToneMap
	params.Mastering = clip.Mastering
	cs.engine, err = r.newEngine(params)
	if err != nil {
		return nil, err
	}
	return cs, nil
}

// detectRange runs (or replays) range detection for the clip, consulting
// the persistent cache first. Detection itself is memoized per clip for the
// run's lifetime.
func (r *Renderer) detectRange(clip Clip) colorprops.Range {
	if cached, ok := r.cache.Range(clip.Name); ok {
		return cached
	}
	detected, err := r.det.Detect(clip.Source, clip.Name)
	if err != nil {
		logger.Warningf("range detection unavailable for %q: %v", clip.Name, err)
		return colorprops.RangeUnknown
	}
	if err := r.cache.PutRange(clip.Name, detected); err != nil {
		logger.Warningf("failed to persist range classification for %q: %v", clip.Name, err)
	}
	return detected
}

// RenderFrame runs the full chain for one output frame of a clip and hands
// the finished still to the sink. All verification log events are emitted
// before the writer is invoked.
func (r *Renderer) RenderFrame(cs *clipState, clip Clip, idx int, sink export.Sink, name string) error {
	node, err := clip.Source.Frame(idx)
	if err != nil {
		return fmt.Errorf("failed to decode frame %d of %q: %v", idx, clip.Name, err)
	}
	node = node.WithProps(cs.props)
	logger.Infof("%s frame %d: input %s %dx%d %s", clip.Name, idx, node.Format, node.Width, node.Height, node.Props)

	node, tmRes, err := r.tonemapStage(cs, clip, node)
	if err != nil {
		return err
	}

	node, err = geometry.Apply(node, cs.plan)
	if err != nil {
		return err
	}

	if tmRes.Applied && r.opts.Verify.Enabled {
		if err := r.verifyClip(cs, clip); err != nil {
			return err
		}
	}

	node = overlay.Stamp(node, r.textRenderer(), r.overlayLines(node, tmRes))

	rgb, err := frame.ToRGB48(node)
	if err != nil {
		return fmt.Errorf("final conversion of %q frame %d failed: %v", clip.Name, idx, err)
	}
	out, err := export.Export(rgb, r.opts.Export)
	if err != nil {
		return err
	}
	img, err := export.ToImage(out)
	if err != nil {
		return err
	}
	return sink.Write(name, img)
}

// tonemapStage applies the retry ladder to HDR frames and the defined
// fallbacks when the ladder or the backend cannot serve: strict mode
// escalates a ClipProcessError, lenient mode logs loudly and continues with
// an undithered direct conversion of the original node.
func (r *Renderer) tonemapStage(cs *clipState, clip Clip, node *frame.Node) (*frame.Node, tonemap.Result, error) {
	bypass := tonemap.Result{
		Curve:       r.opts.ToneMap.Curve,
		DynamicPeak: r.opts.ToneMap.DynamicPeak,
		TargetNits:  r.opts.ToneMap.TargetNits,
	}
	if !cs.hdr {
		bypass.Reason = "SDR source"
		logger.Infof("%s: tone map bypassed: %s", clip.Name, bypass.Reason)
		return node, bypass, nil
	}
	if !r.backend.SupportsTonemap() {
		if r.opts.Strict {
			return nil, bypass, &ClipProcessError{
				Clip:  clip.Name,
				Stage: "tonemap",
				Err:   errors.New("backend lacks tone-mapping capability"),
			}
		}
		logger.Errorf("%s: backend lacks tone-mapping capability; falling back to direct conversion", clip.Name)
		return r.directFallback(node, &bypass, "tone mapping unavailable")
	}

	mapped, res, err := cs.engine.Map(node)
	if err == nil {
		return mapped, res, nil
	}

	var exhausted *tonemap.ExhaustedError
	if r.opts.Strict || !errors.As(err, &exhausted) {
		return nil, res, &ClipProcessError{
			Clip:     clip.Name,
			Stage:    "tonemap",
			Attempts: res.Attempts,
			Err:      err,
		}
	}
	logger.Errorf("%s: tone-map retry ladder exhausted (%d attempts); continuing with direct undithered conversion: %v",
		clip.Name, len(res.Attempts), err)
	return r.directFallback(node, &res, "ladder exhausted, direct conversion")
}

// directFallback performs the lenient-mode direct RGB conversion of the
// original node, leaving the result honestly tagged as not tone-mapped.
func (r *Renderer) directFallback(node *frame.Node, res *tonemap.Result, reason string) (*frame.Node, tonemap.Result, error) {
	direct, err := frame.ToRGB48(node)
	if err != nil {
		return nil, *res, fmt.Errorf("direct conversion fallback failed: %v", err)
	}
	res.Applied = false
	res.Reason = reason
	return direct, *res, nil
}

// verifyClip runs tone-map verification at most once per clip. A zero delta
// on an applied tone map escalates in strict mode and logs a warning
// otherwise. The outcome is always logged before any frame of the clip
// reaches the writer.
func (r *Renderer) verifyClip(cs *clipState, clip Clip) error {
	cs.verifyOnce.Do(func() {
		eng, err := r.newEngine(cs.engine.Params())
		if err != nil {
			cs.verifyErr = err
			return
		}
		res, err := verify.Run(clip.Source, eng, r.opts.Verify)
		if err != nil {
			cs.verifyErr = fmt.Errorf("verification of %q failed to run: %v", clip.Name, err)
			return
		}
		logger.Infof("%s: verification frame %d (%s): avg delta %.4f, max delta %.4f",
			clip.Name, res.FrameIndex, res.SelectionReason, res.AvgDelta, res.MaxDelta)
		if err := r.cache.PutVerification(clip.Name, res); err != nil {
			logger.Warningf("failed to persist verification result for %q: %v", clip.Name, err)
		}
		if res.AvgDelta == 0 && res.MaxDelta == 0 {
			fail := &verify.Failure{Result: *res}
			if r.opts.Strict {
				cs.verifyErr = fail
				return
			}
			logger.Warningf("%s: %v", clip.Name, fail)
		}
	})
	return cs.verifyErr
}

func (r *Renderer) textRenderer() overlay.Renderer {
	if !r.backend.SupportsOverlayText() {
		return overlay.NullRenderer{}
	}
	return r.backend.TextRenderer()
}

// overlayLines assembles the operator-facing diagnostic text: tone-map
// provenance (or bypass reason) and the render resolution.
func (r *Renderer) overlayLines(node *frame.Node, res tonemap.Result) []string {
	lines := make([]string, 0, 2)
	if res.Applied {
		lines = append(lines, fmt.Sprintf("tonemap %s dpd=%t %.0fnits", res.Curve, res.DynamicPeak, res.TargetNits))
	} else {
		lines = append(lines, fmt.Sprintf("tonemap bypassed: %s", res.Reason))
	}
	lines = append(lines, fmt.Sprintf("%dx%d %s", node.Width, node.Height, node.Props))
	return lines
}
