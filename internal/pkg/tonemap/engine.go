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

// Package tonemap converts high-dynamic-range frames to standard dynamic
// range through a bounded three-rung retry ladder. The ladder is an explicit
// state machine with a recorded attempt history, so failed rungs surface as
// data rather than as stack traces.
package tonemap

import (
	"fmt"
	"math"

	"github.com/google/logger"

	"github.com/gitgerby/frame-factory/internal/pkg/colorprops"
	"github.com/gitgerby/frame-factory/internal/pkg/frame"
)

// State names one rung or terminal state of the retry ladder.
type State int

const (
	StateHinted State = iota
	StateInferred
	StateForcedPQ2020
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateHinted:
		return "hinted"
	case StateInferred:
		return "inferred"
	case StateForcedPQ2020:
		return "forced-pq2020"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Attempt records the outcome of one ladder rung.
type Attempt struct {
	Rung State
	// SrcHint is the explicit source colorspace hint used by the rung; nil
	// when the rung let the engine infer from pixel statistics.
	SrcHint   *colorprops.Props
	Succeeded bool
	Err       string
}

// Result summarizes one tone-mapping decision for a frame. Applied=false
// with a Reason marks a bypass, which is still a valid outcome and still
// requires a metadata stamp downstream.
type Result struct {
	Curve       Curve
	DynamicPeak bool
	TargetNits  float64
	Applied     bool
	Reason      string
	Attempts    []Attempt
}

// ExhaustedError reports that every rung of the retry ladder failed. It
// carries the full attempt history for the caller's error report.
type ExhaustedError struct {
	Attempts []Attempt
}

func (e *ExhaustedError) Error() string {
	last := "no attempts recorded"
	if n := len(e.Attempts); n > 0 {
		last = e.Attempts[n-1].Err
	}
	return fmt.Sprintf("tone-map retry ladder exhausted after %d attempts, last failure: %s", len(e.Attempts), last)
}

// Engine performs HDR to SDR conversion for the frames of a single clip.
// It is not safe for concurrent use; create one engine per clip worker.
type Engine struct {
	params  Params
	tracker peakTracker

	// Convert is the underlying conversion primitive invoked by each rung.
	// It defaults to the built-in software implementation; backends with
	// their own tone-mapping capability may replace it.
	Convert func(n *frame.Node, hint *colorprops.Props) (*frame.Node, error)
}

// New validates the parameters and returns an engine ready to map frames.
func New(p Params) (*Engine, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tone-map parameters: %v", err)
	}
	e := &Engine{
		params: p,
		tracker: peakTracker{
			size: p.SmoothingFrames,
			low:  p.SceneCutLow,
			high: p.SceneCutHigh,
		},
	}
	e.Convert = e.convert
	return e, nil
}

// Params returns the engine's validated parameter set.
func (e *Engine) Params() Params { return e.params }

// ProvenanceTag encodes curve, dynamic-peak flag, and target peak into the
// stamp attached to every successfully mapped frame.
func (e *Engine) ProvenanceTag() string {
	return fmt.Sprintf("%s dpd=%t %.0fnits", e.params.Curve, e.params.DynamicPeak, e.params.TargetNits)
}

// Map runs the retry ladder on one frame. Non-HDR frames bypass the ladder
// entirely and come back unchanged with Applied=false. On success the
// returned node is 16-bit full-range RGB stamped with the SDR color
// description and the provenance tag; the sample range still awaits
// confirmation by range detection downstream. When every rung fails, Map
// returns an ExhaustedError carrying the attempt history.
func (e *Engine) Map(n *frame.Node) (*frame.Node, Result, error) {
	res := Result{
		Curve:       e.params.Curve,
		DynamicPeak: e.params.DynamicPeak,
		TargetNits:  e.params.TargetNits,
	}
	if !n.Props.IsHDR() {
		res.Reason = "SDR source"
		return n, res, nil
	}

	for _, rung := range []State{StateHinted, StateInferred, StateForcedPQ2020} {
		hint, err := e.hintFor(rung, n)
		if err != nil {
			res.Attempts = append(res.Attempts, Attempt{Rung: rung, Err: err.Error()})
			logger.Errorf("tone-map rung %s could not be prepared: %v", rung, err)
			continue
		}
		out, err := e.Convert(n, hint)
		if err != nil {
			res.Attempts = append(res.Attempts, Attempt{Rung: rung, SrcHint: hint, Err: err.Error()})
			logger.Errorf("tone-map rung %s failed: %v", rung, err)
			continue
		}
		res.Attempts = append(res.Attempts, Attempt{Rung: rung, SrcHint: hint, Succeeded: true})
		res.Applied = true
		out.Props = colorprops.SDRRGB()
		out.SetTag(frame.TagToneMap, e.ProvenanceTag())
		logger.Infof("tone-map succeeded at rung %s after %d attempts (%s)", rung, len(res.Attempts), e.ProvenanceTag())
		return out, res, nil
	}
	return nil, res, &ExhaustedError{Attempts: res.Attempts}
}

// hintFor produces the source-colorspace hint for a rung. The hinted rung
// derives it deterministically from the frame's transfer and primaries, the
// inferred rung passes nil so the conversion infers from pixel statistics,
// and the last-resort rung forces PQ with BT.2020 primaries.
func (e *Engine) hintFor(rung State, n *frame.Node) (*colorprops.Props, error) {
	switch rung {
	case StateHinted:
		switch n.Props.Transfer {
		case colorprops.TransferPQ, colorprops.TransferHLG:
			h := n.Props
			h.Primaries = colorprops.PrimariesBT2020
			return &h, nil
		default:
			return nil, fmt.Errorf("no deterministic hint for transfer %q", n.Props.Transfer)
		}
	case StateInferred:
		return nil, nil
	case StateForcedPQ2020:
		h := n.Props
		h.Transfer = colorprops.TransferPQ
		h.Primaries = colorprops.PrimariesBT2020
		return &h, nil
	default:
		return nil, fmt.Errorf("rung %q is not attemptable", rung)
	}
}

// inferSource derives a source colorspace from pixel statistics alone. The
// heuristic inspects the brightest luma codes: signals graded near full
// swing classify as HLG, the rest as PQ. A flat black frame carries no
// usable statistics and fails the inference.
func inferSource(n *frame.Node) (*colorprops.Props, error) {
	var hi float64
	p := n.Planes[0]
	if len(p) == 0 {
		return nil, fmt.Errorf("frame has no luma plane to infer from")
	}
	for i := 0; i < len(p); i += 3 {
		if v := n.NormalizeLuma(p[i]); v > hi {
			hi = v
		}
	}
	if hi <= 0 {
		return nil, fmt.Errorf("unable to infer source colorspace: luma statistics are degenerate")
	}
	src := n.Props
	src.Primaries = colorprops.PrimariesBT2020
	if hi > 0.9 {
		src.Transfer = colorprops.TransferHLG
	} else {
		src.Transfer = colorprops.TransferPQ
	}
	return &src, nil
}

// convert is the built-in software tone-map: linearize with the hinted (or
// inferred) transfer, convert gamut from BT.2020 to BT.709, compress
// luminance through the configured curve, and encode to 16-bit full-range
// RGB. Promotions inside this path never dither.
func (e *Engine) convert(n *frame.Node, hint *colorprops.Props) (*frame.Node, error) {
	src := hint
	if src == nil {
		inferred, err := inferSource(n)
		if err != nil {
			return nil, err
		}
		src = inferred
	}

	var eotf func(float64) float64
	switch src.Transfer {
	case colorprops.TransferPQ:
		eotf = pqEOTF
	case colorprops.TransferHLG:
		eotf = hlgEOTF
	default:
		return nil, fmt.Errorf("transfer %q is not tone-mappable", src.Transfer)
	}
	if src.Primaries != colorprops.PrimariesBT2020 {
		return nil, fmt.Errorf("primaries %q are not tone-mappable", src.Primaries)
	}

	rp, gp, bp, err := n.RGBFloats()
	if err != nil {
		return nil, err
	}

	// Linearize to absolute nits, per channel.
	for i := range rp {
		rp[i] = eotf(rp[i])
		gp[i] = eotf(gp[i])
		bp[i] = eotf(bp[i])
	}

	peak, err := e.resolvePeak(rp, gp, bp, src.Transfer)
	if err != nil {
		return nil, err
	}

	out := frame.New(frame.RGB48, n.Width, n.Height)
	out.Props = colorprops.SDRRGB()
	par := e.params
	for i := range rp {
		r, g, b := bt2020To709(rp[i], gp[i], bp[i])
		m := math.Max(r, math.Max(g, b))
		if m <= 0 {
			continue
		}
		mapped := par.Curve.mapSignal(m, peak, par.TargetNits, par.BlackFloorNits, par.KneeOffset)
		// Scale all channels by the luminance compression ratio so hue is
		// preserved, then gamma-encode.
		scale := mapped / m
		out.Planes[0][i] = encode16(r * scale)
		out.Planes[1][i] = encode16(g * scale)
		out.Planes[2][i] = encode16(b * scale)
	}
	return out, nil
}

// resolvePeak determines the source peak in nits, either statically from
// mastering side data (or the transfer's nominal peak) or dynamically from
// the frame's own luminance distribution.
func (e *Engine) resolvePeak(rp, gp, bp []float64, t colorprops.Transfer) (float64, error) {
	static := e.params.Mastering.PeakNits(t)
	if !e.params.DynamicPeak {
		return static, nil
	}
	stride := e.params.DPDPreset.stride()
	cutoffNits := e.params.Cutoff * static
	samples := make([]float64, 0, len(rp)/stride+1)
	for i := 0; i < len(rp); i += stride {
		m := math.Max(rp[i], math.Max(gp[i], bp[i]))
		if m > cutoffNits {
			samples = append(samples, m)
		}
	}
	raw := estimatePeak(samples, e.params.Percentile)
	if math.IsNaN(raw) || raw <= e.params.BlackFloorNits {
		return 0, fmt.Errorf("scene peak estimate %v nits is degenerate (floor %v nits)", raw, e.params.BlackFloorNits)
	}
	return e.tracker.observe(raw), nil
}

// encode16 gamma-encodes a normalized linear display value and quantizes it
// to a full-range 16-bit code.
func encode16(v float64) uint16 {
	c := math.Round(bt1886Encode(clamp01(v)) * 65535)
	if c < 0 {
		c = 0
	}
	if c > 65535 {
		c = 65535
	}
	return uint16(c)
}
