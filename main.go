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

package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/google/logger"
	"github.com/google/uuid"

	"github.com/gitgerby/frame-factory/internal/pkg/colorprops"
	"github.com/gitgerby/frame-factory/internal/pkg/config"
	"github.com/gitgerby/frame-factory/internal/pkg/export"
	"github.com/gitgerby/frame-factory/internal/pkg/frame"
	"github.com/gitgerby/frame-factory/internal/pkg/geometry"
	"github.com/gitgerby/frame-factory/internal/pkg/metricscache"
	"github.com/gitgerby/frame-factory/internal/pkg/render"
	"github.com/gitgerby/frame-factory/internal/pkg/tonemap"
	"github.com/gitgerby/frame-factory/internal/pkg/verify"
	"github.com/gitgerby/frame-factory/internal/pkg/y4m"
)

var (
	configPath = flag.String("config", config.DefaultConfigPath, "configuration file location")
	outputDir  = flag.String("output", ".", "directory PNG frames are written to")
	frameCount = flag.Int("frames", 0, "number of frames to render per clip, 0 for all")
	software   = flag.Bool("software", true, "use the software backend; false selects the null backend")

	srcMatrix    = flag.String("color-matrix", "", "declared source matrix for clips whose container carries none, e.g. bt2020nc")
	srcTransfer  = flag.String("color-transfer", "", "declared source transfer for clips whose container carries none, e.g. smpte2084")
	srcPrimaries = flag.String("color-primaries", "", "declared source primaries for clips whose container carries none, e.g. bt2020")
	srcRange     = flag.String("color-range", "", "declared source range for clips whose container carries none: tv or pc")

	masterMaxLum = flag.String("max-luminance", "", "mastering display max luminance as a fraction, e.g. 10000000/10000")
	masterMinLum = flag.String("min-luminance", "", "mastering display min luminance as a fraction")
	maxCLL       = flag.Int("max-cll", 0, "content light level maximum, nits")
	maxFALL      = flag.Int("max-fall", 0, "frame-average light level maximum, nits")

	cropTop    = flag.Int("crop-top", 0, "rows to crop from the top of every clip")
	cropBottom = flag.Int("crop-bottom", 0, "rows to crop from the bottom of every clip")
	cropLeft   = flag.Int("crop-left", 0, "columns to crop from the left of every clip")
	cropRight  = flag.Int("crop-right", 0, "columns to crop from the right of every clip")
	padTop     = flag.Int("pad-top", 0, "rows to pad onto the top of every clip")
	padBottom  = flag.Int("pad-bottom", 0, "rows to pad onto the bottom of every clip")
	padLeft    = flag.Int("pad-left", 0, "columns to pad onto the left of every clip")
	padRight   = flag.Int("pad-right", 0, "columns to pad onto the right of every clip")
)

// dirSink writes exported frames as PNG files under a fixed directory.
type dirSink struct {
	dir string
}

func (s dirSink) Write(name string, img image.Image) error {
	f, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return fmt.Errorf("failed to create output frame: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("failed to encode %q: %v", name, err)
	}
	return nil
}

// buildOptions resolves the configuration file into the renderer's option
// bundle, rejecting values the pipeline cannot honor.
func buildOptions(c *config.FFConfig) (render.Options, error) {
	var opts render.Options
	var err error

	params := tonemap.Defaults()
	if params.Curve, err = tonemap.ParseCurve(*c.ToneCurve); err != nil {
		return opts, err
	}
	if params.DPDPreset, err = tonemap.ParsePreset(*c.DPDPreset); err != nil {
		return opts, err
	}
	params.TargetNits = *c.TargetNits
	params.BlackFloorNits = *c.BlackFloorNits
	params.DynamicPeak = *c.DynamicPeak
	params.KneeOffset = *c.KneeOffset
	params.Cutoff = *c.Cutoff
	params.Percentile = *c.PeakPercentile
	params.SmoothingFrames = *c.SmoothingFrames
	params.SceneCutLow = *c.SceneCutLow
	params.SceneCutHigh = *c.SceneCutHigh
	if err = params.Validate(); err != nil {
		return opts, err
	}
	opts.ToneMap = params

	if opts.Policy, err = geometry.ParsePolicy(*c.OddGeometryPolicy); err != nil {
		return opts, err
	}
	if opts.Export.Dither, err = export.ParseDither(*c.DitherMode); err != nil {
		return opts, err
	}
	if opts.Export.Range, err = export.ParseRangeMode(*c.ExportRange); err != nil {
		return opts, err
	}

	opts.Verify = verify.Config{
		Enabled:       *c.Verify,
		StartSeconds:  *c.VerifyStartSeconds,
		StepSeconds:   *c.VerifyStepSeconds,
		MaxSeconds:    *c.VerifyMaxSeconds,
		LumaThreshold: *c.VerifyLumaThreshold,
	}
	opts.Strict = *c.Strict
	opts.Workers = *c.WorkerLimit
	opts.FrameCacheMax = int64(*c.FrameCacheMax)
	return opts, nil
}

// buildClips opens every source path as a clip sharing the flag-supplied
// color declaration, mastering side data, and geometry deltas.
func buildClips(paths []string, mastering colorprops.Mastering) ([]render.Clip, []io.Closer, error) {
	declared := colorprops.Parse(*srcMatrix, *srcTransfer, *srcPrimaries, *srcRange)
	deltas := geometry.Deltas{
		CropTop:    *cropTop,
		CropBottom: *cropBottom,
		CropLeft:   *cropLeft,
		CropRight:  *cropRight,
		PadTop:     *padTop,
		PadBottom:  *padBottom,
		PadLeft:    *padLeft,
		PadRight:   *padRight,
	}

	var clips []render.Clip
	var closers []io.Closer
	for _, p := range paths {
		src, err := y4m.Open(p)
		if err != nil {
			for _, c := range closers {
				c.Close()
			}
			return nil, nil, err
		}
		closers = append(closers, src)
		var source frame.Source = src
		if declared != (colorprops.Props{}) {
			source = frame.DeclaredSource{Source: src, Declared: declared}
		}
		name := filepath.Base(p)
		if ext := filepath.Ext(name); ext != "" {
			name = name[:len(name)-len(ext)]
		}
		clips = append(clips, render.Clip{
			Name:      name,
			Source:    source,
			Mastering: mastering,
			Deltas:    deltas,
		})
	}
	return clips, closers, nil
}

// frameIndices returns the indices rendered for every clip: the first limit
// frames, capped at the shortest clip.
func frameIndices(clips []render.Clip, limit int) []int {
	n := clips[0].Source.Frames()
	for _, c := range clips[1:] {
		if f := c.Source.Frames(); f < n {
			n = f
		}
	}
	if limit > 0 && limit < n {
		n = limit
	}
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	return indices
}

func run(c *config.FFConfig) error {
	opts, err := buildOptions(c)
	if err != nil {
		return fmt.Errorf("bad configuration: %v", err)
	}

	mastering, err := colorprops.ParseMastering(*masterMaxLum, *masterMinLum, *maxCLL, *maxFALL)
	if err != nil {
		return fmt.Errorf("bad mastering metadata: %v", err)
	}

	paths := flag.Args()
	if len(paths) == 0 {
		return fmt.Errorf("no input clips given")
	}
	clips, closers, err := buildClips(paths, mastering)
	if err != nil {
		return err
	}
	defer func() {
		for _, c := range closers {
			c.Close()
		}
	}()

	var cache *metricscache.Cache
	if *c.MetricsDBPath != "" {
		cache, err = metricscache.Open(*c.MetricsDBPath, uuid.NewString())
		if err != nil {
			logger.Errorf("metrics cache unavailable, detection results will not persist: %v", err)
		} else {
			defer cache.Close()
		}
	}

	var backend render.Backend = render.SoftwareBackend{}
	if !*software {
		backend = render.NullBackend{}
	}

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %v", err)
	}

	r := render.New(opts, backend, cache)
	return r.Run(context.Background(), clips, frameIndices(clips, *frameCount), dirSink{dir: *outputDir})
}

// logSink opens the run log file under the configured directory, falling
// back to a discard writer when the directory is unusable.
func logSink(dir string) io.Writer {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return io.Discard
	}
	f, err := os.OpenFile(filepath.Join(dir, "frame-factory.log"),
		os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return io.Discard
	}
	return f
}

func main() {
	flag.Parse()

	c := config.ParseConfig(*configPath)
	missing := c == nil
	if missing {
		c = config.DefaultConfig()
	}

	logger.Init("frame-factory", true, false, logSink(*c.LogDirectory))
	defer logger.Close()
	if missing {
		logger.Warningf("no usable configuration at %q, continuing with defaults", *configPath)
	}

	if err := run(c); err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
}
