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

// Package config loads the resolved preset bundle consumed by the rendering
// pipeline. Every field is optional in the file; absent fields fall back to
// the documented defaults.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// FFConfig is the on-disk configuration. Pointer fields distinguish "absent"
// from zero values so defaults only fill genuine gaps.
type FFConfig struct {
	// Tone mapping.
	ToneCurve       *string  `yaml:"tone_curve,omitempty"`
	TargetNits      *float64 `yaml:"target_nits,omitempty"`
	BlackFloorNits  *float64 `yaml:"black_floor_nits,omitempty"`
	DynamicPeak     *bool    `yaml:"dynamic_peak,omitempty"`
	DPDPreset       *string  `yaml:"dpd_preset,omitempty"`
	KneeOffset      *float64 `yaml:"knee_offset,omitempty"`
	Cutoff          *float64 `yaml:"cutoff,omitempty"`
	PeakPercentile  *float64 `yaml:"peak_percentile,omitempty"`
	SmoothingFrames *int     `yaml:"smoothing_frames,omitempty"`
	SceneCutLow     *float64 `yaml:"scene_cut_low,omitempty"`
	SceneCutHigh    *float64 `yaml:"scene_cut_high,omitempty"`

	// Pipeline behavior.
	Strict            *bool   `yaml:"strict,omitempty"`
	OddGeometryPolicy *string `yaml:"odd_geometry_policy,omitempty"`
	DitherMode        *string `yaml:"dither_mode,omitempty"`
	ExportRange       *string `yaml:"export_range,omitempty"`

	// Verification.
	Verify              *bool    `yaml:"verify,omitempty"`
	VerifyStartSeconds  *float64 `yaml:"verify_start_seconds,omitempty"`
	VerifyStepSeconds   *float64 `yaml:"verify_step_seconds,omitempty"`
	VerifyMaxSeconds    *float64 `yaml:"verify_max_seconds,omitempty"`
	VerifyLumaThreshold *float64 `yaml:"verify_luma_threshold,omitempty"`

	// Resources.
	WorkerLimit   *int    `yaml:"worker_limit,omitempty"`
	FrameCacheMax *int    `yaml:"frame_cache_max,omitempty"`
	MetricsDBPath *string `yaml:"metrics_db_path,omitempty"`
	LogDirectory  *string `yaml:"log_directory,omitempty"`
}

// ParseConfig reads the configuration file at path and fills every absent
// field with its default. A missing or unreadable file yields nil; callers
// fall back to DefaultConfig.
func ParseConfig(path string) *FFConfig {
	f, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	config := &FFConfig{}
	if err := yaml.Unmarshal(f, config); err != nil {
		return nil
	}
	applyDefaults(config)
	return config
}

// DefaultConfig returns a configuration with every field at its default.
func DefaultConfig() *FFConfig {
	config := &FFConfig{}
	applyDefaults(config)
	return config
}

func applyDefaults(c *FFConfig) {
	if c.ToneCurve == nil {
		c.ToneCurve = strptr(defaultToneCurve)
	}
	if c.TargetNits == nil {
		c.TargetNits = f64ptr(defaultTargetNits)
	}
	if c.BlackFloorNits == nil {
		c.BlackFloorNits = f64ptr(defaultBlackFloorNits)
	}
	if c.DynamicPeak == nil {
		c.DynamicPeak = boolptr(true)
	}
	if c.DPDPreset == nil {
		c.DPDPreset = strptr(defaultDPDPreset)
	}
	if c.KneeOffset == nil {
		c.KneeOffset = f64ptr(defaultKneeOffset)
	}
	if c.Cutoff == nil {
		c.Cutoff = f64ptr(defaultCutoff)
	}
	if c.PeakPercentile == nil {
		c.PeakPercentile = f64ptr(defaultPeakPercentile)
	}
	if c.SmoothingFrames == nil {
		c.SmoothingFrames = intptr(defaultSmoothingFrames)
	}
	if c.SceneCutLow == nil {
		c.SceneCutLow = f64ptr(defaultSceneCutLow)
	}
	if c.SceneCutHigh == nil {
		c.SceneCutHigh = f64ptr(defaultSceneCutHigh)
	}
	if c.Strict == nil {
		c.Strict = boolptr(false)
	}
	if c.OddGeometryPolicy == nil {
		c.OddGeometryPolicy = strptr(defaultOddGeometryPolicy)
	}
	if c.DitherMode == nil {
		c.DitherMode = strptr(defaultDitherMode)
	}
	if c.ExportRange == nil {
		c.ExportRange = strptr(defaultExportRange)
	}
	if c.Verify == nil {
		c.Verify = boolptr(true)
	}
	if c.VerifyStartSeconds == nil {
		c.VerifyStartSeconds = f64ptr(defaultVerifyStartSeconds)
	}
	if c.VerifyStepSeconds == nil {
		c.VerifyStepSeconds = f64ptr(defaultVerifyStepSeconds)
	}
	if c.VerifyMaxSeconds == nil {
		c.VerifyMaxSeconds = f64ptr(defaultVerifyMaxSeconds)
	}
	if c.VerifyLumaThreshold == nil {
		c.VerifyLumaThreshold = f64ptr(defaultVerifyLumaThreshold)
	}
	if c.WorkerLimit == nil {
		c.WorkerLimit = intptr(defaultWorkerLimit)
	}
	if c.FrameCacheMax == nil {
		c.FrameCacheMax = intptr(defaultFrameCacheMax)
	}
	if c.MetricsDBPath == nil {
		c.MetricsDBPath = strptr("")
	}
	if c.LogDirectory == nil {
		c.LogDirectory = strptr(defaultLogDirectory)
	}
}

func strptr(s string) *string   { p := new(string); *p = s; return p }
func f64ptr(v float64) *float64 { p := new(float64); *p = v; return p }
func intptr(v int) *int         { p := new(int); *p = v; return p }
func boolptr(v bool) *bool      { p := new(bool); *p = v; return p }
