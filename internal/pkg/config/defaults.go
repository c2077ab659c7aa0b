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

package config

// Platform-independent defaults for the preset bundle.
const (
	defaultToneCurve       = "bt.2390"
	defaultTargetNits      = 100.0
	defaultBlackFloorNits  = 0.05
	defaultDPDPreset       = "standard"
	defaultKneeOffset      = 0.0
	defaultCutoff          = 0.005
	defaultPeakPercentile  = 0.999
	defaultSmoothingFrames = 8
	defaultSceneCutLow     = 0.1
	defaultSceneCutHigh    = 0.5

	defaultOddGeometryPolicy = "auto"
	defaultDitherMode        = "error_diffusion"
	defaultExportRange       = "auto"

	defaultVerifyStartSeconds  = 30.0
	defaultVerifyStepSeconds   = 60.0
	defaultVerifyMaxSeconds    = 600.0
	defaultVerifyLumaThreshold = 0.1

	defaultWorkerLimit   = 2
	defaultFrameCacheMax = 16
)
