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

package y4m

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/gitgerby/frame-factory/internal/pkg/colorprops"
	"github.com/gitgerby/frame-factory/internal/pkg/frame"
)

// writeStream builds a y4m file with the given header line and 8-bit 4:2:0
// frame payloads, each payload byte set to its frame index plus offset.
func writeStream(t *testing.T, header string, w, h, frames int) string {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString(header + "\n")
	payload := w*h + 2*((w/2)*(h/2))
	for f := 0; f < frames; f++ {
		buf.WriteString("FRAME\n")
		for i := 0; i < payload; i++ {
			buf.WriteByte(byte(16 + f*10 + i%8))
		}
	}
	path := filepath.Join(t.TempDir(), "clip.y4m")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("failed to write temp stream: %v", err)
	}
	return path
}

func TestOpenParsesHeader(t *testing.T) {
	path := writeStream(t, "YUV4MPEG2 W8 H4 F30000:1001 Ip A1:1 C420mpeg2 XCOLORRANGE=LIMITED", 8, 4, 3)
	r, err := Open(path)
	if err != nil {
		t.Fatalf("got error: %v want: nil", err)
	}
	defer r.Close()

	if r.Frames() != 3 {
		t.Errorf("Frames() = %d want 3", r.Frames())
	}
	if got := r.FrameRate(); got < 29.96 || got > 29.98 {
		t.Errorf("FrameRate() = %v want ~29.97", got)
	}

	n, err := r.Frame(0)
	if err != nil {
		t.Fatalf("got error: %v want: nil", err)
	}
	if n.Format != frame.YUV420P8 {
		t.Errorf("frame format %s want yuv420p8", n.Format)
	}
	if n.Width != 8 || n.Height != 4 {
		t.Errorf("frame %dx%d want 8x4", n.Width, n.Height)
	}
	if n.Props.Range != colorprops.RangeLimited {
		t.Errorf("frame range %s want tv", n.Props.Range)
	}
	// This stream declares no matrix or transfer; the pipeline's normalizer
	// owns those defaults.
	if n.Props.Matrix != colorprops.MatrixUnknown {
		t.Errorf("frame matrix %s want unknown", n.Props.Matrix)
	}
}

func TestOpenParsesColorDescriptionTags(t *testing.T) {
	header := "YUV4MPEG2 W8 H4 F24:1 C420 " +
		"XCOLORMATRIX=bt2020nc XCOLORTRANSFER=smpte2084 XCOLORPRIMARIES=bt2020 XCOLORRANGE=LIMITED"
	path := writeStream(t, header, 8, 4, 1)
	r, err := Open(path)
	if err != nil {
		t.Fatalf("got error: %v want: nil", err)
	}
	defer r.Close()

	n, err := r.Frame(0)
	if err != nil {
		t.Fatalf("got error: %v want: nil", err)
	}
	expected := colorprops.Props{
		Matrix:    colorprops.MatrixBT2020NCL,
		Transfer:  colorprops.TransferPQ,
		Primaries: colorprops.PrimariesBT2020,
		Range:     colorprops.RangeLimited,
	}
	if n.Props != expected {
		t.Errorf("frame props %+v want %+v", n.Props, expected)
	}
	if !n.Props.IsHDR() {
		t.Error("PQ/BT.2020 tagged stream should classify as HDR")
	}
}

func TestFramePayloads(t *testing.T) {
	path := writeStream(t, "YUV4MPEG2 W8 H4 F24:1 C420", 8, 4, 2)
	r, err := Open(path)
	if err != nil {
		t.Fatalf("got error: %v want: nil", err)
	}
	defer r.Close()

	// Frames decode independently and out of order.
	n1, err := r.Frame(1)
	if err != nil {
		t.Fatalf("got error: %v want: nil", err)
	}
	n0, err := r.Frame(0)
	if err != nil {
		t.Fatalf("got error: %v want: nil", err)
	}
	if n0.Planes[0][0] != 16 {
		t.Errorf("frame 0 first luma %d want 16", n0.Planes[0][0])
	}
	if n1.Planes[0][0] != 26 {
		t.Errorf("frame 1 first luma %d want 26", n1.Planes[0][0])
	}

	if _, err := r.Frame(2); err == nil {
		t.Error("expected error for out-of-range index, got nil")
	}
	if _, err := r.Frame(-1); err == nil {
		t.Error("expected error for negative index, got nil")
	}
}

func TestOpenRejectsBadStreams(t *testing.T) {
	testCases := []struct {
		desc     string
		contents string
	}{
		{desc: "wrong magic", contents: "RIFF W8 H4\n"},
		{desc: "missing dimensions", contents: "YUV4MPEG2 F24:1\n"},
		{desc: "unsupported colorspace", contents: "YUV4MPEG2 W8 H4 Cmono\n"},
		{desc: "zero rate denominator", contents: "YUV4MPEG2 W8 H4 F24:0\n"},
		{desc: "garbage after header", contents: "YUV4MPEG2 W8 H4 F24:1\nNOTAFRAME\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.y4m")
			if err := os.WriteFile(path, []byte(tc.contents), 0o644); err != nil {
				t.Fatalf("failed to write temp stream: %v", err)
			}
			if _, err := Open(path); err == nil {
				t.Errorf("%q: expected error but got nil", tc.desc)
			}
		})
	}
}

func TestOpenRejectsTruncatedPayload(t *testing.T) {
	path := writeStream(t, "YUV4MPEG2 W8 H4 F24:1 C420", 8, 4, 1)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read stream back: %v", err)
	}
	trunc := filepath.Join(t.TempDir(), "trunc.y4m")
	if err := os.WriteFile(trunc, data[:len(data)-4], 0o644); err != nil {
		t.Fatalf("failed to write truncated stream: %v", err)
	}
	if _, err := Open(trunc); err == nil {
		t.Error("expected error for truncated payload, got nil")
	}
}
