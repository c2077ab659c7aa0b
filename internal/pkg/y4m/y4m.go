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

// Package y4m reads YUV4MPEG2 streams as a lazily decoded frame source.
// Frame offsets are indexed once at open; pixel data is read only when a
// frame is requested, keeping the pipeline pull-based.
package y4m

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/gitgerby/frame-factory/internal/pkg/colorprops"
	"github.com/gitgerby/frame-factory/internal/pkg/frame"
)

const magic = "YUV4MPEG2"

// Reader is a frame.Source backed by a YUV4MPEG2 file.
type Reader struct {
	mu      sync.Mutex
	f       *os.File
	format  frame.Format
	width   int
	height  int
	fps     float64
	props   colorprops.Props
	offsets []int64
	frameSz int
}

// Open parses the stream header of the file at path and indexes the frame
// payload offsets without reading pixel data.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open y4m source: %v", err)
	}
	r := &Reader{f: f, fps: 24}
	if err := r.parseHeader(); err != nil {
		f.Close()
		return nil, err
	}
	if err := r.indexFrames(); err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

// Close releases the underlying file.
func (r *Reader) Close() error { return r.f.Close() }

func (r *Reader) parseHeader() error {
	br := bufio.NewReader(r.f)
	line, err := br.ReadString('\n')
	if err != nil {
		return fmt.Errorf("failed to read y4m stream header: %v", err)
	}
	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) == 0 || fields[0] != magic {
		return fmt.Errorf("not a YUV4MPEG2 stream")
	}

	r.format = frame.YUV420P8
	for _, f := range fields[1:] {
		switch {
		case strings.HasPrefix(f, "W"):
			r.width, err = strconv.Atoi(f[1:])
		case strings.HasPrefix(f, "H"):
			r.height, err = strconv.Atoi(f[1:])
		case strings.HasPrefix(f, "F"):
			err = r.parseRate(f[1:])
		case strings.HasPrefix(f, "C"):
			err = r.parseColorspace(f[1:])
		case strings.HasPrefix(f, "XCOLORRANGE="):
			r.props.Range = colorprops.ParseRange(strings.TrimPrefix(f, "XCOLORRANGE="))
		case strings.HasPrefix(f, "XCOLORMATRIX="):
			r.props.Matrix = colorprops.ParseMatrix(strings.TrimPrefix(f, "XCOLORMATRIX="))
		case strings.HasPrefix(f, "XCOLORTRANSFER="):
			r.props.Transfer = colorprops.ParseTransfer(strings.TrimPrefix(f, "XCOLORTRANSFER="))
		case strings.HasPrefix(f, "XCOLORPRIMARIES="):
			r.props.Primaries = colorprops.ParsePrimaries(strings.TrimPrefix(f, "XCOLORPRIMARIES="))
		}
		if err != nil {
			return fmt.Errorf("bad y4m header field %q: %v", f, err)
		}
	}
	if r.width <= 0 || r.height <= 0 {
		return fmt.Errorf("y4m header missing frame dimensions")
	}
	r.frameSz = r.frameSize()
	return nil
}

func (r *Reader) parseRate(s string) error {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return fmt.Errorf("malformed frame rate %q", s)
	}
	n, err := strconv.Atoi(parts[0])
	if err != nil {
		return err
	}
	d, err := strconv.Atoi(parts[1])
	if err != nil {
		return err
	}
	if d == 0 {
		return fmt.Errorf("zero frame rate denominator")
	}
	r.fps = float64(n) / float64(d)
	return nil
}

func (r *Reader) parseColorspace(s string) error {
	switch s {
	case "420", "420jpeg", "420mpeg2", "420paldv":
		r.format = frame.YUV420P8
	case "420p10":
		r.format = frame.YUV420P10
	case "422":
		r.format = frame.YUV422P8
	case "444":
		r.format = frame.YUV444P8
	default:
		return fmt.Errorf("unsupported colorspace %q", s)
	}
	return nil
}

// frameSize returns the byte length of one frame payload.
func (r *Reader) frameSize() int {
	bytesPer := 1
	if r.format.Bits > 8 {
		bytesPer = 2
	}
	cw := (r.width + r.format.SubW) >> r.format.SubW
	ch := (r.height + r.format.SubH) >> r.format.SubH
	return (r.width*r.height + 2*cw*ch) * bytesPer
}

// indexFrames walks the file recording the payload offset of every FRAME
// marker.
func (r *Reader) indexFrames() error {
	pos, err := r.f.Seek(0, io.SeekStart)
	if err != nil {
		return err
	}
	br := bufio.NewReader(r.f)
	line, err := br.ReadBytes('\n')
	if err != nil {
		return err
	}
	pos += int64(len(line))

	for {
		line, err = br.ReadBytes('\n')
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to index y4m frames: %v", err)
		}
		if !bytes.HasPrefix(line, []byte("FRAME")) {
			return fmt.Errorf("expected FRAME marker at offset %d", pos)
		}
		pos += int64(len(line))
		r.offsets = append(r.offsets, pos)
		if _, err := br.Discard(r.frameSz); err != nil {
			return fmt.Errorf("truncated y4m frame payload at offset %d: %v", pos, err)
		}
		pos += int64(r.frameSz)
	}
}

// Frames implements frame.Source.
func (r *Reader) Frames() int { return len(r.offsets) }

// FrameRate implements frame.Source.
func (r *Reader) FrameRate() float64 { return r.fps }

// Frame implements frame.Source, decoding the idx'th frame payload.
func (r *Reader) Frame(idx int) (*frame.Node, error) {
	if idx < 0 || idx >= len(r.offsets) {
		return nil, fmt.Errorf("frame %d out of range, stream holds %d", idx, len(r.offsets))
	}
	buf := make([]byte, r.frameSz)
	r.mu.Lock()
	_, err := r.f.ReadAt(buf, r.offsets[idx])
	r.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to read frame %d payload: %v", idx, err)
	}

	n := frame.New(r.format, r.width, r.height)
	n.Props = r.props
	off := 0
	for p := 0; p < 3; p++ {
		plane := n.Planes[p]
		if r.format.Bits > 8 {
			for i := range plane {
				plane[i] = uint16(buf[off]) | uint16(buf[off+1])<<8
				off += 2
			}
		} else {
			for i := range plane {
				plane[i] = uint16(buf[off])
				off++
			}
		}
	}
	return n, nil
}
