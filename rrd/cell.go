//
// Copyright 2016 Gregory Trubetskoy. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package rrd

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gtres/rrdstore/backend"
)

// Cell widths, in bytes, of the fixed-offset primitives the header,
// datasource and archive records are built from. Everything is
// big-endian, matching the on-disk layout contract.
const (
	longWidth   = 8
	doubleWidth = 8
)

// longCell reads and writes a fixed-offset 64-bit signed integer.
type longCell struct {
	b   backend.Backend
	off int64
}

func newLongCell(a *allocator, b backend.Backend) longCell {
	return longCell{b: b, off: a.allocate(longWidth)}
}

func (c longCell) Get() (int64, error) {
	var buf [longWidth]byte
	if _, err := c.b.ReadAt(buf[:], c.off); err != nil {
		return 0, fmt.Errorf("rrd: read long at %d: %w", c.off, err)
	}
	return int64(binary.BigEndian.Uint64(buf[:])), nil
}

func (c longCell) Set(v int64) error {
	var buf [longWidth]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v))
	if _, err := c.b.WriteAt(buf[:], c.off); err != nil {
		return fmt.Errorf("rrd: write long at %d: %w", c.off, err)
	}
	return nil
}

// doubleCell reads and writes a fixed-offset IEEE-754 double.
type doubleCell struct {
	b   backend.Backend
	off int64
}

func newDoubleCell(a *allocator, b backend.Backend) doubleCell {
	return doubleCell{b: b, off: a.allocate(doubleWidth)}
}

func (c doubleCell) Get() (float64, error) {
	var buf [doubleWidth]byte
	if _, err := c.b.ReadAt(buf[:], c.off); err != nil {
		return 0, fmt.Errorf("rrd: read double at %d: %w", c.off, err)
	}
	return math.Float64frombits(binary.BigEndian.Uint64(buf[:])), nil
}

func (c doubleCell) Set(v float64) error {
	var buf [doubleWidth]byte
	binary.BigEndian.PutUint64(buf[:], math.Float64bits(v))
	if _, err := c.b.WriteAt(buf[:], c.off); err != nil {
		return fmt.Errorf("rrd: write double at %d: %w", c.off, err)
	}
	return nil
}

// stringCell reads and writes a fixed-width, NUL-padded UTF-8 string.
type stringCell struct {
	b     backend.Backend
	off   int64
	width int64
}

func newStringCell(a *allocator, b backend.Backend, width int64) stringCell {
	return stringCell{b: b, off: a.allocate(width), width: width}
}

func (c stringCell) Get() (string, error) {
	buf := make([]byte, c.width)
	if _, err := c.b.ReadAt(buf, c.off); err != nil {
		return "", fmt.Errorf("rrd: read string at %d: %w", c.off, err)
	}
	n := 0
	for n < len(buf) && buf[n] != 0 {
		n++
	}
	return string(buf[:n]), nil
}

func (c stringCell) Set(s string) error {
	if int64(len(s)) > c.width {
		return fmt.Errorf("rrd: string %q exceeds cell width %d", s, c.width)
	}
	buf := make([]byte, c.width)
	copy(buf, s)
	if _, err := c.b.WriteAt(buf, c.off); err != nil {
		return fmt.Errorf("rrd: write string at %d: %w", c.off, err)
	}
	return nil
}

// doubleArrayCell reads and writes a fixed-length array of doubles
// stored contiguously, big-endian, one after another. It backs each
// archive's "robin" ring buffer.
type doubleArrayCell struct {
	b     backend.Backend
	off   int64
	n     int64
}

func newDoubleArrayCell(a *allocator, b backend.Backend, n int64) doubleArrayCell {
	return doubleArrayCell{b: b, off: a.allocate(n * doubleWidth), n: n}
}

func (c doubleArrayCell) Len() int64 { return c.n }

func (c doubleArrayCell) GetAt(i int64) (float64, error) {
	if i < 0 || i >= c.n {
		return 0, fmt.Errorf("rrd: double array index %d out of range [0,%d)", i, c.n)
	}
	var buf [doubleWidth]byte
	if _, err := c.b.ReadAt(buf[:], c.off+i*doubleWidth); err != nil {
		return 0, fmt.Errorf("rrd: read double array[%d]: %w", i, err)
	}
	return math.Float64frombits(binary.BigEndian.Uint64(buf[:])), nil
}

func (c doubleArrayCell) SetAt(i int64, v float64) error {
	if i < 0 || i >= c.n {
		return fmt.Errorf("rrd: double array index %d out of range [0,%d)", i, c.n)
	}
	var buf [doubleWidth]byte
	binary.BigEndian.PutUint64(buf[:], math.Float64bits(v))
	if _, err := c.b.WriteAt(buf[:], c.off+i*doubleWidth); err != nil {
		return fmt.Errorf("rrd: write double array[%d]: %w", i, err)
	}
	return nil
}

func (c doubleArrayCell) GetAll() ([]float64, error) {
	buf := make([]byte, c.n*doubleWidth)
	if _, err := c.b.ReadAt(buf, c.off); err != nil {
		return nil, fmt.Errorf("rrd: read double array: %w", err)
	}
	out := make([]float64, c.n)
	for i := int64(0); i < c.n; i++ {
		out[i] = math.Float64frombits(binary.BigEndian.Uint64(buf[i*doubleWidth:]))
	}
	return out, nil
}

func (c doubleArrayCell) SetAll(vals []float64) error {
	if int64(len(vals)) != c.n {
		return fmt.Errorf("rrd: double array length %d does not match cell length %d", len(vals), c.n)
	}
	buf := make([]byte, c.n*doubleWidth)
	for i, v := range vals {
		binary.BigEndian.PutUint64(buf[int64(i)*doubleWidth:], math.Float64bits(v))
	}
	if _, err := c.b.WriteAt(buf, c.off); err != nil {
		return fmt.Errorf("rrd: write double array: %w", err)
	}
	return nil
}
