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
	"fmt"
	"math"

	"github.com/gtres/rrdstore/backend"
)

const (
	dsNameWidth = 20
	dsTypeWidth = 4
)

// datasource holds one signal's type, bounds and PDP accumulator state,
// all bound through cells to fixed offsets. Grounded on tgres' ds.go
// DataSource/DataSourcer, generalized from its map-of-RRAs model to this
// engine's flat, fixed-offset per-archive state layout.
type datasource struct {
	b backend.Backend

	name      stringCell
	dsType    stringCell
	heartbeat longCell
	min       doubleCell
	max       doubleCell

	lastRaw        doubleCell
	accumulated    doubleCell
	unknownSeconds longCell

	// A partially-built PDP window survives a reopen through accumulated
	// and unknownSeconds; there is no separate persisted PDP value cell.
	step int64 // header step, cached for window-boundary math
}

func newDatasource(a *allocator, b backend.Backend, step int64) *datasource {
	return &datasource{
		b:              b,
		name:           newStringCell(a, b, dsNameWidth),
		dsType:         newStringCell(a, b, dsTypeWidth),
		heartbeat:      newLongCell(a, b),
		min:            newDoubleCell(a, b),
		max:            newDoubleCell(a, b),
		lastRaw:        newDoubleCell(a, b),
		accumulated:    newDoubleCell(a, b),
		unknownSeconds: newLongCell(a, b),
		step:           step,
	}
}

func (d *datasource) writeNew(def DsDef) error {
	if err := d.name.Set(def.Name); err != nil {
		return err
	}
	if err := d.dsType.Set(def.Type.tag()); err != nil {
		return err
	}
	if def.Heartbeat <= 0 {
		return fmt.Errorf("rrd: %w: heartbeat must be positive", ErrInvalidDefinition)
	}
	if err := d.heartbeat.Set(int64(def.Heartbeat.Seconds())); err != nil {
		return err
	}
	if !math.IsNaN(def.Min) && !math.IsNaN(def.Max) && def.Min >= def.Max {
		return fmt.Errorf("rrd: %w: min must be < max", ErrInvalidDefinition)
	}
	if err := d.min.Set(def.Min); err != nil {
		return err
	}
	if err := d.max.Set(def.Max); err != nil {
		return err
	}
	if err := d.lastRaw.Set(math.NaN()); err != nil {
		return err
	}
	if err := d.accumulated.Set(0); err != nil {
		return err
	}
	return d.unknownSeconds.Set(0)
}

func (d *datasource) Name() (string, error) { return d.name.Get() }

func (d *datasource) Def() (DsDef, error) {
	name, err := d.name.Get()
	if err != nil {
		return DsDef{}, err
	}
	tag, err := d.dsType.Get()
	if err != nil {
		return DsDef{}, err
	}
	typ, err := ParseDsType(tag)
	if err != nil {
		return DsDef{}, err
	}
	hb, err := d.heartbeat.Get()
	if err != nil {
		return DsDef{}, err
	}
	mn, err := d.min.Get()
	if err != nil {
		return DsDef{}, err
	}
	mx, err := d.max.Get()
	if err != nil {
		return DsDef{}, err
	}
	return DsDef{Name: name, Type: typ, Heartbeat: secondsToDuration(hb), Min: mn, Max: mx}, nil
}

// windowPdp is one completed PDP window ready to be folded into archives.
type windowPdp struct {
	windowStart int64
	value       float64
}

// process advances this datasource's state from lastUpdateTime to now
// given the new raw sample, returning every PDP window that was
// completed as a result (zero, one, or more if the gap spans several
// steps). Grounded on tgres' DataSource.ProcessDataPoint/updateRange,
// reworked around the spec's explicit per-second accumulation model.
func (d *datasource) process(lastUpdateTime, now int64, raw float64) ([]windowPdp, error) {
	prev, err := d.lastRaw.Get()
	if err != nil {
		return nil, err
	}
	heartbeat, err := d.heartbeat.Get()
	if err != nil {
		return nil, err
	}
	min, err := d.min.Get()
	if err != nil {
		return nil, err
	}
	max, err := d.max.Get()
	if err != nil {
		return nil, err
	}
	typ, err := d.dsType.Get()
	if err != nil {
		return nil, err
	}
	dsType, err := ParseDsType(typ)
	if err != nil {
		return nil, err
	}

	dt := now - lastUpdateTime
	rate := computeRate(dsType, prev, raw, dt)

	if dt > heartbeat {
		rate = math.NaN()
	} else if !math.IsNaN(rate) {
		if (!math.IsNaN(min) && rate < min) || (!math.IsNaN(max) && rate > max) {
			rate = math.NaN()
		}
	}

	accum, err := d.accumulated.Get()
	if err != nil {
		return nil, err
	}
	unknown, err := d.unknownSeconds.Get()
	if err != nil {
		return nil, err
	}

	var windows []windowPdp
	step := d.step
	t := lastUpdateTime
	curWindowStart := (t / step) * step

	for t < now {
		windowEnd := curWindowStart + step
		segEnd := windowEnd
		if segEnd > now {
			segEnd = now
		}
		elapsed := segEnd - t
		if math.IsNaN(rate) {
			unknown += elapsed
		} else {
			accum += rate * float64(elapsed)
		}
		t = segEnd

		if t == windowEnd {
			var pdp float64
			if unknown > heartbeat {
				pdp = math.NaN()
			} else if step-unknown <= 0 {
				pdp = math.NaN()
			} else {
				pdp = accum / float64(step-unknown)
			}
			windows = append(windows, windowPdp{windowStart: curWindowStart, value: pdp})
			accum = 0
			unknown = 0
			curWindowStart = windowEnd
		}
	}

	if err := d.lastRaw.Set(raw); err != nil {
		return nil, err
	}
	if err := d.accumulated.Set(accum); err != nil {
		return nil, err
	}
	if err := d.unknownSeconds.Set(unknown); err != nil {
		return nil, err
	}

	return windows, nil
}

// computeRate applies the per-type rate computation rules in §4.3,
// including the simplified counter-wrap policy per the Open Question in
// §9: wrap is detected and corrected via the 32-bit, then 64-bit, ring
// sizes, each accepted if the resulting rate is non-negative. No
// plausibility check against a previously observed rate is applied.
func computeRate(t DsType, prev, raw float64, dt int64) float64 {
	if dt <= 0 {
		return math.NaN()
	}
	switch t {
	case Gauge:
		return raw
	case Counter:
		if math.IsNaN(raw) || math.IsNaN(prev) {
			return math.NaN()
		}
		if raw >= prev {
			return (raw - prev) / float64(dt)
		}
		return correctCounterWrap(prev, raw, dt)
	case Derive:
		if math.IsNaN(raw) || math.IsNaN(prev) {
			return math.NaN()
		}
		return (raw - prev) / float64(dt)
	case Absolute:
		if math.IsNaN(raw) {
			return math.NaN()
		}
		return raw / float64(dt)
	default:
		return math.NaN()
	}
}

const (
	wrap32 = 1 << 32
	wrap64 = math.MaxUint64
)

// correctCounterWrap handles a COUNTER value that decreased, attempting
// a 32-bit ring wrap first and a 64-bit ring wrap second, per §4.3.
func correctCounterWrap(prev, raw float64, dt int64) float64 {
	r32 := (wrap32 - prev + raw) / float64(dt)
	if r32 >= 0 {
		return r32
	}
	r64 := (wrap64 - prev + raw) / float64(dt)
	if r64 >= 0 {
		return r64
	}
	return math.NaN()
}
