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

const cfWidth = 4

// dsArchiveState is one datasource's in-progress consolidation state
// within one archive: the partially-folded accumulator and the count of
// NaN PDPs seen since the last emitted row.
type dsArchiveState struct {
	accumulator doubleCell
	nanSteps    longCell
}

// dsRobin is one datasource's ring buffer within one archive, plus the
// index of the next slot to write.
type dsRobin struct {
	values   doubleArrayCell
	writePtr longCell
}

// archive is a fixed ring of consolidated rows at a given step multiple
// of the header step, with independent per-datasource consolidation
// state. Grounded on tgres' rra.go RoundRobinArchive, reworked from its
// sparse map-of-slots model onto this engine's dense fixed ring layout.
type archive struct {
	b backend.Backend

	cf        stringCell
	rows      longCell
	steps     longCell
	xff       doubleCell
	startTime longCell
	endTime   longCell

	dsStates []dsArchiveState
	robins   []dsRobin

	dbStep int64
}

// newArchiveHeader allocates just the fixed-width fields common to every
// archive regardless of its row count (cf, rows, steps, xff, start/end
// time). The row-dependent body (per-datasource accumulator state and
// robin rings) is allocated separately via allocateBody once the row
// count is known, since on reopen that count must be read off disk
// before the ring cells downstream of it can be bound to the right
// offsets.
func newArchiveHeader(a *allocator, b backend.Backend, dbStep int64) *archive {
	return &archive{
		b:         b,
		cf:        newStringCell(a, b, cfWidth),
		rows:      newLongCell(a, b),
		steps:     newLongCell(a, b),
		xff:       newDoubleCell(a, b),
		startTime: newLongCell(a, b),
		endTime:   newLongCell(a, b),
		dbStep:    dbStep,
	}
}

// allocateBody allocates the row-dependent per-datasource state: an
// accumulator/nanSteps pair for every datasource, then a robin ring plus
// write pointer for every datasource, in that order, matching §6's
// declared layout.
func (ar *archive) allocateBody(a *allocator, dsCount, rows int64) {
	ar.dsStates = make([]dsArchiveState, dsCount)
	for i := range ar.dsStates {
		ar.dsStates[i] = dsArchiveState{
			accumulator: newDoubleCell(a, ar.b),
			nanSteps:    newLongCell(a, ar.b),
		}
	}
	ar.robins = make([]dsRobin, dsCount)
	for i := range ar.robins {
		ar.robins[i] = dsRobin{
			values:   newDoubleArrayCell(a, ar.b, rows),
			writePtr: newLongCell(a, ar.b),
		}
	}
}

func sentinel(cf Consolidation) float64 {
	switch cf {
	case MIN:
		return math.Inf(1)
	case MAX:
		return math.Inf(-1)
	case FIRST:
		return math.NaN()
	default:
		return 0
	}
}

func (ar *archive) writeNew(def ArcDef, startTime int64) error {
	if def.Steps <= 0 || def.Rows <= 0 {
		return fmt.Errorf("rrd: %w: steps and rows must be positive", ErrInvalidDefinition)
	}
	if def.Xff < 0 || def.Xff >= 1 {
		return fmt.Errorf("rrd: %w: xff must be in [0,1)", ErrInvalidDefinition)
	}
	if err := ar.cf.Set(def.Cf.tag()); err != nil {
		return err
	}
	if err := ar.rows.Set(def.Rows); err != nil {
		return err
	}
	if err := ar.steps.Set(def.Steps); err != nil {
		return err
	}
	if err := ar.xff.Set(def.Xff); err != nil {
		return err
	}
	if err := ar.startTime.Set(startTime); err != nil {
		return err
	}
	if err := ar.endTime.Set(startTime); err != nil {
		return err
	}
	sv := sentinel(def.Cf)
	for i := range ar.dsStates {
		if err := ar.dsStates[i].accumulator.Set(sv); err != nil {
			return err
		}
		if err := ar.dsStates[i].nanSteps.Set(0); err != nil {
			return err
		}
	}
	for i := range ar.robins {
		nanRow := make([]float64, def.Rows)
		for j := range nanRow {
			nanRow[j] = math.NaN()
		}
		if err := ar.robins[i].values.SetAll(nanRow); err != nil {
			return err
		}
		if err := ar.robins[i].writePtr.Set(0); err != nil {
			return err
		}
	}
	return nil
}

func (ar *archive) Def() (ArcDef, error) {
	tag, err := ar.cf.Get()
	if err != nil {
		return ArcDef{}, err
	}
	cf, err := ParseConsolidation(tag)
	if err != nil {
		return ArcDef{}, err
	}
	rows, err := ar.rows.Get()
	if err != nil {
		return ArcDef{}, err
	}
	steps, err := ar.steps.Get()
	if err != nil {
		return ArcDef{}, err
	}
	xff, err := ar.xff.Get()
	if err != nil {
		return ArcDef{}, err
	}
	return ArcDef{Cf: cf, Xff: xff, Steps: steps, Rows: rows}, nil
}

func (ar *archive) arcStep() (int64, error) {
	steps, err := ar.steps.Get()
	if err != nil {
		return 0, err
	}
	return ar.dbStep * steps, nil
}

// processWindow folds one completed PDP window into this archive's
// per-datasource consolidation state, emitting a consolidated row when
// the window completes a full consolidation group. Grounded on tgres'
// RoundRobinArchive.movePdpToDps, reworked around the spec's absolute
// step-index boundary test instead of tgres' cursor-walk.
func (ar *archive) processWindow(dsIndex int, w windowPdp) error {
	tag, err := ar.cf.Get()
	if err != nil {
		return err
	}
	cf, err := ParseConsolidation(tag)
	if err != nil {
		return err
	}
	steps, err := ar.steps.Get()
	if err != nil {
		return err
	}
	xff, err := ar.xff.Get()
	if err != nil {
		return err
	}

	st := ar.dsStates[dsIndex]
	acc, err := st.accumulator.Get()
	if err != nil {
		return err
	}
	nanSteps, err := st.nanSteps.Get()
	if err != nil {
		return err
	}

	if math.IsNaN(w.value) {
		nanSteps++
	} else {
		switch cf {
		case AVERAGE, TOTAL:
			acc += w.value
		case MIN:
			acc = math.Min(acc, w.value)
		case MAX:
			acc = math.Max(acc, w.value)
		case FIRST:
			if math.IsNaN(acc) {
				acc = w.value
			}
		case LAST:
			acc = w.value
		}
	}

	windowIndex := w.windowStart / ar.dbStep
	lastOfGroup := (windowIndex+1)%steps == 0

	if !lastOfGroup {
		if err := st.accumulator.Set(acc); err != nil {
			return err
		}
		return st.nanSteps.Set(nanSteps)
	}

	var emitted float64
	if float64(nanSteps)/float64(steps) >= xff {
		emitted = math.NaN()
	} else if cf == AVERAGE {
		emitted = acc / float64(steps-nanSteps)
	} else {
		emitted = acc
	}

	rb := ar.robins[dsIndex]
	wp, err := rb.writePtr.Get()
	if err != nil {
		return err
	}
	rows, err := ar.rows.Get()
	if err != nil {
		return err
	}
	if err := rb.values.SetAt(wp, emitted); err != nil {
		return err
	}
	if err := rb.writePtr.Set((wp + 1) % rows); err != nil {
		return err
	}

	if err := st.accumulator.Set(sentinel(cf)); err != nil {
		return err
	}
	if err := st.nanSteps.Set(0); err != nil {
		return err
	}

	step, err := ar.arcStep()
	if err != nil {
		return err
	}
	endTime, err := ar.endTime.Get()
	if err != nil {
		return err
	}
	endTime += step
	if err := ar.endTime.Set(endTime); err != nil {
		return err
	}
	return ar.startTime.Set(endTime - (rows-1)*step)
}

// fetchRange reads dsIndex's consolidated values at every arcStep
// boundary from the smallest such boundary at or after start, through
// end. Timestamps outside the archive's currently valid window (i.e.
// `rows` or more steps older than end_time, or newer than end_time)
// read as NaN rather than touching the ring, since a slot's last write
// may be stale leftover data from a previous rotation. Grounded on
// Rrd4j's Archive.fetchData row-by-row walk.
func (ar *archive) fetchRange(dsIndex int, start, end int64) (alignedStart int64, values []float64, err error) {
	step, err := ar.arcStep()
	if err != nil {
		return 0, nil, err
	}
	rows, err := ar.rows.Get()
	if err != nil {
		return 0, nil, err
	}
	endTime, err := ar.endTime.Get()
	if err != nil {
		return 0, nil, err
	}

	alignedStart = ((start + step - 1) / step) * step
	if alignedStart > end {
		return alignedStart, nil, nil
	}

	rb := ar.robins[dsIndex]
	wp, err := rb.writePtr.Get()
	if err != nil {
		return 0, nil, err
	}
	lastSlot := (wp - 1 + rows) % rows

	nRows := (end-alignedStart)/step + 1
	out := make([]float64, 0, nRows)
	for ts := alignedStart; ts <= end; ts += step {
		distance := (endTime - ts) / step
		if distance < 0 || distance >= rows {
			out = append(out, math.NaN())
			continue
		}
		slot := ((lastSlot-distance)%rows + rows) % rows
		v, err := rb.values.GetAt(slot)
		if err != nil {
			return 0, nil, err
		}
		out = append(out, v)
	}
	return alignedStart, out, nil
}
