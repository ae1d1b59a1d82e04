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
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/gtres/rrdstore/backend"
)

// Database orchestrates one open RRD image: its header, datasources and
// archives, all bound to a single Backend. All mutating operations
// serialize through mu, matching the single-writer contract; read-only
// operations also take the lock to avoid torn reads against a backend
// that buffers internally.
type Database struct {
	mu sync.Mutex

	b      backend.Backend
	h      header
	dss    []*datasource
	dsIdx  map[string]int
	arcs   []*archive
	closed bool

	limiter *rate.Limiter
}

// Create allocates a brand new image for def and returns it open for
// writing. Grounded on Rrd4j's RrdDb(RrdDef, RrdBackendFactory)
// constructor chain: resolve factory, open backend, set length, write
// every cell in declaration order, close the backend on any failure.
func Create(def RrdDef) (*Database, error) {
	if len(def.Ds) == 0 || len(def.Arc) == 0 {
		return nil, fmt.Errorf("rrd: %w: at least one datasource and one archive are required", ErrInvalidDefinition)
	}
	if def.Step <= 0 {
		return nil, fmt.Errorf("rrd: %w: step must be positive", ErrInvalidDefinition)
	}

	uri, err := backend.ParseURI(def.Path)
	if err != nil {
		return nil, fmt.Errorf("rrd: parse uri %q: %w", def.Path, err)
	}
	factory, err := backend.FindFactory(uri)
	if err != nil {
		return nil, err
	}
	b, err := factory.Open(uri, false)
	if err != nil {
		return nil, err
	}

	step := int64(def.Step.Seconds())
	a := newAllocator()
	h := newHeader(a, b)
	dss := make([]*datasource, len(def.Ds))
	for i := range dss {
		dss[i] = newDatasource(a, b, step)
	}
	arcs := make([]*archive, len(def.Arc))
	for i, arcDef := range def.Arc {
		arcs[i] = newArchiveHeader(a, b, step)
		arcs[i].allocateBody(a, int64(len(def.Ds)), arcDef.Rows)
	}
	db := &Database{b: b, h: h, dss: dss, dsIdx: make(map[string]int, len(dss)), arcs: arcs}

	if err := b.SetLength(a.size()); err != nil {
		b.Close()
		return nil, err
	}
	if err := db.h.writeNew(step, int64(len(def.Ds)), int64(len(def.Arc)), ""); err != nil {
		b.Close()
		return nil, err
	}
	startTime := unixSeconds(def.StartTime)
	for i, dsDef := range def.Ds {
		if err := db.dss[i].writeNew(dsDef); err != nil {
			b.Close()
			return nil, err
		}
		db.dsIdx[dsDef.Name] = i
	}
	for i, arcDef := range def.Arc {
		if err := db.arcs[i].writeNew(arcDef, startTime); err != nil {
			b.Close()
			return nil, err
		}
	}
	if err := db.h.lastUpdate.Set(startTime); err != nil {
		b.Close()
		return nil, err
	}
	return db, nil
}

// Open binds to an existing image without writing anything. Grounded on
// Rrd4j's RrdDb(String path, boolean readOnly, RrdBackendFactory):
// resolve factory, open backend, optionally validate the signature,
// reconstruct the cell layout by walking it in the identical
// declaration order Create used.
func Open(path string, readOnly bool) (*Database, error) {
	uri, err := backend.ParseURI(path)
	if err != nil {
		return nil, fmt.Errorf("rrd: parse uri %q: %w", path, err)
	}
	factory, err := backend.FindFactory(uri)
	if err != nil {
		return nil, err
	}
	if !factory.Exists(uri) && readOnly {
		return nil, ErrNotFound
	}
	b, err := factory.Open(uri, readOnly)
	if err != nil {
		return nil, err
	}

	// First pass: allocate just the header to learn the counts.
	a := newAllocator()
	h := newHeader(a, b)

	if factory.ShouldValidateHeader(uri) {
		if err := h.validate(); err != nil {
			b.Close()
			return nil, err
		}
	}
	step, err := h.step.Get()
	if err != nil {
		b.Close()
		return nil, err
	}
	dsCount, err := h.dsCount.Get()
	if err != nil {
		b.Close()
		return nil, err
	}
	arcCount, err := h.arcCount.Get()
	if err != nil {
		b.Close()
		return nil, err
	}

	dss := make([]*datasource, dsCount)
	dsIdx := make(map[string]int, dsCount)
	for i := range dss {
		dss[i] = newDatasource(a, b, step)
	}
	arcs := make([]*archive, arcCount)
	for i := range arcs {
		ar := newArchiveHeader(a, b, step)
		rows, err := ar.rows.Get()
		if err != nil {
			b.Close()
			return nil, err
		}
		ar.allocateBody(a, dsCount, rows)
		arcs[i] = ar
	}

	db := &Database{b: b, h: h, dss: dss, dsIdx: dsIdx, arcs: arcs}
	for i, ds := range db.dss {
		name, err := ds.Name()
		if err != nil {
			b.Close()
			return nil, err
		}
		db.dsIdx[name] = i
	}
	return db, nil
}

// SetWriteLimiter installs an optional rate limiter guarding Update,
// grounded on golang.org/x/time/rate usage elsewhere in the teacher's
// dependency set; nil disables the guard (the default).
func (db *Database) SetWriteLimiter(l *rate.Limiter) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.limiter = l
}

// Update folds one Sample into every datasource's PDP pipeline and, for
// every PDP window that pipeline completes, into every archive. Grounded
// on Rrd4j's RrdDb.store: reject non-monotonic timestamps outright,
// leave state untouched on failure, advance last-update-time only on
// success.
func (db *Database) Update(s Sample) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return ErrClosed
	}
	if db.limiter != nil {
		if err := db.limiter.Wait(context.Background()); err != nil {
			return fmt.Errorf("rrd: write rate limiter: %w", err)
		}
	}

	last, err := db.h.lastUpdate.Get()
	if err != nil {
		return err
	}
	now := unixSeconds(s.Time)
	if now <= last {
		return ErrInvalidTimestamp
	}

	for i, ds := range db.dss {
		name, err := ds.Name()
		if err != nil {
			return err
		}
		raw, ok := s.Values[name]
		if !ok {
			raw = math.NaN()
		}
		windows, err := ds.process(last, now, raw)
		if err != nil {
			return err
		}
		for _, w := range windows {
			for _, ar := range db.arcs {
				if err := ar.processWindow(i, w); err != nil {
					return err
				}
			}
		}
	}

	return db.h.lastUpdate.Set(now)
}

// Fetch selects the best archive for req via findMatchingArchive and
// returns its data over the requested range.
func (db *Database) Fetch(req FetchRequest) (FetchData, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return FetchData{}, ErrClosed
	}

	ar, err := db.findMatchingArchive(req)
	if err != nil {
		return FetchData{}, err
	}
	step, err := ar.arcStep()
	if err != nil {
		return FetchData{}, err
	}

	names := req.DsNames
	if len(names) == 0 {
		for _, ds := range db.dss {
			n, err := ds.Name()
			if err != nil {
				return FetchData{}, err
			}
			names = append(names, n)
		}
	}

	start := unixSeconds(req.Start)
	end := unixSeconds(req.End)

	colStart := start
	var perDsRows [][]float64
	for _, name := range names {
		idx, ok := db.dsIdx[name]
		if !ok {
			return FetchData{}, fmt.Errorf("rrd: %w: %s", ErrUnknownDatasource, name)
		}
		aligned, values, err := ar.fetchRange(idx, start, end)
		if err != nil {
			return FetchData{}, err
		}
		colStart = aligned
		perDsRows = append(perDsRows, values)
	}

	nRows := 0
	for _, v := range perDsRows {
		if len(v) > nRows {
			nRows = len(v)
		}
	}
	rows := make([][]float64, nRows)
	for r := 0; r < nRows; r++ {
		row := make([]float64, len(names))
		for c := range names {
			if r < len(perDsRows[c]) {
				row[c] = perDsRows[c][r]
			} else {
				row[c] = math.NaN()
			}
		}
		rows[r] = row
	}

	return FetchData{
		Start:   fromUnixSeconds(colStart),
		End:     fromUnixSeconds(end),
		Step:    secondsToDuration(step),
		DsNames: names,
		Rows:    rows,
	}, nil
}

// findMatchingArchive implements the selection algorithm from §4.6,
// grounded verbatim on Rrd4j's RrdDb.findMatchingArchive: partition by
// full vs partial coverage of the requested start, tie-break full
// matches by closeness to the requested resolution, partial matches by
// coverage then resolution.
func (db *Database) findMatchingArchive(req FetchRequest) (*archive, error) {
	start := unixSeconds(req.Start)
	end := unixSeconds(req.End)
	resolution := durationToSeconds(req.Resolution)

	type candidate struct {
		ar       *archive
		arcStep  int64
		startT   int64
	}
	var full, partial []candidate

	for _, ar := range db.arcs {
		def, err := ar.Def()
		if err != nil {
			return nil, err
		}
		if def.Cf != req.Cf {
			continue
		}
		step, err := ar.arcStep()
		if err != nil {
			return nil, err
		}
		startT, err := ar.startTime.Get()
		if err != nil {
			return nil, err
		}
		c := candidate{ar: ar, arcStep: step, startT: startT}
		if startT-step <= start {
			full = append(full, c)
		} else {
			partial = append(partial, c)
		}
	}

	abs := func(x int64) int64 {
		if x < 0 {
			return -x
		}
		return x
	}

	if len(full) > 0 {
		best := full[0]
		bestDiff := abs(best.arcStep - resolution)
		for _, c := range full[1:] {
			d := abs(c.arcStep - resolution)
			if d < bestDiff {
				best, bestDiff = c, d
			}
		}
		return best.ar, nil
	}

	if len(partial) > 0 {
		coverage := func(c candidate) int64 {
			lo := start
			if c.startT-c.arcStep > lo {
				lo = c.startT - c.arcStep
			}
			return end - lo
		}
		best := partial[0]
		bestCov := coverage(best)
		bestDiff := abs(best.arcStep - resolution)
		for _, c := range partial[1:] {
			cov := coverage(c)
			diff := abs(c.arcStep - resolution)
			if cov > bestCov || (cov == bestCov && diff < bestDiff) {
				best, bestCov, bestDiff = c, cov, diff
			}
		}
		return best.ar, nil
	}

	return nil, ErrNoMatchingArchive
}

// Close releases the backend exactly once; subsequent operations fail
// with ErrClosed.
func (db *Database) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil
	}
	db.closed = true
	return db.b.Close()
}

// SetInfo overwrites the header's free-form info string. Like Update, it
// is a mutating operation and takes the per-database exclusive guard.
func (db *Database) SetInfo(info string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return ErrClosed
	}
	return db.h.info.Set(info)
}

// GetRrdDef reconstructs a definition suitable for recreating an empty,
// structurally identical database.
func (db *Database) GetRrdDef() (RrdDef, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	step, err := db.h.step.Get()
	if err != nil {
		return RrdDef{}, err
	}
	lastUpdate, err := db.h.lastUpdate.Get()
	if err != nil {
		return RrdDef{}, err
	}

	def := RrdDef{
		Path:      db.b.Path(),
		Step:      secondsToDuration(step),
		StartTime: fromUnixSeconds(lastUpdate),
	}
	for _, ds := range db.dss {
		d, err := ds.Def()
		if err != nil {
			return RrdDef{}, err
		}
		def.Ds = append(def.Ds, d)
	}
	for _, ar := range db.arcs {
		d, err := ar.Def()
		if err != nil {
			return RrdDef{}, err
		}
		def.Arc = append(def.Arc, d)
	}
	return def, nil
}

// Dump returns a textual representation of the database's structure and
// current state, stable across reopens of unchanged content.
func (db *Database) Dump() (string, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var sb strings.Builder
	step, err := db.h.step.Get()
	if err != nil {
		return "", err
	}
	lastUpdate, err := db.h.lastUpdate.Get()
	if err != nil {
		return "", err
	}
	fmt.Fprintf(&sb, "step=%d last_update=%d\n", step, lastUpdate)

	for _, ds := range db.dss {
		d, err := ds.Def()
		if err != nil {
			return "", err
		}
		raw, err := ds.lastRaw.Get()
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&sb, "ds name=%s type=%s heartbeat=%d min=%v max=%v last_raw=%v\n",
			d.Name, d.Type, int64(d.Heartbeat.Seconds()), d.Min, d.Max, raw)
	}

	for _, ar := range db.arcs {
		d, err := ar.Def()
		if err != nil {
			return "", err
		}
		startT, err := ar.startTime.Get()
		if err != nil {
			return "", err
		}
		endT, err := ar.endTime.Get()
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&sb, "arc cf=%s steps=%d rows=%d xff=%v start=%d end=%d\n",
			d.Cf, d.Steps, d.Rows, d.Xff, startT, endT)
		for i, rb := range ar.robins {
			vals, err := rb.values.GetAll()
			if err != nil {
				return "", err
			}
			fmt.Fprintf(&sb, "  ds[%d] %v\n", i, vals)
		}
	}
	return sb.String(), nil
}

// CopyStateTo copies header, per-datasource state by name match and
// per-archive state by (cf, steps) match from db into dst; unmatched
// entities on either side are skipped silently, matching §4.7.
func (db *Database) CopyStateTo(dst *Database) error {
	if dst == nil {
		return ErrIncompatibleCopy
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	dst.mu.Lock()
	defer dst.mu.Unlock()

	lastUpdate, err := db.h.lastUpdate.Get()
	if err != nil {
		return err
	}
	if err := dst.h.lastUpdate.Set(lastUpdate); err != nil {
		return err
	}

	srcByName := make(map[string]*datasource, len(db.dss))
	for _, ds := range db.dss {
		name, err := ds.Name()
		if err != nil {
			return err
		}
		srcByName[name] = ds
	}
	for _, dstDs := range dst.dss {
		name, err := dstDs.Name()
		if err != nil {
			return err
		}
		srcDs, ok := srcByName[name]
		if !ok {
			continue
		}
		if err := copyDatasourceState(srcDs, dstDs); err != nil {
			return err
		}
	}

	type cfSteps struct {
		cf    Consolidation
		steps int64
	}
	srcByKey := make(map[cfSteps]*archive, len(db.arcs))
	for _, ar := range db.arcs {
		d, err := ar.Def()
		if err != nil {
			return err
		}
		srcByKey[cfSteps{d.Cf, d.Steps}] = ar
	}
	for _, dstAr := range dst.arcs {
		d, err := dstAr.Def()
		if err != nil {
			return err
		}
		srcAr, ok := srcByKey[cfSteps{d.Cf, d.Steps}]
		if !ok {
			continue
		}
		if err := copyArchiveState(srcAr, dstAr); err != nil {
			return err
		}
	}
	return nil
}

func copyDatasourceState(src, dst *datasource) error {
	raw, err := src.lastRaw.Get()
	if err != nil {
		return err
	}
	acc, err := src.accumulated.Get()
	if err != nil {
		return err
	}
	unk, err := src.unknownSeconds.Get()
	if err != nil {
		return err
	}
	if err := dst.lastRaw.Set(raw); err != nil {
		return err
	}
	if err := dst.accumulated.Set(acc); err != nil {
		return err
	}
	return dst.unknownSeconds.Set(unk)
}

func copyArchiveState(src, dst *archive) error {
	startT, err := src.startTime.Get()
	if err != nil {
		return err
	}
	endT, err := src.endTime.Get()
	if err != nil {
		return err
	}
	if err := dst.startTime.Set(startT); err != nil {
		return err
	}
	if err := dst.endTime.Set(endT); err != nil {
		return err
	}
	n := len(src.dsStates)
	if len(dst.dsStates) < n {
		n = len(dst.dsStates)
	}
	for i := 0; i < n; i++ {
		acc, err := src.dsStates[i].accumulator.Get()
		if err != nil {
			return err
		}
		nanSteps, err := src.dsStates[i].nanSteps.Get()
		if err != nil {
			return err
		}
		if err := dst.dsStates[i].accumulator.Set(acc); err != nil {
			return err
		}
		if err := dst.dsStates[i].nanSteps.Set(nanSteps); err != nil {
			return err
		}
		vals, err := src.robins[i].values.GetAll()
		if err != nil {
			return err
		}
		if err := dst.robins[i].values.SetAll(vals); err != nil {
			return err
		}
		wp, err := src.robins[i].writePtr.Get()
		if err != nil {
			return err
		}
		if err := dst.robins[i].writePtr.Set(wp); err != nil {
			return err
		}
	}
	return nil
}
