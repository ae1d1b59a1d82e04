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
	"math"
	"testing"
	"time"
)

func memURI(name string) string {
	return "memory://" + name
}

func newTestDb(t *testing.T, name string, def RrdDef) *Database {
	t.Helper()
	def.Path = memURI(name)
	db, err := Create(def)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func almostEqual(a, b float64) bool {
	if math.IsNaN(a) && math.IsNaN(b) {
		return true
	}
	return math.Abs(a-b) < 1e-9
}

func Test_Database_scenario1_averageFetch(t *testing.T) {
	def := RrdDef{
		Step:      300 * time.Second,
		StartTime: time.Unix(0, 0).UTC(),
		Ds: []DsDef{
			{Name: "speed", Type: Gauge, Heartbeat: 600 * time.Second, Min: 0, Max: math.NaN()},
		},
		Arc: []ArcDef{
			{Cf: AVERAGE, Xff: 0.5, Steps: 1, Rows: 10},
		},
	}
	db := newTestDb(t, "scenario1", def)

	for _, s := range []struct {
		t int64
		v float64
	}{
		{300, 10}, {600, 20}, {900, 30},
	} {
		if err := db.Update(Sample{Time: time.Unix(s.t, 0).UTC(), Values: map[string]float64{"speed": s.v}}); err != nil {
			t.Fatalf("Update(%d): %v", s.t, err)
		}
	}

	fd, err := db.Fetch(FetchRequest{
		Cf:         AVERAGE,
		Start:      time.Unix(0, 0).UTC(),
		End:        time.Unix(900, 0).UTC(),
		Resolution: 300 * time.Second,
	})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	want := []float64{math.NaN(), 10, 20, 30}
	var got []float64
	for _, row := range fd.Rows {
		got = append(got, row[0])
	}
	if len(got) < len(want) {
		t.Fatalf("got %d rows, want at least %d: %v", len(got), len(want), got)
	}
	// The last len(want) rows hold the values written; earlier rows (if
	// any, from ring pre-fill) are NaN.
	tail := got[len(got)-len(want):]
	for i := range want {
		if !almostEqual(tail[i], want[i]) {
			t.Errorf("row %d = %v, want %v", i, tail[i], want[i])
		}
	}
}

func Test_Database_scenario2_heartbeatGapIsNaN(t *testing.T) {
	def := RrdDef{
		Step:      300 * time.Second,
		StartTime: time.Unix(0, 0).UTC(),
		Ds: []DsDef{
			{Name: "speed", Type: Gauge, Heartbeat: 600 * time.Second, Min: 0, Max: math.NaN()},
		},
		Arc: []ArcDef{
			{Cf: AVERAGE, Xff: 0.5, Steps: 1, Rows: 10},
		},
	}
	db := newTestDb(t, "scenario2", def)

	if err := db.Update(Sample{Time: time.Unix(300, 0).UTC(), Values: map[string]float64{"speed": 10}}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := db.Update(Sample{Time: time.Unix(1500, 0).UTC(), Values: map[string]float64{"speed": 20}}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	fd, err := db.Fetch(FetchRequest{
		Cf:         AVERAGE,
		Start:      time.Unix(0, 0).UTC(),
		End:        time.Unix(1500, 0).UTC(),
		Resolution: 300 * time.Second,
	})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	last := fd.Rows[len(fd.Rows)-1][0]
	if !math.IsNaN(last) {
		t.Errorf("row at t=1500 = %v, want NaN", last)
	}
}

func Test_Database_scenario3_counterRate(t *testing.T) {
	def := RrdDef{
		Step:      300 * time.Second,
		StartTime: time.Unix(0, 0).UTC(),
		Ds: []DsDef{
			{Name: "bytes", Type: Counter, Heartbeat: 600 * time.Second, Min: math.NaN(), Max: math.NaN()},
		},
		Arc: []ArcDef{
			{Cf: AVERAGE, Xff: 0.5, Steps: 1, Rows: 10},
		},
	}
	db := newTestDb(t, "scenario3", def)

	if err := db.Update(Sample{Time: time.Unix(300, 0).UTC(), Values: map[string]float64{"bytes": 100}}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := db.Update(Sample{Time: time.Unix(600, 0).UTC(), Values: map[string]float64{"bytes": 400}}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	fd, err := db.Fetch(FetchRequest{
		Cf:         AVERAGE,
		Start:      time.Unix(0, 0).UTC(),
		End:        time.Unix(600, 0).UTC(),
		Resolution: 300 * time.Second,
	})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	got := fd.Rows[len(fd.Rows)-1][0]
	if !almostEqual(got, 1.0) {
		t.Errorf("pdp = %v, want 1.0", got)
	}
}

func Test_Database_scenario4_counterWrap(t *testing.T) {
	def := RrdDef{
		Step:      300 * time.Second,
		StartTime: time.Unix(0, 0).UTC(),
		Ds: []DsDef{
			{Name: "bytes", Type: Counter, Heartbeat: 600 * time.Second, Min: math.NaN(), Max: math.NaN()},
		},
		Arc: []ArcDef{
			{Cf: AVERAGE, Xff: 0.5, Steps: 1, Rows: 10},
		},
	}
	db := newTestDb(t, "scenario4", def)

	if err := db.Update(Sample{Time: time.Unix(300, 0).UTC(), Values: map[string]float64{"bytes": 4294967290}}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := db.Update(Sample{Time: time.Unix(600, 0).UTC(), Values: map[string]float64{"bytes": 5}}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	fd, err := db.Fetch(FetchRequest{
		Cf:         AVERAGE,
		Start:      time.Unix(0, 0).UTC(),
		End:        time.Unix(600, 0).UTC(),
		Resolution: 300 * time.Second,
	})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	got := fd.Rows[len(fd.Rows)-1][0]
	want := 11.0 / 300.0
	if !almostEqual(got, want) {
		t.Errorf("pdp = %v, want %v", got, want)
	}
}

func Test_Database_scenario5_archiveSelection(t *testing.T) {
	now := int64(36000)
	def := RrdDef{
		Step:      60 * time.Second,
		StartTime: time.Unix(0, 0).UTC(),
		Ds: []DsDef{
			{Name: "speed", Type: Gauge, Heartbeat: 600 * time.Second, Min: math.NaN(), Max: math.NaN()},
		},
		Arc: []ArcDef{
			{Cf: AVERAGE, Xff: 0.5, Steps: 1, Rows: 100},
			{Cf: AVERAGE, Xff: 0.5, Steps: 6, Rows: 100},
		},
	}
	db := newTestDb(t, "scenario5", def)

	req := FetchRequest{
		Cf:         AVERAGE,
		Start:      time.Unix(now-3600, 0).UTC(),
		End:        time.Unix(now, 0).UTC(),
		Resolution: 60 * time.Second,
	}
	ar, err := db.findMatchingArchive(req)
	if err != nil {
		t.Fatalf("findMatchingArchive: %v", err)
	}
	steps, err := ar.steps.Get()
	if err != nil {
		t.Fatalf("steps.Get: %v", err)
	}
	if steps != 1 {
		t.Errorf("selected archive has steps=%d, want 1", steps)
	}
}

func Test_Database_scenario6_copyStateByCfSteps(t *testing.T) {
	def := RrdDef{
		Step:      300 * time.Second,
		StartTime: time.Unix(0, 0).UTC(),
		Ds: []DsDef{
			{Name: "speed", Type: Gauge, Heartbeat: 600 * time.Second, Min: math.NaN(), Max: math.NaN()},
		},
		Arc: []ArcDef{
			{Cf: AVERAGE, Xff: 0.5, Steps: 1, Rows: 10},
			{Cf: AVERAGE, Xff: 0.5, Steps: 6, Rows: 10},
		},
	}
	a := newTestDb(t, "scenario6a", def)
	for _, s := range []struct {
		t int64
		v float64
	}{{300, 1}, {600, 2}, {900, 3}} {
		if err := a.Update(Sample{Time: time.Unix(s.t, 0).UTC(), Values: map[string]float64{"speed": s.v}}); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}

	defReversed := def
	defReversed.Arc = []ArcDef{def.Arc[1], def.Arc[0]}
	bdb := newTestDb(t, "scenario6b", defReversed)

	if err := a.CopyStateTo(bdb); err != nil {
		t.Fatalf("CopyStateTo: %v", err)
	}

	aVals, err := a.arcs[0].robins[0].values.GetAll()
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	bVals, err := bdb.arcs[1].robins[0].values.GetAll()
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	for i := range aVals {
		if !almostEqual(aVals[i], bVals[i]) {
			t.Errorf("row %d: a=%v b=%v", i, aVals[i], bVals[i])
		}
	}
}

func Test_Database_monotonicTime(t *testing.T) {
	def := RrdDef{
		Step:      300 * time.Second,
		StartTime: time.Unix(0, 0).UTC(),
		Ds:        []DsDef{{Name: "x", Type: Gauge, Heartbeat: 600 * time.Second, Min: math.NaN(), Max: math.NaN()}},
		Arc:       []ArcDef{{Cf: AVERAGE, Xff: 0.5, Steps: 1, Rows: 5}},
	}
	db := newTestDb(t, "monotonic", def)

	if err := db.Update(Sample{Time: time.Unix(600, 0).UTC(), Values: map[string]float64{"x": 1}}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	err := db.Update(Sample{Time: time.Unix(600, 0).UTC(), Values: map[string]float64{"x": 1}})
	if err != ErrInvalidTimestamp {
		t.Errorf("Update at same time: got %v, want ErrInvalidTimestamp", err)
	}
	err = db.Update(Sample{Time: time.Unix(300, 0).UTC(), Values: map[string]float64{"x": 1}})
	if err != ErrInvalidTimestamp {
		t.Errorf("Update at earlier time: got %v, want ErrInvalidTimestamp", err)
	}
}

func Test_Database_closeIsIdempotentAndBlocksFurtherUse(t *testing.T) {
	def := RrdDef{
		Step:      60 * time.Second,
		StartTime: time.Unix(0, 0).UTC(),
		Ds:        []DsDef{{Name: "x", Type: Gauge, Heartbeat: 600 * time.Second, Min: math.NaN(), Max: math.NaN()}},
		Arc:       []ArcDef{{Cf: AVERAGE, Xff: 0.5, Steps: 1, Rows: 5}},
	}
	def.Path = memURI("closetest")
	db, err := Create(def)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Errorf("second Close returned %v, want nil", err)
	}
	if err := db.Update(Sample{Time: time.Unix(60, 0).UTC(), Values: map[string]float64{"x": 1}}); err != ErrClosed {
		t.Errorf("Update after close: got %v, want ErrClosed", err)
	}
}

func Test_Database_getRrdDefRoundTrip(t *testing.T) {
	def := RrdDef{
		Step:      300 * time.Second,
		StartTime: time.Unix(0, 0).UTC(),
		Ds: []DsDef{
			{Name: "a", Type: Gauge, Heartbeat: 600 * time.Second, Min: 0, Max: 100},
			{Name: "b", Type: Counter, Heartbeat: 900 * time.Second, Min: math.NaN(), Max: math.NaN()},
		},
		Arc: []ArcDef{
			{Cf: AVERAGE, Xff: 0.5, Steps: 1, Rows: 10},
			{Cf: MAX, Xff: 0.2, Steps: 12, Rows: 24},
		},
	}
	db := newTestDb(t, "roundtrip", def)

	got, err := db.GetRrdDef()
	if err != nil {
		t.Fatalf("GetRrdDef: %v", err)
	}
	if got.Step != def.Step {
		t.Errorf("Step = %v, want %v", got.Step, def.Step)
	}
	if len(got.Ds) != len(def.Ds) || len(got.Arc) != len(def.Arc) {
		t.Fatalf("structural mismatch: ds=%d/%d arc=%d/%d", len(got.Ds), len(def.Ds), len(got.Arc), len(def.Arc))
	}
	for i, d := range def.Ds {
		if got.Ds[i].Name != d.Name || got.Ds[i].Type != d.Type {
			t.Errorf("ds[%d] = %+v, want %+v", i, got.Ds[i], d)
		}
	}
	for i, a := range def.Arc {
		if got.Arc[i].Cf != a.Cf || got.Arc[i].Steps != a.Steps || got.Arc[i].Rows != a.Rows {
			t.Errorf("arc[%d] = %+v, want %+v", i, got.Arc[i], a)
		}
	}
}

func Test_Database_dumpStableAcrossReopen(t *testing.T) {
	def := RrdDef{
		Step:      60 * time.Second,
		StartTime: time.Unix(0, 0).UTC(),
		Ds:        []DsDef{{Name: "x", Type: Gauge, Heartbeat: 600 * time.Second, Min: math.NaN(), Max: math.NaN()}},
		Arc:       []ArcDef{{Cf: AVERAGE, Xff: 0.5, Steps: 1, Rows: 5}},
	}
	def.Path = memURI("dumpstable")
	db, err := Create(def)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := db.Update(Sample{Time: time.Unix(60, 0).UTC(), Values: map[string]float64{"x": 1}}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	d1, err := db.Dump()
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(def.Path, true)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reopened.Close()
	d2, err := reopened.Dump()
	if err != nil {
		t.Fatalf("Dump (reopened): %v", err)
	}
	if d1 != d2 {
		t.Errorf("dump mismatch:\n%s\n---\n%s", d1, d2)
	}
}

func Test_Database_createRejectsEmptyDefinitions(t *testing.T) {
	_, err := Create(RrdDef{Path: memURI("empty"), Step: 60 * time.Second})
	if err == nil {
		t.Error("Create with no datasources or archives should fail")
	}
}

func Test_Database_fetchWithNoMatchingArchive(t *testing.T) {
	def := RrdDef{
		Step:      60 * time.Second,
		StartTime: time.Unix(0, 0).UTC(),
		Ds:        []DsDef{{Name: "x", Type: Gauge, Heartbeat: 600 * time.Second, Min: math.NaN(), Max: math.NaN()}},
		Arc:       []ArcDef{{Cf: AVERAGE, Xff: 0.5, Steps: 1, Rows: 5}},
	}
	db := newTestDb(t, "nomatch", def)
	_, err := db.Fetch(FetchRequest{Cf: MAX, Start: time.Unix(0, 0).UTC(), End: time.Unix(60, 0).UTC()})
	if err != ErrNoMatchingArchive {
		t.Errorf("Fetch with unsatisfiable cf: got %v, want ErrNoMatchingArchive", err)
	}
}
