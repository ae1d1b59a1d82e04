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

import "time"

// DsDef describes one datasource to be created with a new database.
// Grounded on tgres' DSSpec.
type DsDef struct {
	Name      string
	Type      DsType
	Heartbeat time.Duration
	Min       float64 // may be NaN for "no minimum"
	Max       float64 // may be NaN for "no maximum"
}

// ArcDef describes one archive to be created with a new database.
// Grounded on tgres' RRASpec; Steps is the number of primary data points
// consolidated into one archive step, and Rows is the ring length.
type ArcDef struct {
	Cf    Consolidation
	Xff   float64
	Steps int64
	Rows  int64
}

// step reports the archive's own resolution given the database step.
func (d ArcDef) step(dbStep time.Duration) time.Duration {
	return dbStep * time.Duration(d.Steps)
}

// span reports the total time range this archive covers.
func (d ArcDef) span(dbStep time.Duration) time.Duration {
	return d.step(dbStep) * time.Duration(d.Rows)
}

// RrdDef is everything needed to create a brand new database image: its
// identity, base step, starting time, and the datasources and archives
// to allocate. Grounded on Rrd4j's RrdDef.
type RrdDef struct {
	Path      string
	Step      time.Duration
	StartTime time.Time
	Ds        []DsDef
	Arc       []ArcDef
}

// Sample is one set of named datapoints submitted at a single instant,
// grounded on Rrd4j's Sample / tgres' DataPoint.
type Sample struct {
	Time   time.Time
	Values map[string]float64
}

// FetchRequest describes a query for consolidated data: a consolidation
// function, a time range and a desired resolution. findMatchingArchive
// picks the best archive to satisfy it. Grounded on Rrd4j's FetchRequest.
type FetchRequest struct {
	Cf         Consolidation
	Start      time.Time
	End        time.Time
	Resolution time.Duration // 0 means "use the matched archive's native step"
	DsNames    []string      // empty means all datasources
}

// FetchData is the result of a Fetch call: one timestamp per row, with
// one value per requested datasource per row, in DsNames order.
// Grounded on Rrd4j's FetchData.
type FetchData struct {
	Start   time.Time
	End     time.Time
	Step    time.Duration
	DsNames []string
	Rows    [][]float64
}

// Timestamps reconstructs the timestamp of every row in Rows; the first
// row's timestamp is Start itself, each subsequent one Step later.
func (fd FetchData) Timestamps() []time.Time {
	out := make([]time.Time, len(fd.Rows))
	t := fd.Start
	for i := range out {
		out[i] = t
		t = t.Add(fd.Step)
	}
	return out
}
