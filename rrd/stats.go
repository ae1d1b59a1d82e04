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
	"os"

	"github.com/shirou/gopsutil/process"
)

// Stats is a diagnostic snapshot of the current process alongside the
// database's own structural counts, grounded on the teacher's
// receiver/runtime.go use of gopsutil to report daemon health.
type Stats struct {
	DatasourceCount int64
	ArchiveCount    int64
	LastUpdateTime  int64

	ProcessRSSBytes  uint64
	ProcessCPUPct    float64
	ProcessNumThread int32
}

// Stats gathers structural counts plus host process diagnostics via
// gopsutil. Process-level fields are best-effort: if gopsutil cannot
// read /proc (or the platform equivalent) for the current pid, they are
// left zero rather than failing the whole call.
func (db *Database) Stats() (Stats, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	lastUpdate, err := db.h.lastUpdate.Get()
	if err != nil {
		return Stats{}, err
	}

	s := Stats{
		DatasourceCount: int64(len(db.dss)),
		ArchiveCount:    int64(len(db.arcs)),
		LastUpdateTime:  lastUpdate,
	}

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return s, nil
	}
	if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
		s.ProcessRSSBytes = mem.RSS
	}
	if pct, err := proc.CPUPercent(); err == nil {
		s.ProcessCPUPct = pct
	}
	if n, err := proc.NumThreads(); err == nil {
		s.ProcessNumThread = n
	}
	return s, nil
}
