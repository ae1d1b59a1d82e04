//
// Copyright 2015 Gregory Trubetskoy. All Rights Reserved.
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

// Package config loads RrdDef/DsDef/ArcDef trees from TOML files, in the
// manner of the teacher daemon's own TOML-driven Config, grounded on
// github.com/BurntSushi/toml.
package config

import (
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/gtres/rrdstore/rrd"
)

var nanValue = math.NaN()

// duration wraps time.Duration with a TOML-friendly text unmarshaler, so
// config files can write "300s" or "5m" directly.
type duration struct{ time.Duration }

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := parseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// archiveSpec is the compact "cf:step:span[:xff]" grammar for one
// archive, e.g. "AVERAGE:5m:1d" or "MAX:1h:1y:0.3". Grounded on the
// teacher's ConfigRRASpec.UnmarshalText.
type archiveSpec struct {
	Cf    rrd.Consolidation
	Step  time.Duration
	Span  time.Duration
	Xff   float64
}

func (r *archiveSpec) UnmarshalText(text []byte) error {
	r.Xff = 0.5
	parts := strings.SplitN(string(text), ":", 4)
	if len(parts) < 2 || len(parts) > 4 {
		return fmt.Errorf("config: invalid archive spec (wrong number of fields): %q", string(text))
	}

	// If the first part looks numeric, the cf was omitted; default to
	// AVERAGE.
	if len(parts[0]) > 0 && strings.ContainsRune("0123456789", rune(parts[0][0])) {
		parts = append([]string{"AVERAGE"}, parts...)
	}
	if len(parts) < 3 || len(parts) > 4 {
		return fmt.Errorf("config: invalid archive spec (wrong number of fields): %q", string(text))
	}

	cf, err := rrd.ParseConsolidation(strings.ToUpper(parts[0]))
	if err != nil {
		return fmt.Errorf("config: invalid archive spec %q: %w", string(text), err)
	}
	r.Cf = cf

	if r.Step, err = parseDuration(parts[1]); err != nil {
		return fmt.Errorf("config: invalid step %q: %w", parts[1], err)
	}
	if r.Span, err = parseDuration(parts[2]); err != nil {
		return fmt.Errorf("config: invalid span %q: %w", parts[2], err)
	}
	if r.Span%r.Step != 0 {
		adjusted := (r.Span / r.Step) * r.Step
		log.Printf("config: span %q is not a multiple of step %q, adjusting to %v", parts[2], parts[1], adjusted)
		r.Span = adjusted
		if r.Span == 0 {
			return fmt.Errorf("config: invalid span (rounds to zero)")
		}
	}
	if len(parts) == 4 {
		if r.Xff, err = strconv.ParseFloat(parts[3], 64); err != nil {
			return fmt.Errorf("config: invalid xff %q: %w", parts[3], err)
		}
	}
	return nil
}

// datasourceSpec describes one [[ds]] TOML table.
type datasourceSpec struct {
	Name      string
	Type      string
	Heartbeat duration
	Min       *float64
	Max       *float64
	Archives  []archiveSpec `toml:"archive"`
}

// FileSpec is the root of a database's TOML definition: its path, base
// step and datasources (each carrying its own archive list, written as
// `archive = ["cf:step:span[:xff]", ...]` inside its [[ds]] table).
type FileSpec struct {
	Path      string
	Step      duration
	StartTime *time.Time
	DSs       []datasourceSpec `toml:"ds"`
}

var readFileSpec = func(path string) (*FileSpec, error) {
	spec := &FileSpec{}
	if _, err := toml.DecodeFile(path, spec); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return spec, nil
}

// Load reads a TOML file at path and builds the RrdDef it describes. Any
// archives repeated identically across multiple datasources are flattened
// into the RrdDef's single shared Arc list the first time they're seen so
// datasources that specify the same archives by step/span produce one
// archive entry each (per RrdDef's one-archive-per-RRA-declaration model)
// rather than duplicated rows.
func Load(path string) (*rrd.RrdDef, error) {
	spec, err := readFileSpec(path)
	if err != nil {
		return nil, err
	}
	if spec.Step.Duration <= 0 {
		return nil, fmt.Errorf("config: %s: step must be positive", path)
	}
	if len(spec.DSs) == 0 {
		return nil, fmt.Errorf("config: %s: at least one [[ds]] is required", path)
	}

	def := &rrd.RrdDef{
		Path: spec.Path,
		Step: spec.Step.Duration,
	}
	if spec.StartTime != nil {
		def.StartTime = *spec.StartTime
	}

	seenArc := make(map[archiveSpec]bool)
	for _, ds := range spec.DSs {
		dsType, err := rrd.ParseDsType(strings.ToUpper(ds.Type))
		if err != nil {
			return nil, fmt.Errorf("config: %s: ds %q: %w", path, ds.Name, err)
		}
		dsDef := rrd.DsDef{
			Name:      sanitizeDsName(ds.Name),
			Type:      dsType,
			Heartbeat: ds.Heartbeat.Duration,
			Min:       floatOrNaN(ds.Min),
			Max:       floatOrNaN(ds.Max),
		}
		def.Ds = append(def.Ds, dsDef)

		for _, a := range ds.Archives {
			if seenArc[a] {
				continue
			}
			seenArc[a] = true
			def.Arc = append(def.Arc, rrd.ArcDef{
				Cf:    a.Cf,
				Xff:   a.Xff,
				Steps: int64(a.Step / spec.Step.Duration),
				Rows:  int64(a.Span / a.Step),
			})
		}
	}
	return def, nil
}

func floatOrNaN(f *float64) float64 {
	if f == nil {
		return nanValue
	}
	return *f
}
