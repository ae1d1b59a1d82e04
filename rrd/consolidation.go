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

import "fmt"

// Consolidation is the function an archive uses to fold PDPs into a
// consolidated row.
type Consolidation int

const (
	AVERAGE Consolidation = iota
	MIN
	MAX
	LAST
	FIRST
	TOTAL
)

func (cf Consolidation) String() string {
	switch cf {
	case AVERAGE:
		return "AVERAGE"
	case MIN:
		return "MIN"
	case MAX:
		return "MAX"
	case LAST:
		return "LAST"
	case FIRST:
		return "FIRST"
	case TOTAL:
		return "TOTAL"
	default:
		return "UNKNOWN"
	}
}

// tag returns the 4-byte on-disk representation used by the cf cell.
func (cf Consolidation) tag() string {
	switch cf {
	case AVERAGE:
		return "AVRG"
	case MIN:
		return "MIN_"
	case MAX:
		return "MAX_"
	case LAST:
		return "LAST"
	case FIRST:
		return "FRST"
	case TOTAL:
		return "TOTL"
	default:
		return "UNK_"
	}
}

// ParseConsolidation parses the on-disk 4-byte cf tag (or its full name)
// back into a Consolidation value.
func ParseConsolidation(s string) (Consolidation, error) {
	switch s {
	case "AVERAGE", "AVG":
		return AVERAGE, nil
	case "MIN":
		return MIN, nil
	case "MAX":
		return MAX, nil
	case "LAST":
		return LAST, nil
	case "FIRST":
		return FIRST, nil
	case "TOTAL", "TOT":
		return TOTAL, nil
	case "AVRG":
		return AVERAGE, nil
	case "MIN_":
		return MIN, nil
	case "MAX_":
		return MAX, nil
	case "FRST":
		return FIRST, nil
	case "TOTL":
		return TOTAL, nil
	default:
		return 0, fmt.Errorf("rrd: invalid consolidation function %q", s)
	}
}

// DsType is the per-datasource rate computation applied to raw sample
// values before they enter the PDP pipeline.
type DsType int

const (
	Gauge DsType = iota
	Counter
	Derive
	Absolute
)

func (t DsType) String() string {
	switch t {
	case Gauge:
		return "GAUGE"
	case Counter:
		return "COUNTER"
	case Derive:
		return "DERIVE"
	case Absolute:
		return "ABSOLUTE"
	default:
		return "UNKNOWN"
	}
}

// tag returns the 4-byte on-disk representation used by the dsType cell.
func (t DsType) tag() string {
	switch t {
	case Gauge:
		return "GAUG"
	case Counter:
		return "CNTR"
	case Derive:
		return "DERV"
	case Absolute:
		return "ABSL"
	default:
		return "UNK_"
	}
}

// ParseDsType parses the on-disk 4-byte type tag (or its full name) back
// into a DsType value.
func ParseDsType(s string) (DsType, error) {
	switch s {
	case "GAUGE", "GAUG":
		return Gauge, nil
	case "COUNTER", "CNTR":
		return Counter, nil
	case "DERIVE", "DERV":
		return Derive, nil
	case "ABSOLUTE", "ABSL":
		return Absolute, nil
	default:
		return 0, fmt.Errorf("rrd: invalid datasource type %q", s)
	}
}
