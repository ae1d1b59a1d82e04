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

	"github.com/gtres/rrdstore/backend"
)

// signature identifies this engine's on-disk format and version. Opening
// a backend whose first bytes don't match this is refused outright
// rather than risk misinterpreting a foreign layout.
const signature = "RRDSTOR2"

const (
	signatureWidth = 8
	infoWidth      = 128
)

// header is the fixed-offset record at the start of every image: magic
// signature, step size, component counts, the last update time and an
// info string. Everything after the header is the datasource records,
// then, archive by archive, each archive's fixed fields followed by its
// per-datasource consolidation state and robin rings.
type header struct {
	signature  stringCell
	step       longCell
	dsCount    longCell
	arcCount   longCell
	lastUpdate longCell
	info       stringCell
}

func newHeader(a *allocator, b backend.Backend) header {
	return header{
		signature:  newStringCell(a, b, signatureWidth),
		step:       newLongCell(a, b),
		dsCount:    newLongCell(a, b),
		arcCount:   newLongCell(a, b),
		lastUpdate: newLongCell(a, b),
		info:       newStringCell(a, b, infoWidth),
	}
}

// headerSize is the fixed byte width of the header region, independent
// of any allocator instance, for callers that need to know where the
// datasource records begin before a Database exists in memory.
const headerSize = signatureWidth + 4*longWidth + infoWidth

func (h header) writeNew(step int64, dsCount, arcCount int64, info string) error {
	if err := h.signature.Set(signature); err != nil {
		return err
	}
	if err := h.step.Set(step); err != nil {
		return err
	}
	if err := h.dsCount.Set(dsCount); err != nil {
		return err
	}
	if err := h.arcCount.Set(arcCount); err != nil {
		return err
	}
	if err := h.lastUpdate.Set(0); err != nil {
		return err
	}
	return h.info.Set(info)
}

func (h header) validate() error {
	sig, err := h.signature.Get()
	if err != nil {
		return err
	}
	if sig != signature {
		return fmt.Errorf("rrd: %w: signature %q", ErrInvalidDefinition, sig)
	}
	return nil
}
