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

// allocator hands out non-overlapping byte ranges within a backend,
// growing a monotonic cursor as each component (header, datasources,
// archives) claims its fixed-width region in declaration order. It never
// shrinks or reuses a range; the final cursor value is the image's total
// length and is passed to Backend.SetLength.
type allocator struct {
	cursor int64
}

func newAllocator() *allocator {
	return &allocator{}
}

// allocate reserves width bytes starting at the current cursor and
// returns that starting offset.
func (a *allocator) allocate(width int64) int64 {
	off := a.cursor
	a.cursor += width
	return off
}

// size returns the total number of bytes allocated so far.
func (a *allocator) size() int64 {
	return a.cursor
}
