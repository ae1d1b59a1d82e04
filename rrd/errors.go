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

import "errors"

// Sentinel errors, one per failure condition a caller may need to
// discriminate programmatically. Wrap these with fmt.Errorf("...: %w", ...)
// for context; unwrap with errors.Is.
var (
	ErrNotFound          = errors.New("rrd: backend URI not found")
	ErrIOFailure         = errors.New("rrd: backend I/O failure")
	ErrInvalidDefinition = errors.New("rrd: invalid definition")
	ErrInvalidTimestamp  = errors.New("rrd: sample timestamp not after last update time")
	ErrUnknownDatasource = errors.New("rrd: unknown datasource")
	ErrUnknownArchive    = errors.New("rrd: unknown archive")
	ErrNoMatchingArchive = errors.New("rrd: no matching archive")
	ErrClosed            = errors.New("rrd: database is closed")
	ErrIncompatibleCopy  = errors.New("rrd: copy target is not a compatible database")
)
