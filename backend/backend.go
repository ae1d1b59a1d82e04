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

// Package backend implements the byte-addressable storage collaborator
// that the rrd core reads and writes through. The core never assumes
// anything about a Backend beyond this contract: given an offset and a
// width, it can be read and written, and its total length can be fixed
// up front at creation time.
package backend

import "net/url"

// Backend is a byte-addressable random-access store identified by a URI.
// Implementations are not required to be safe for concurrent use; the rrd
// core serializes access to a single Backend with its own guard.
type Backend interface {
	// SetLength grows or truncates the backend to exactly n bytes. Called
	// once, right after Open, when creating a new database.
	SetLength(n int64) error

	// ReadAt reads len(p) bytes starting at offset off into p.
	ReadAt(p []byte, off int64) (int, error)

	// WriteAt writes p to the backend starting at offset off.
	WriteAt(p []byte, off int64) (int, error)

	// ReadAll returns the entire backend content.
	ReadAll() ([]byte, error)

	// Close releases any resources held by the backend. Idempotent.
	Close() error

	// Path returns a filesystem-style canonical path for this backend, or
	// the empty string if the backend has no such notion (e.g. memory).
	Path() string

	// URI returns the identity this backend was opened with.
	URI() *url.URL
}

// Factory creates and locates Backend instances for a given URI scheme.
type Factory interface {
	// Name identifies this factory in the registry (e.g. "MEMORY", "FILE").
	Name() string

	// Open creates or opens the backend named by uri. readOnly must be
	// honored by WriteAt/SetLength (both should fail against a read-only
	// backend).
	Open(uri *url.URL, readOnly bool) (Backend, error)

	// Exists reports whether uri already names a backend this factory can
	// open, without creating anything.
	Exists(uri *url.URL) bool

	// ShouldValidateHeader reports whether Database.Open should check the
	// on-disk signature after opening a backend from this factory. File
	// and network backends normally want this; a freshly-created in-memory
	// backend never needs it.
	ShouldValidateHeader(uri *url.URL) bool
}
