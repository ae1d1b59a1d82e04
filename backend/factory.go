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

package backend

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
)

var (
	registryMu sync.Mutex
	registry   = map[string]Factory{
		"MEMORY": MemoryFactory{},
		"FILE":   FileFactory{},
	}

	defaultMu      sync.Mutex
	defaultName    = "FILE"
	defaultLocked  bool
)

// RegisterFactory adds (or replaces) a named factory in the process-wide
// registry. Safe to call before any database is created.
func RegisterFactory(f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[strings.ToUpper(f.Name())] = f
}

// FindFactory returns the registered factory whose name matches the URI
// scheme (case-insensitively), or the default factory if uri has no
// scheme.
func FindFactory(uri *url.URL) (Factory, error) {
	registryMu.Lock()
	defer registryMu.Unlock()
	name := strings.ToUpper(uri.Scheme)
	defName := currentDefaultName()
	if name == "" {
		name = defName
	}
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFactory, name)
	}
	return f, nil
}

// SetDefaultFactory sets the process-wide default backend factory used
// for URIs with no scheme. It may be called only before the first
// database in the process is created; once a factory has been resolved
// via FindFactory, the default is locked, matching the "immutable once
// the first database exists" design note.
//
// Acquires registryMu before defaultMu, the same order FindFactory takes
// via currentDefaultName, so the two never deadlock against each other.
func SetDefaultFactory(name string) error {
	registryMu.Lock()
	defer registryMu.Unlock()
	_, ok := registry[strings.ToUpper(name)]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownFactory, name)
	}

	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLocked {
		return fmt.Errorf("backend: default factory already locked to %q", defaultName)
	}
	defaultName = strings.ToUpper(name)
	return nil
}

// currentDefaultName must be called with registryMu already held, matching
// FindFactory's lock order.
func currentDefaultName() string {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLocked = true
	return defaultName
}

// BuildGenericURI turns a plain filesystem path into a "file"-scheme URI,
// the default interpretation for a relative or unscheme'd path.
func BuildGenericURI(path string) *url.URL {
	return &url.URL{Scheme: "file", Path: path}
}

// ParseURI parses s as a URI; a bare path with no "scheme://" prefix is
// treated as a filesystem path for the FILE factory.
func ParseURI(s string) (*url.URL, error) {
	if !strings.Contains(s, "://") {
		return BuildGenericURI(s), nil
	}
	return url.Parse(s)
}
