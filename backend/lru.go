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
	"sync"

	lru "github.com/hashicorp/golang-lru"
)

const defaultPageCacheSize = 4096

// CachingBackend wraps another Backend with an LRU cache of fixed-size
// pages, so repeated reads of the same header/archive region (as happens
// during a burst of Fetch calls against recent data) don't round-trip
// through the underlying backend every time. Writes invalidate the pages
// they touch rather than updating them in place, keeping the cache
// strictly a read accelerator.
type CachingBackend struct {
	mu       sync.Mutex
	under    Backend
	pages    *lru.Cache
	pageSize int64
}

type cacheKey int64

// NewCachingBackend wraps under with an LRU page cache holding up to
// maxPages pages of pageSize bytes each. Grounded on dsl's ds_lru.go use
// of hashicorp/golang-lru with an eviction callback; here eviction is a
// no-op since pages hold no resources beyond memory.
func NewCachingBackend(under Backend, pageSize int64, maxPages int) (*CachingBackend, error) {
	if pageSize <= 0 {
		pageSize = 512
	}
	if maxPages <= 0 {
		maxPages = defaultPageCacheSize
	}
	c, err := lru.New(maxPages)
	if err != nil {
		return nil, fmt.Errorf("backend: new page cache: %w", err)
	}
	return &CachingBackend{under: under, pages: c, pageSize: pageSize}, nil
}

func (cb *CachingBackend) pageFor(off int64) int64 {
	return off / cb.pageSize
}

func (cb *CachingBackend) invalidateRange(off int64, n int) {
	first := cb.pageFor(off)
	last := cb.pageFor(off + int64(n) - 1)
	for p := first; p <= last; p++ {
		cb.pages.Remove(cacheKey(p))
	}
}

func (cb *CachingBackend) SetLength(n int64) error {
	cb.mu.Lock()
	cb.pages.Purge()
	cb.mu.Unlock()
	return cb.under.SetLength(n)
}

func (cb *CachingBackend) ReadAt(p []byte, off int64) (int, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	pn := cb.pageFor(off)
	pageStart := pn * cb.pageSize
	var page []byte
	if v, ok := cb.pages.Get(cacheKey(pn)); ok {
		page = v.([]byte)
	} else {
		buf := make([]byte, cb.pageSize)
		n, err := cb.under.ReadAt(buf, pageStart)
		if err != nil && n == 0 {
			return 0, err
		}
		page = buf[:n]
		cb.pages.Add(cacheKey(pn), page)
	}

	start := off - pageStart
	if start < 0 || start > int64(len(page)) {
		// Requested range does not fit in a single cached page; fall
		// back to the underlying backend directly.
		return cb.under.ReadAt(p, off)
	}
	n := copy(p, page[start:])
	if n < len(p) {
		return cb.under.ReadAt(p, off)
	}
	return n, nil
}

func (cb *CachingBackend) WriteAt(p []byte, off int64) (int, error) {
	n, err := cb.under.WriteAt(p, off)
	if err != nil {
		return n, err
	}
	cb.mu.Lock()
	cb.invalidateRange(off, len(p))
	cb.mu.Unlock()
	return n, nil
}

func (cb *CachingBackend) ReadAll() ([]byte, error) {
	return cb.under.ReadAll()
}

func (cb *CachingBackend) Close() error {
	cb.mu.Lock()
	cb.pages.Purge()
	cb.mu.Unlock()
	return cb.under.Close()
}

func (cb *CachingBackend) Path() string  { return cb.under.Path() }
func (cb *CachingBackend) URI() *url.URL { return cb.under.URI() }
