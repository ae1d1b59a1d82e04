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
	"net/url"
	"testing"
)

func newCachingTestBackend(t *testing.T, size int64) *CachingBackend {
	t.Helper()
	uri, _ := url.Parse("memory://lru-test")
	under := NewMemoryBackend(uri, false)
	if err := under.SetLength(size); err != nil {
		t.Fatalf("SetLength: %v", err)
	}
	cb, err := NewCachingBackend(under, 16, 4)
	if err != nil {
		t.Fatalf("NewCachingBackend: %v", err)
	}
	return cb
}

func Test_CachingBackend_readMissThenHitReturnsSameBytes(t *testing.T) {
	cb := newCachingTestBackend(t, 64)
	want := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	if _, err := cb.WriteAt(want, 0); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}

	got := make([]byte, 8)
	if _, err := cb.ReadAt(got, 0); err != nil {
		t.Fatalf("ReadAt (miss): %v", err)
	}
	if string(got) != string(want) {
		t.Fatalf("ReadAt (miss) = %v, want %v", got, want)
	}

	got2 := make([]byte, 8)
	if _, err := cb.ReadAt(got2, 0); err != nil {
		t.Fatalf("ReadAt (hit): %v", err)
	}
	if string(got2) != string(want) {
		t.Fatalf("ReadAt (hit) = %v, want %v", got2, want)
	}
}

func Test_CachingBackend_writeInvalidatesCachedPage(t *testing.T) {
	cb := newCachingTestBackend(t, 64)
	if _, err := cb.WriteAt([]byte{1, 2, 3, 4}, 0); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}

	buf := make([]byte, 4)
	if _, err := cb.ReadAt(buf, 0); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if _, ok := cb.pages.Get(cacheKey(cb.pageFor(0))); !ok {
		t.Fatal("expected page to be cached after read")
	}

	if _, err := cb.WriteAt([]byte{9, 9, 9, 9}, 0); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	if _, ok := cb.pages.Get(cacheKey(cb.pageFor(0))); ok {
		t.Error("page should be invalidated after a write covering it")
	}

	got := make([]byte, 4)
	if _, err := cb.ReadAt(got, 0); err != nil {
		t.Fatalf("ReadAt after write: %v", err)
	}
	if string(got) != "\x09\x09\x09\x09" {
		t.Errorf("ReadAt after write = %v, want [9 9 9 9]", got)
	}
}

func Test_CachingBackend_setLengthPurgesCache(t *testing.T) {
	cb := newCachingTestBackend(t, 64)
	if _, err := cb.WriteAt([]byte{1, 2, 3, 4}, 0); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	buf := make([]byte, 4)
	if _, err := cb.ReadAt(buf, 0); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if cb.pages.Len() == 0 {
		t.Fatal("expected a cached page before SetLength")
	}
	if err := cb.SetLength(128); err != nil {
		t.Fatalf("SetLength: %v", err)
	}
	if cb.pages.Len() != 0 {
		t.Errorf("pages.Len() = %d after SetLength, want 0", cb.pages.Len())
	}
}
