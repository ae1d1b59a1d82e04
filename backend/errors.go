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

import "errors"

var (
	// ErrClosed is returned by any operation on a backend after Close.
	ErrClosed = errors.New("backend: closed")
	// ErrNotFound is returned by a Factory.Open(readOnly=true) call
	// against a URI that does not yet exist.
	ErrNotFound = errors.New("backend: not found")
	// ErrUnknownFactory is returned when no registered factory can
	// handle a URI's scheme.
	ErrUnknownFactory = errors.New("backend: no factory for scheme")
)
