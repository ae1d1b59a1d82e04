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

package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	sanitizeRegexSpace       = regexp.MustCompile(`\s+`)
	sanitizeRegexSlash       = regexp.MustCompile("/")
	sanitizeRegexNonAlphaNum = regexp.MustCompile(`[^a-zA-Z_\-0-9\.]`)
)

// sanitizeDsName replaces runs of whitespace with an underscore and each
// slash with a dash, then strips anything but alphanumerics, dot, dash
// and underscore from a datasource name parsed out of a TOML config, so user-supplied names can't collide with the fixed 20-byte
// on-disk name cell in surprising ways.
func sanitizeDsName(name string) string {
	name = sanitizeRegexSpace.ReplaceAllString(name, "_")
	name = sanitizeRegexSlash.ReplaceAllString(name, "-")
	return sanitizeRegexNonAlphaNum.ReplaceAllString(name, "")
}

// parseDuration extends time.ParseDuration with the rrdtool-style
// suffixes a TOML span like "1w" or "1y" needs: d (day), w (week), y
// (year, 8760h), mon (30-day month), min and hour as long-form aliases
// for m and h. A bare integer with no unit is read as seconds.
func parseDuration(s string) (time.Duration, error) {
	if strings.HasSuffix(s, "min") {
		s = s[:len(s)-2] // min -> m
	} else if strings.HasSuffix(s, "hour") {
		s = s[:len(s)-3] // hour -> h
	} else if strings.HasSuffix(s, "mon") {
		fd, err := strconv.ParseFloat(s[:len(s)-3], 64)
		if err != nil {
			return 0, err
		}
		s = fmt.Sprintf("%vh", fd*30*24)
	}

	d, err := time.ParseDuration(s)
	if err == nil {
		return d, nil
	}
	if secs, serr := strconv.ParseInt(s, 10, 64); serr == nil {
		return time.Duration(secs) * time.Second, nil
	}
	if !strings.HasPrefix(err.Error(), "time: unknown unit ") {
		return 0, err
	}
	n, perr := strconv.ParseInt(s[:len(s)-1], 10, 64)
	if perr != nil {
		return 0, err
	}
	switch {
	case strings.HasPrefix(err.Error(), "time: unknown unit \"d\""), strings.Contains(err.Error(), "unit d in"):
		return time.Duration(n*24) * time.Hour, nil
	case strings.HasPrefix(err.Error(), "time: unknown unit \"w\""), strings.Contains(err.Error(), "unit w in"):
		return time.Duration(n*168) * time.Hour, nil
	case strings.HasPrefix(err.Error(), "time: unknown unit \"y\""), strings.Contains(err.Error(), "unit y in"):
		return time.Duration(n*8760) * time.Hour, nil
	default:
		return 0, err
	}
}
