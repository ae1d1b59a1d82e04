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

import "time"

func secondsToDuration(s int64) time.Duration {
	return time.Duration(s) * time.Second
}

func durationToSeconds(d time.Duration) int64 {
	return int64(d.Seconds())
}

func unixSeconds(t time.Time) int64 {
	return t.Unix()
}

func fromUnixSeconds(s int64) time.Time {
	return time.Unix(s, 0).UTC()
}
