// Copyright 2023 The CubeFS Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

package util

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

const intervalLayout = "2006-01-02T15:04:05.000Z07:00"

var instantLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000Z0700",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// ParseInterval parses an ISO-8601 interval of the form "start/end",
// "start/duration" or "duration/end".
func ParseInterval(s string) (Interval, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 2 {
		return Interval{}, fmt.Errorf("invalid interval %q", s)
	}

	var (
		start, end time.Time
		err        error
	)
	switch {
	case isDuration(parts[0]) && isDuration(parts[1]):
		return Interval{}, fmt.Errorf("invalid interval %q: no instant", s)
	case isDuration(parts[0]):
		if end, err = parseInstant(parts[1]); err != nil {
			return Interval{}, err
		}
		d, err := parseDuration(parts[0])
		if err != nil {
			return Interval{}, err
		}
		start = d.subFrom(end)
	case isDuration(parts[1]):
		if start, err = parseInstant(parts[0]); err != nil {
			return Interval{}, err
		}
		d, err := parseDuration(parts[1])
		if err != nil {
			return Interval{}, err
		}
		end = d.addTo(start)
	default:
		if start, err = parseInstant(parts[0]); err != nil {
			return Interval{}, err
		}
		if end, err = parseInstant(parts[1]); err != nil {
			return Interval{}, err
		}
	}
	if end.Before(start) {
		return Interval{}, fmt.Errorf("invalid interval %q: end before start", s)
	}
	return Interval{Start: start, End: end}, nil
}

// MustParseInterval is ParseInterval for literals, it panics on error.
func MustParseInterval(s string) Interval {
	in, err := ParseInterval(s)
	if err != nil {
		panic(err)
	}
	return in
}

func parseInstant(s string) (time.Time, error) {
	for _, layout := range instantLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid instant %q", s)
}

func (in Interval) String() string {
	return in.Start.UTC().Format(intervalLayout) + "/" + in.End.UTC().Format(intervalLayout)
}

// Overlaps reports whether the two intervals share an instant or abut.
func (in Interval) Overlaps(o Interval) bool {
	return !in.Start.After(o.End) && !o.Start.After(in.End)
}

// Union returns the bounding span of both intervals. Gaps between disjoint
// inputs are covered.
func (in Interval) Union(o Interval) Interval {
	ret := in
	if o.Start.Before(ret.Start) {
		ret.Start = o.Start
	}
	if o.End.After(ret.End) {
		ret.End = o.End
	}
	return ret
}

func (in Interval) MarshalJSON() ([]byte, error) {
	return json.Marshal(in.String())
}

func (in *Interval) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseInterval(s)
	if err != nil {
		return err
	}
	*in = parsed
	return nil
}

// MergeLoad folds a newly loaded interval into the existing coverage and
// returns a single bounding interval.
func MergeLoad(existing []Interval, loaded Interval) []Interval {
	ret := loaded
	for _, in := range existing {
		ret = ret.Union(in)
	}
	return []Interval{ret}
}

// Coalesce sorts intervals by start and merges overlapping or adjacent ones.
func Coalesce(intervals []Interval) []Interval {
	if len(intervals) == 0 {
		return nil
	}
	sorted := make([]Interval, len(intervals))
	copy(sorted, intervals)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	ret := []Interval{sorted[0]}
	for _, in := range sorted[1:] {
		last := &ret[len(ret)-1]
		if last.Overlaps(in) {
			*last = last.Union(in)
			continue
		}
		ret = append(ret, in)
	}
	return ret
}
