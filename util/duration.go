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
	"fmt"
	"strconv"
	"strings"
	"time"
)

// period is an ISO-8601 duration such as P1D or PT6H. Calendar parts are
// applied with AddDate, so P1M from Jan 31 lands on Mar 3 (or Mar 2).
type period struct {
	years, months, days int
	clock               time.Duration
}

func isDuration(s string) bool {
	return strings.HasPrefix(s, "P")
}

// parseDuration parses P[nY][nM][nW][nD][T[nH][nM][nS]]. Only the seconds
// part may carry a fraction.
func parseDuration(s string) (period, error) {
	var (
		p      period
		inTime bool
		digits strings.Builder
		parts  int
	)
	if !isDuration(s) || len(s) < 3 {
		return p, fmt.Errorf("invalid duration %q", s)
	}

	for _, r := range s[1:] {
		switch {
		case r >= '0' && r <= '9', r == '.':
			digits.WriteRune(r)
			continue
		case r == 'T':
			if inTime || digits.Len() > 0 {
				return p, fmt.Errorf("invalid duration %q", s)
			}
			inTime = true
			continue
		}

		num := digits.String()
		digits.Reset()
		if num == "" {
			return p, fmt.Errorf("invalid duration %q", s)
		}
		parts++

		if inTime && r == 'S' {
			secs, err := strconv.ParseFloat(num, 64)
			if err != nil {
				return p, fmt.Errorf("invalid duration %q: %s", s, err)
			}
			p.clock += time.Duration(secs * float64(time.Second))
			continue
		}
		n, err := strconv.Atoi(num)
		if err != nil {
			return p, fmt.Errorf("invalid duration %q: %s", s, err)
		}
		switch {
		case !inTime && r == 'Y':
			p.years += n
		case !inTime && r == 'M':
			p.months += n
		case !inTime && r == 'W':
			p.days += 7 * n
		case !inTime && r == 'D':
			p.days += n
		case inTime && r == 'H':
			p.clock += time.Duration(n) * time.Hour
		case inTime && r == 'M':
			p.clock += time.Duration(n) * time.Minute
		default:
			return p, fmt.Errorf("invalid duration %q: unknown designator %q", s, r)
		}
	}
	if digits.Len() > 0 || parts == 0 || strings.HasSuffix(s, "T") {
		return p, fmt.Errorf("invalid duration %q", s)
	}
	return p, nil
}

func (p period) addTo(t time.Time) time.Time {
	return t.AddDate(p.years, p.months, p.days).Add(p.clock)
}

func (p period) subFrom(t time.Time) time.Time {
	return t.Add(-p.clock).AddDate(-p.years, -p.months, -p.days)
}
