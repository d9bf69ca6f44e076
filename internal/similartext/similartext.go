// Copyright 2020-2021 Dolthub, Inc.
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

// Package similartext renders a "did you mean" suffix for an unknown
// name, picking whichever known names are closest by edit distance.
package similartext

import (
	"fmt"
	"sort"
	"strings"
)

// Find returns a rendered suggestion naming whichever entries of names
// are closest to word, or "" if word is empty or nothing is close
// enough to be a useful suggestion.
func Find(names []string, word string) string {
	if word == "" || len(names) == 0 {
		return ""
	}
	return render(closest(names, word))
}

// FindFromMap is Find over a map's keys, visited in sorted order so
// the result is deterministic.
func FindFromMap(names map[string]int, word string) string {
	if word == "" || len(names) == 0 {
		return ""
	}
	keys := make([]string, 0, len(names))
	for k := range names {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return render(closest(keys, word))
}

func closest(names []string, word string) []string {
	threshold := len(word)/2 + 1
	best := -1
	var out []string
	for _, name := range names {
		d := levenshtein(strings.ToLower(name), strings.ToLower(word))
		if d > threshold {
			continue
		}
		switch {
		case best == -1 || d < best:
			best = d
			out = []string{name}
		case d == best:
			out = append(out, name)
		}
	}
	return out
}

func render(matches []string) string {
	if len(matches) == 0 {
		return ""
	}
	return fmt.Sprintf(", maybe you mean %s?", strings.Join(matches, " or "))
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}
	prev := make([]int, lb+1)
	curr := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}
	for i := 1; i <= la; i++ {
		curr[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost
			m := del
			if ins < m {
				m = ins
			}
			if sub < m {
				m = sub
			}
			curr[j] = m
		}
		prev, curr = curr, prev
	}
	return prev[lb]
}
