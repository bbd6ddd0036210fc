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

// Package similartext formats "did you mean" hints for bind errors by
// picking the known identifiers closest to an unresolved name.
package similartext

import (
	"fmt"
	"strings"

	"github.com/prometheusresearch/htsql-go/internal/text_distance"
)

// Find returns a ", maybe you mean X?" suffix naming the names closest to
// name: every name tied at the smallest edit distance, provided that
// distance is at most half the longer of the two lengths. It returns "" if
// no name is close enough.
func Find(names []string, name string) string {
	return format(Rank(names, name))
}

// Rank returns the same closest names Find reports, in the order they
// appear in names, or nil if none are close enough. Used directly by
// callers (core/tr/bind's unresolved-attribute diagnostic) that need the
// candidate list itself rather than a formatted sentence.
func Rank(names []string, name string) []string {
	if len(names) == 0 || name == "" {
		return nil
	}
	return closest(names, name)
}

// FindFromMap is Find over the keys of names.
func FindFromMap(names map[string]int, name string) string {
	if len(names) == 0 || name == "" {
		return ""
	}
	keys := make([]string, 0, len(names))
	for n := range names {
		keys = append(keys, n)
	}
	return format(closest(keys, name))
}

func closest(names []string, name string) []string {
	var best []string
	bestDist := -1
	for _, n := range names {
		d := text_distance.Distance(name, n)
		threshold := maxLen(name, n) / 2
		if d > threshold {
			continue
		}
		switch {
		case bestDist == -1 || d < bestDist:
			bestDist = d
			best = []string{n}
		case d == bestDist:
			best = append(best, n)
		}
	}
	return best
}

func format(names []string) string {
	if len(names) == 0 {
		return ""
	}
	return fmt.Sprintf(", maybe you mean %s?", strings.Join(names, " or "))
}

func maxLen(a, b string) int {
	la, lb := len([]rune(a)), len([]rune(b))
	if la > lb {
		return la
	}
	return lb
}
