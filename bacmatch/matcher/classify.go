// Copyright © 2024-2025 The bacmatch Authors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package matcher

import (
	"github.com/quintx/bacmatch/bacmatch/hits"
)

// Match is a candidate reference subject of a query.
type Match struct {
	QueryID   string
	SubjectID string

	// Score is the percent identity of the hit for exact matches,
	// or the length-weighted average identity for probable matches.
	Score float64
	Exact bool

	Hits          int     // 1 for exact matches
	AlignedLength int     // length of the hit, or sum of lengths for probable matches
	StdIdentity   float64 // 0 for exact matches
}

// HasExactMatch tells whether any hit is an exact match for a query of qlen bases.
func (th Thresholds) HasExactMatch(t *hits.Table, qlen int) bool {
	for i := 0; i < t.Len(); i++ {
		h := t.At(i)
		if th.IsExact(&h, qlen) {
			return true
		}
	}
	return false
}

// ExactMatches returns all hits being exact matches, in input order.
// Hits are not deduplicated, a subject may appear more than once.
func (th Thresholds) ExactMatches(t *hits.Table, qlen int) *hits.Table {
	return t.Filter(func(h *hits.Hit) bool {
		return th.IsExact(h, qlen)
	})
}

// Select returns probable matches with average identity >= highProb,
// keeping the order of aggs. All of them are returned, no truncation.
func Select(aggs []Aggregate, highProb float64) []Match {
	ms := make([]Match, 0, len(aggs))
	for _, a := range aggs {
		if a.AvgIdentity >= highProb {
			ms = append(ms, Match{
				QueryID:   a.QueryID,
				SubjectID: a.SubjectID,
				Score:     a.AvgIdentity,
				Exact:     false,

				Hits:          a.Hits,
				AlignedLength: a.AlignedLength,
				StdIdentity:   a.StdIdentity,
			})
		}
	}
	return ms
}

// exactMatches converts exact hits to matches.
func exactMatches(t *hits.Table) []Match {
	ms := make([]Match, t.Len())
	for i := range ms {
		h := t.At(i)
		ms[i] = Match{
			QueryID:   h.QueryID,
			SubjectID: h.SubjectID,
			Score:     h.PIdent,
			Exact:     true,

			Hits:          1,
			AlignedLength: h.Length,
		}
	}
	return ms
}
