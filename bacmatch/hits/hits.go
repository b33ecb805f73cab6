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

// Package hits holds the typed rows of BLAST tabular output (-outfmt 6)
// and the grouping operations needed to classify them.
package hits

import (
	"sort"
)

// NumColumns is the number of columns of the BLAST tabular format:
//
//	qseqid sseqid pident length mismatch gapopen qstart qend sstart send evalue bitscore
const NumColumns = 12

// Hit is one local alignment between a query and a reference subject.
type Hit struct {
	QueryID   string
	SubjectID string

	PIdent   float64 // percentage of identical matches, 0-100
	Length   int     // alignment length
	Mismatch int
	GapOpen  int

	QStart int
	QEnd   int
	SStart int
	SEnd   int

	EValue   float64
	BitScore float64
}

// Table is an ordered collection of hits from one alignment run.
// Operations on a Table never modify it.
type Table struct {
	hits []Hit
}

// NewTable creates a Table from hits, the slice is copied.
func NewTable(hits []Hit) *Table {
	t := &Table{hits: make([]Hit, len(hits))}
	copy(t.hits, hits)
	return t
}

// Len returns the number of hits.
func (t *Table) Len() int { return len(t.hits) }

// At returns the i-th hit.
func (t *Table) At(i int) Hit { return t.hits[i] }

// Hits returns a copy of all hits in input order.
func (t *Table) Hits() []Hit {
	hs := make([]Hit, len(t.hits))
	copy(hs, t.hits)
	return hs
}

// Filter returns a new Table with the hits satisfying pred, in input order.
func (t *Table) Filter(pred func(h *Hit) bool) *Table {
	hs := make([]Hit, 0, len(t.hits))
	for i := range t.hits {
		if pred(&t.hits[i]) {
			hs = append(hs, t.hits[i])
		}
	}
	return &Table{hits: hs}
}

// Group is the hits of one subject.
type Group struct {
	SubjectID string
	Hits      []Hit
}

// GroupBySubject partitions hits by subject. Groups are returned in the order
// their subjects first appear, and hits keep their input order in each group.
func (t *Table) GroupBySubject() []Group {
	idx := make(map[string]int, 64)
	groups := make([]Group, 0, 64)
	var i int
	var ok bool
	for _, h := range t.hits {
		if i, ok = idx[h.SubjectID]; !ok {
			i = len(groups)
			idx[h.SubjectID] = i
			groups = append(groups, Group{SubjectID: h.SubjectID, Hits: make([]Hit, 0, 4)})
		}
		groups[i].Hits = append(groups[i].Hits, h)
	}
	return groups
}

// LongestPerSubject returns, for each subject, the hit with the longest alignment.
// For equal lengths the first one in input order wins.
// The result is sorted in descending order of percent identity,
// subjects with equal identity keep the order they first appear.
func (t *Table) LongestPerSubject() *Table {
	groups := t.GroupBySubject()
	hs := make([]Hit, 0, len(groups))
	var best int
	for _, g := range groups {
		best = 0
		for j := 1; j < len(g.Hits); j++ {
			if g.Hits[j].Length > g.Hits[best].Length {
				best = j
			}
		}
		hs = append(hs, g.Hits[best])
	}

	sort.SliceStable(hs, func(i, j int) bool {
		return hs[i].PIdent > hs[j].PIdent
	})
	return &Table{hits: hs}
}

// Subjects returns distinct subject IDs in the order they first appear.
func (t *Table) Subjects() []string {
	seen := make(map[string]struct{}, 64)
	ids := make([]string, 0, 64)
	var ok bool
	for _, h := range t.hits {
		if _, ok = seen[h.SubjectID]; !ok {
			seen[h.SubjectID] = struct{}{}
			ids = append(ids, h.SubjectID)
		}
	}
	return ids
}
