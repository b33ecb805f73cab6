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
	"sort"

	"github.com/quintx/bacmatch/bacmatch/hits"
	"gonum.org/v1/gonum/stat"
)

// Aggregate is the identity of all hits of one (query, subject) pair.
type Aggregate struct {
	QueryID   string
	SubjectID string

	Hits             int     // number of hits
	WeightedIdentity float64 // sum of pident * length
	AlignedLength    int     // sum of length

	AvgIdentity float64 // WeightedIdentity / AlignedLength
	StdIdentity float64 // length-weighted population standard deviation of pident
}

type pairKey struct {
	query, subject string
}

// accumulator sums up the hits of one pair.
type accumulator struct {
	agg     Aggregate
	pidents []float64
	lengths []float64
}

// AggregateHits computes the length-weighted average identity of each
// (query, subject) pair with hits. A long alignment with moderate identity
// outweighs a short one with high identity.
//
// The result is sorted in descending order of average identity,
// pairs with equal values keep the order they first appear.
func AggregateHits(t *hits.Table) []Aggregate {
	idx := make(map[pairKey]int, 64)
	accs := make([]*accumulator, 0, 64)

	var h hits.Hit
	var key pairKey
	var i int
	var ok bool
	var acc *accumulator
	for j := 0; j < t.Len(); j++ {
		h = t.At(j)
		key = pairKey{h.QueryID, h.SubjectID}
		if i, ok = idx[key]; !ok {
			i = len(accs)
			idx[key] = i
			accs = append(accs, &accumulator{
				agg:     Aggregate{QueryID: h.QueryID, SubjectID: h.SubjectID},
				pidents: make([]float64, 0, 4),
				lengths: make([]float64, 0, 4),
			})
		}

		acc = accs[i]
		acc.agg.Hits++
		acc.agg.WeightedIdentity += h.PIdent * float64(h.Length)
		acc.agg.AlignedLength += h.Length
		acc.pidents = append(acc.pidents, h.PIdent)
		acc.lengths = append(acc.lengths, float64(h.Length))
	}

	aggs := make([]Aggregate, len(accs))
	for i, acc = range accs {
		// AlignedLength > 0 as hits have positive lengths.
		acc.agg.AvgIdentity = acc.agg.WeightedIdentity / float64(acc.agg.AlignedLength)
		if acc.agg.Hits > 1 {
			_, acc.agg.StdIdentity = stat.PopMeanStdDev(acc.pidents, acc.lengths)
		}
		aggs[i] = acc.agg
	}

	sort.SliceStable(aggs, func(i, j int) bool {
		return aggs[i].AvgIdentity > aggs[j].AvgIdentity
	})
	return aggs
}
