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

// Package matcher identifies the reference organisms a query sequence
// most likely belongs to, from the hits of an external aligner.
//
// A query is first checked for exact matches, i.e., single hits with
// percent identity >= Thresholds.ExactMatch and covering at least
// Thresholds.MatchLen of the query. If there are none, hits of each
// subject are aggregated into a length-weighted average identity,
// and subjects with values >= Thresholds.HighProb are probable matches.
package matcher

import (
	"context"

	"github.com/pkg/errors"
	"github.com/quintx/bacmatch/bacmatch/hits"
)

// Aligner aligns a query sequence file against a reference database.
// *align.Runner implements it.
type Aligner interface {
	Align(ctx context.Context, queryFile string) (*hits.Table, error)
}

// Matcher classifies query sequences. Thresholds are fixed at creation,
// and a Matcher is safe for concurrent use if its Aligner is.
type Matcher struct {
	aligner Aligner
	th      Thresholds
}

// New creates a Matcher after validating the thresholds.
func New(aligner Aligner, th Thresholds) (*Matcher, error) {
	if aligner == nil {
		return nil, errors.New("aligner not given")
	}
	if err := th.Validate(); err != nil {
		return nil, err
	}
	return &Matcher{aligner: aligner, th: th}, nil
}

// Thresholds returns the thresholds in use.
func (m *Matcher) Thresholds() Thresholds { return m.th }

// Result is the classification of one query.
type Result struct {
	Query Query

	// Exact is true if exact matches were found, Matches are then
	// the exact hits. Otherwise Matches are the probable matches.
	Exact   bool
	Matches []Match

	Hits       int         // number of hits from the aligner
	Aggregates []Aggregate // all aggregates, only for probable matches
}

// Found tells whether there's any match.
func (r *Result) Found() bool { return len(r.Matches) > 0 }

// Match runs the whole pipeline for a query file. It fails without a partial
// result if the query is empty or the aligner fails.
// No matches is not an error, but a Result with empty Matches.
func (m *Matcher) Match(ctx context.Context, queryFile string) (*Result, error) {
	q, err := ReadQuery(queryFile)
	if err != nil {
		return nil, err
	}

	t, err := m.aligner.Align(ctx, queryFile)
	if err != nil {
		return nil, err
	}

	r := m.Classify(t, q.Length)
	r.Query = *q
	return r, nil
}

// Classify classifies hits of a query with qlen bases.
func (m *Matcher) Classify(t *hits.Table, qlen int) *Result {
	return Classify(t, qlen, m.th)
}

// Classify classifies hits of a query with qlen bases.
// Exact matches are returned if there are any, otherwise probable matches.
func Classify(t *hits.Table, qlen int, th Thresholds) *Result {
	r := &Result{
		Query: Query{Length: qlen},
		Hits:  t.Len(),
	}

	if th.HasExactMatch(t, qlen) {
		r.Exact = true
		r.Matches = exactMatches(th.ExactMatches(t, qlen))
		return r
	}

	r.Aggregates = AggregateHits(t)
	r.Matches = Select(r.Aggregates, th.HighProb)
	return r
}
