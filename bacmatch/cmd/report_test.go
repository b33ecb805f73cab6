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

package cmd

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/quintx/bacmatch/bacmatch/matcher"
	"github.com/quintx/bacmatch/bacmatch/refdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"
)

func probableResult() *matcher.Result {
	return &matcher.Result{
		Query: matcher.Query{ID: "q1", Length: 1000},
		Hits:  9,
		Matches: []matcher.Match{
			{QueryID: "q1", SubjectID: "b1", Score: 98.5, Hits: 3, AlignedLength: 2400, StdIdentity: 0.5},
			{QueryID: "q1", SubjectID: "b2", Score: 97.25, Hits: 2, AlignedLength: 1200},
			{QueryID: "q1", SubjectID: "b3", Score: 96, Hits: 1, AlignedLength: 300},
			{QueryID: "q1", SubjectID: "b4", Score: 95, Hits: 1, AlignedLength: 300},
			{QueryID: "q1", SubjectID: "b5", Score: 94, Hits: 2, AlignedLength: 800},
		},
	}
}

func TestNewQueryReport(t *testing.T) {
	r := probableResult()

	qr := newQueryReport("a.fa", r, 4)
	require.Len(t, qr.Matches, 4)
	for i, m := range qr.Matches {
		assert.Equal(t, i+1, m.Rank)
		assert.Equal(t, r.Matches[i].SubjectID, m.Subject)
	}
	assert.Equal(t, "q1", qr.Query)
	assert.Equal(t, 1000, qr.QLen)
	assert.False(t, qr.Exact)

	qr = newQueryReport("a.fa", r, 0)
	assert.Len(t, qr.Matches, 5)

	// truncation in reports does not change the result
	assert.Len(t, r.Matches, 5)

	qr = newQueryReport("a.fa", &matcher.Result{Query: matcher.Query{ID: "q2", Length: 10}}, 4)
	assert.Empty(t, qr.Matches)
	assert.Nil(t, qr.caseReport())
}

func TestWriteTSV(t *testing.T) {
	var buf bytes.Buffer
	rw, err := newReportWriter(&buf, "tsv")
	require.NoError(t, err)

	require.NoError(t, rw.Write(newQueryReport("a.fa", probableResult(), 2)))
	require.NoError(t, rw.Write(newQueryReport("b.fa", &matcher.Result{Query: matcher.Query{ID: "q2", Length: 10}}, 2)))
	require.NoError(t, rw.Close())

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, strings.Join(tsvHeader, "\t"), lines[0])
	assert.Equal(t, "q1\t1000\tfalse\t1\tb1\t98.500\t3\t2400\t0.500\t\t\t\t", lines[1])
	assert.Equal(t, "q1\t1000\tfalse\t2\tb2\t97.250\t2\t1200\t0.000\t\t\t\t", lines[2])

	_, err = newReportWriter(&buf, "csv")
	assert.Error(t, err)
}

func TestWriteYAML(t *testing.T) {
	var buf bytes.Buffer
	rw, err := newReportWriter(&buf, "yaml")
	require.NoError(t, err)

	require.NoError(t, rw.Write(newQueryReport("a.fa", probableResult(), 3)))
	require.NoError(t, rw.Write(newQueryReport("b.fa", &matcher.Result{Query: matcher.Query{ID: "q2", Length: 10}}, 3)))
	require.NoError(t, rw.Close())

	dec := yaml.NewDecoder(&buf)
	var reports []QueryReport
	for {
		var qr QueryReport
		err = dec.Decode(&qr)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		reports = append(reports, qr)
	}

	require.Len(t, reports, 2)
	assert.Equal(t, "a.fa", reports[0].File)
	require.Len(t, reports[0].Matches, 3)
	assert.Equal(t, "b3", reports[0].Matches[2].Subject)
	assert.Equal(t, 96.0, reports[0].Matches[2].Score)
	assert.Equal(t, "q2", reports[1].Query)
	assert.Empty(t, reports[1].Matches)
}

func TestAnnotateAndSaveCase(t *testing.T) {
	ctx := context.Background()
	db, err := refdb.Open(filepath.Join(t.TempDir(), "ref.db"))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.AddBacteria(ctx, refdb.Organism{ID: "b1", Name: "Escherichia coli", NCBIID: "NC_000913.3", TaxID: "562"}))
	require.NoError(t, db.AddPhage(ctx, refdb.Organism{ID: "p1", Name: "T4"}))
	require.NoError(t, db.AddPhage(ctx, refdb.Organism{ID: "p2", Name: "T7"}))
	require.NoError(t, db.SetStrongInfections(ctx, "b1", []string{"p2", "p1"}))

	r := &matcher.Result{
		Query: matcher.Query{ID: "q1", Length: 1000},
		Exact: true,
		Hits:  2,
		Matches: []matcher.Match{
			{QueryID: "q1", SubjectID: "b1", Score: 100, Exact: true, Hits: 1, AlignedLength: 1000},
			{QueryID: "q1", SubjectID: "b9", Score: 99.95, Exact: true, Hits: 1, AlignedLength: 950},
		},
	}
	qr := newQueryReport("/tmp/sample.fasta", r, 4)
	require.NoError(t, qr.annotate(ctx, db))

	assert.Equal(t, "Escherichia coli", qr.Matches[0].Organism.Name)
	require.Len(t, qr.Matches[0].Phages, 2)
	assert.Equal(t, "T7", qr.Matches[0].Phages[0].Name)
	assert.Equal(t, refdb.NA, qr.Matches[1].Organism.Name)
	assert.Empty(t, qr.Matches[1].Phages)

	var buf bytes.Buffer
	require.NoError(t, qr.writeTSV(&buf))
	assert.True(t, strings.HasSuffix(strings.Split(buf.String(), "\n")[0], "\tEscherichia coli\tNC_000913.3\t562\tT7,T4"))

	c := qr.caseReport()
	require.NotNil(t, c)
	assert.Equal(t, "sample.fasta", c.FileName)
	assert.Equal(t, "1000", c.GenomeLength)
	assert.Equal(t, "Escherichia coli", c.Name)
	assert.Equal(t, "T7", c.MostEffectivePhage)
	assert.Equal(t, 1, c.Matches100)
	assert.Equal(t, 0, c.MatchesPartial)
	require.Len(t, c.PhageMatches, 2)
	assert.Equal(t, "100%", c.PhageMatches[0].MatchType)
	assert.True(t, c.PhageMatches[0].Recommended)

	id, err := db.SaveCase(ctx, c)
	require.NoError(t, err)

	saved, err := db.Case(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, c.Name, saved.Name)
	assert.Equal(t, c.PhageMatches, saved.PhageMatches)
}
