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

package refdb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "ref.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seed(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, s.AddBacteria(ctx, Organism{ID: "b1", Name: "Escherichia coli", NCBIID: "NC_000913.3", TaxID: "562"}))
	require.NoError(t, s.AddBacteria(ctx, Organism{ID: "b2", Name: "Klebsiella pneumoniae"}))

	require.NoError(t, s.AddPhage(ctx, Organism{ID: "p1", Name: "T4", TaxID: "10665"}))
	require.NoError(t, s.AddPhage(ctx, Organism{ID: "p2", Name: "T7"}))
	require.NoError(t, s.AddPhage(ctx, Organism{ID: "p3", Name: "Lambda"}))

	require.NoError(t, s.Link(ctx, "b1", "p2", "strong"))
	require.NoError(t, s.Link(ctx, "b1", "p1", "strong"))
	require.NoError(t, s.SetStrongInfections(ctx, "b1", []string{"p2", " p1", "", "unknown", "p2"}))
}

func TestBacteria(t *testing.T) {
	s := testStore(t)
	seed(t, s)
	ctx := context.Background()

	b, err := s.Bacteria(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, &Organism{ID: "b1", Name: "Escherichia coli", NCBIID: "NC_000913.3", TaxID: "562"}, b)

	b, err = s.Bacteria(ctx, "b2")
	require.NoError(t, err)
	assert.Equal(t, NA, b.NCBIID)
	assert.Equal(t, NA, b.TaxID)

	_, err = s.Bacteria(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))

	b, err = s.BacteriaInfo(ctx, "missing")
	require.NoError(t, err)
	assert.Equal(t, &Organism{ID: "missing", Name: NA, NCBIID: NA, TaxID: NA}, b)
}

func TestPhagesForBacteria(t *testing.T) {
	s := testStore(t)
	seed(t, s)
	ctx := context.Background()

	phages, err := s.PhagesForBacteria(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, phages, 2)
	assert.Equal(t, "p2", phages[0].ID)
	assert.Equal(t, "T7", phages[0].Name)
	assert.Equal(t, "p1", phages[1].ID)
	assert.Equal(t, "10665", phages[1].TaxID)

	phages, err = s.PhagesForBacteria(ctx, "b2")
	require.NoError(t, err)
	assert.Empty(t, phages)

	require.NoError(t, s.SetStrongInfections(ctx, "b1", []string{"p3"}))
	phages, err = s.PhagesForBacteria(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, phages, 1)
	assert.Equal(t, "Lambda", phages[0].Name)
}

func TestBacteriaForPhage(t *testing.T) {
	s := testStore(t)
	seed(t, s)
	ctx := context.Background()

	id, err := s.BacteriaForPhage(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "b1", id)

	_, err = s.BacteriaForPhage(ctx, "p3")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSaveCase(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	c := &CaseReport{
		FileName:           "sample.fasta",
		GenomeLength:       "4641652",
		Name:               "Escherichia coli",
		CreatedAt:          time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		MostEffectivePhage: "T7",
		MatchEffectiveness: 99.95,
		MatchScore:         99.95,
		Matches100:         1,
		PhageMatches: []PhageMatch{
			{PhageName: "T7", Effectiveness: 99.95, MatchType: "100%", Recommended: true},
			{PhageName: "T4", Effectiveness: 99.95, MatchType: "100%"},
		},
	}
	id, err := s.SaveCase(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, id, c.ID)

	c2, err := s.Case(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, c.FileName, c2.FileName)
	assert.Equal(t, c.Name, c2.Name)
	assert.Equal(t, c.MostEffectivePhage, c2.MostEffectivePhage)
	assert.Equal(t, c.Matches100, c2.Matches100)
	assert.True(t, c.CreatedAt.Equal(c2.CreatedAt))
	assert.Equal(t, c.PhageMatches, c2.PhageMatches)

	_, err = s.Case(ctx, id+1)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSplitIDs(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, splitIDs(" a, b,,c ,a"))
	assert.Empty(t, splitIDs(""))
}
