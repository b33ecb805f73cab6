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
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/quintx/bacmatch/bacmatch/matcher"
	"github.com/quintx/bacmatch/bacmatch/refdb"
	"go.yaml.in/yaml/v3"
)

// QueryReport is the report of a query.
type QueryReport struct {
	File  string `yaml:"file"`
	Query string `yaml:"query"`
	QLen  int    `yaml:"qlen"`
	Hits  int    `yaml:"hits"`
	Exact bool   `yaml:"exact"`

	Matches []*MatchReport `yaml:"matches"`
}

// MatchReport is a ranked match, with optional annotations from the reference database.
type MatchReport struct {
	Rank          int     `yaml:"rank"`
	Subject       string  `yaml:"subject"`
	Score         float64 `yaml:"score"`
	Hits          int     `yaml:"hits"`
	AlignedLength int     `yaml:"aligned_length"`
	PIdentSD      float64 `yaml:"pident_sd"`

	Organism *refdb.Organism  `yaml:"organism,omitempty"`
	Phages   []refdb.Organism `yaml:"phages,omitempty"`
}

// newQueryReport creates a report with the top n matches (0 for all).
func newQueryReport(file string, r *matcher.Result, topN int) *QueryReport {
	ms := r.Matches
	if topN > 0 && len(ms) > topN {
		ms = ms[:topN]
	}

	qr := &QueryReport{
		File:  file,
		Query: r.Query.ID,
		QLen:  r.Query.Length,
		Hits:  r.Hits,
		Exact: r.Exact,

		Matches: make([]*MatchReport, len(ms)),
	}
	for i, m := range ms {
		qr.Matches[i] = &MatchReport{
			Rank:          i + 1,
			Subject:       m.SubjectID,
			Score:         m.Score,
			Hits:          m.Hits,
			AlignedLength: m.AlignedLength,
			PIdentSD:      m.StdIdentity,
		}
	}
	return qr
}

// annotate fills organism information and phages of each match.
func (qr *QueryReport) annotate(ctx context.Context, db *refdb.Store) error {
	var err error
	for _, m := range qr.Matches {
		if m.Organism, err = db.BacteriaInfo(ctx, m.Subject); err != nil {
			return err
		}
		if m.Phages, err = db.PhagesForBacteria(ctx, m.Subject); err != nil {
			return err
		}
	}
	return nil
}

// caseReport summarizes the top match as a case report.
// It returns nil if there's no match.
func (qr *QueryReport) caseReport() *refdb.CaseReport {
	if len(qr.Matches) == 0 {
		return nil
	}
	top := qr.Matches[0]

	c := &refdb.CaseReport{
		FileName:     filepath.Base(qr.File),
		GenomeLength: strconv.Itoa(qr.QLen),
		Name:         "Unknown",

		MostEffectivePhage: "None",
		MatchEffectiveness: top.Score,
		MatchScore:         top.Score,
	}
	if top.Organism != nil && top.Organism.Name != refdb.NA {
		c.Name = top.Organism.Name
	}
	if len(top.Phages) > 0 {
		c.MostEffectivePhage = top.Phages[0].Name
	}

	matchType := "Partial"
	if qr.Exact {
		c.Matches100 = 1
		matchType = "100%"
	} else {
		c.MatchesPartial = 1
	}
	for _, p := range top.Phages {
		c.PhageMatches = append(c.PhageMatches, refdb.PhageMatch{
			PhageName:     p.Name,
			Effectiveness: top.Score,
			MatchType:     matchType,
			Recommended:   qr.Exact,
		})
	}
	return c
}

var tsvHeader = []string{"query", "qlen", "exact", "rank", "subject", "score", "hits", "alen", "pidentSD",
	"name", "ncbi_id", "tax_id", "phages"}

func writeTSVHeader(w io.Writer) error {
	_, err := fmt.Fprintln(w, strings.Join(tsvHeader, "\t"))
	return err
}

// writeTSV writes one line per match. Queries without matches output nothing.
func (qr *QueryReport) writeTSV(w io.Writer) error {
	var name, ncbi, taxid, phages string
	var err error
	for _, m := range qr.Matches {
		if m.Organism != nil {
			name, ncbi, taxid = m.Organism.Name, m.Organism.NCBIID, m.Organism.TaxID
			phages = joinNames(m.Phages)
		} else {
			name, ncbi, taxid, phages = "", "", "", ""
		}
		_, err = fmt.Fprintf(w, "%s\t%d\t%v\t%d\t%s\t%.3f\t%d\t%d\t%.3f\t%s\t%s\t%s\t%s\n",
			qr.Query, qr.QLen, qr.Exact, m.Rank, m.Subject, m.Score, m.Hits, m.AlignedLength, m.PIdentSD,
			name, ncbi, taxid, phages)
		if err != nil {
			return err
		}
	}
	return nil
}

func joinNames(orgs []refdb.Organism) string {
	names := make([]string, len(orgs))
	for i, o := range orgs {
		names[i] = o.Name
	}
	return strings.Join(names, ",")
}

// reportWriter writes reports in TSV or YAML format.
type reportWriter struct {
	w   io.Writer
	enc *yaml.Encoder // nil for TSV
}

func newReportWriter(w io.Writer, format string) (*reportWriter, error) {
	switch format {
	case "tsv":
		return &reportWriter{w: w}, writeTSVHeader(w)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		return &reportWriter{w: w, enc: enc}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s, available: tsv, yaml", format)
	}
}

// Write writes a report, YAML reports are separated as documents.
func (rw *reportWriter) Write(qr *QueryReport) error {
	if rw.enc != nil {
		return rw.enc.Encode(qr)
	}
	return qr.writeTSV(rw.w)
}

func (rw *reportWriter) Close() error {
	if rw.enc != nil {
		return rw.enc.Close()
	}
	return nil
}
