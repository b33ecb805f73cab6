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
	"database/sql"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// AddBacteria inserts or replaces a bacterium.
func (s *Store) AddBacteria(ctx context.Context, b Organism) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO bacteria (bacteria_id, name, ncbi_id, tax_id) VALUES (?, ?, ?, ?)`,
		b.ID, b.Name, nullable(b.NCBIID), nullable(b.TaxID))
	return errors.Wrapf(err, "insert bacteria: %s", b.ID)
}

// AddPhage inserts or replaces a phage.
func (s *Store) AddPhage(ctx context.Context, p Organism) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO phages (phage_id, name, ncbi_id, tax_id) VALUES (?, ?, ?, ?)`,
		p.ID, p.Name, nullable(p.NCBIID), nullable(p.TaxID))
	return errors.Wrapf(err, "insert phage: %s", p.ID)
}

// Link links a phage to a bacterium.
func (s *Store) Link(ctx context.Context, bacteriaID, phageID, infectionType string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO bacteria_phages (bacteria_id, phage_id, infection_type) VALUES (?, ?, ?)`,
		bacteriaID, phageID, nullable(infectionType))
	return errors.Wrapf(err, "link %s to %s", phageID, bacteriaID)
}

// SetStrongInfections sets phages strongly infecting a bacterium.
func (s *Store) SetStrongInfections(ctx context.Context, bacteriaID string, phageIDs []string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bacteria_interactions (bacteria_id, strong_infection) VALUES (?, ?)
		ON CONFLICT(bacteria_id) DO UPDATE SET strong_infection = excluded.strong_infection`,
		bacteriaID, strings.Join(phageIDs, ","))
	return errors.Wrapf(err, "set interactions of %s", bacteriaID)
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// CaseReport is the identification result of an uploaded sample.
type CaseReport struct {
	ID             int64     `yaml:"id"`
	FileName       string    `yaml:"uploaded_file_name"`
	SpecimenNumber string    `yaml:"specimen_number,omitempty"`
	GenomeLength   string    `yaml:"genome_length"`
	Name           string    `yaml:"name"`
	CreatedAt      time.Time `yaml:"created_at"`

	MostEffectivePhage string  `yaml:"most_effective_phage"`
	MatchEffectiveness float64 `yaml:"match_effectiveness"`
	MatchScore         float64 `yaml:"match_score"`
	Matches100         int     `yaml:"matches_100"`
	MatchesPartial     int     `yaml:"matches_partial"`

	PhageMatches []PhageMatch `yaml:"phage_matches"`
}

// PhageMatch is a phage recommended in a case report.
type PhageMatch struct {
	PhageName     string  `yaml:"phage_name"`
	Effectiveness float64 `yaml:"effectiveness"`
	MatchType     string  `yaml:"match_type"` // "100%" or "Partial"
	Recommended   bool    `yaml:"recommended"`
}

// SaveCase saves a case report and its phage matches in one transaction,
// and returns the ID of the report. A zero CreatedAt is set to now.
func (s *Store) SaveCase(ctx context.Context, c *CaseReport) (int64, error) {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "save case")
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO case_reports (uploaded_file_name, specimen_number, genome_length, name,
			most_effective_phage, match_effectiveness, match_score, matches_100, matches_partial, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.FileName, nullable(c.SpecimenNumber), c.GenomeLength, c.Name,
		nullable(c.MostEffectivePhage), c.MatchEffectiveness, c.MatchScore, c.Matches100, c.MatchesPartial,
		c.CreatedAt)
	if err != nil {
		return 0, errors.Wrap(err, "save case")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(err, "save case")
	}

	for _, m := range c.PhageMatches {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO phage_matches (case_report_id, phage_name, effectiveness, match_type, recommended)
			VALUES (?, ?, ?, ?, ?)`,
			id, m.PhageName, m.Effectiveness, m.MatchType, m.Recommended)
		if err != nil {
			return 0, errors.Wrapf(err, "save phage match: %s", m.PhageName)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "save case")
	}
	c.ID = id
	return id, nil
}

// Case returns a case report by ID, or ErrNotFound.
func (s *Store) Case(ctx context.Context, id int64) (*CaseReport, error) {
	c := &CaseReport{ID: id}
	var specimen, phage sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT uploaded_file_name, specimen_number, genome_length, name, most_effective_phage,
			match_effectiveness, match_score, matches_100, matches_partial, created_at
		FROM case_reports WHERE id = ?`, id).
		Scan(&c.FileName, &specimen, &c.GenomeLength, &c.Name, &phage,
			&c.MatchEffectiveness, &c.MatchScore, &c.Matches100, &c.MatchesPartial, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(ErrNotFound, "case %d", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "query case %d", id)
	}
	c.SpecimenNumber = specimen.String
	c.MostEffectivePhage = phage.String

	rows, err := s.db.QueryContext(ctx,
		`SELECT phage_name, effectiveness, match_type, recommended
		FROM phage_matches WHERE case_report_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, errors.Wrapf(err, "query phage matches of case %d", id)
	}
	defer rows.Close()

	for rows.Next() {
		var m PhageMatch
		if err = rows.Scan(&m.PhageName, &m.Effectiveness, &m.MatchType, &m.Recommended); err != nil {
			return nil, errors.Wrapf(err, "query phage matches of case %d", id)
		}
		c.PhageMatches = append(c.PhageMatches, m)
	}
	return c, errors.Wrapf(rows.Err(), "query phage matches of case %d", id)
}
