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

// Package refdb looks up reference organisms matched by queries,
// their phage treatment options, and keeps the history of case reports.
// Data are stored in a SQLite database.
package refdb

import (
	"context"
	"database/sql"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// ErrNotFound means no record matches the given ID.
var ErrNotFound = errors.New("record not found")

// NA is the value of a missing field.
const NA = "N/A"

// Store is a reference database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database file, and creates the schema
// if it does not exist.
func Open(file string) (*Store, error) {
	db, err := sql.Open("sqlite3", file+"?_foreign_keys=on")
	if err != nil {
		return nil, errors.Wrapf(err, "open database: %s", file)
	}

	s := &Store{db: db}
	if err = s.createSchema(); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "create schema: %s", file)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS bacteria (
			bacteria_id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			ncbi_id TEXT,
			tax_id TEXT,
			genbank_id TEXT,
			description TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS phages (
			phage_id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			ncbi_id TEXT,
			tax_id TEXT,
			genbank_id TEXT,
			description TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS bacteria_phages (
			bacteria_id TEXT NOT NULL REFERENCES bacteria(bacteria_id),
			phage_id TEXT NOT NULL REFERENCES phages(phage_id),
			infection_type TEXT,
			PRIMARY KEY (bacteria_id, phage_id)
		)`,
		`CREATE TABLE IF NOT EXISTS bacteria_interactions (
			bacteria_id TEXT NOT NULL UNIQUE REFERENCES bacteria(bacteria_id),
			no_infection TEXT,
			weak_infection TEXT,
			strong_infection TEXT,
			tax_id TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS case_reports (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			uploaded_file_name TEXT,
			specimen_number TEXT,
			genome_length TEXT,
			name TEXT,
			most_effective_phage TEXT,
			match_effectiveness REAL,
			match_score REAL,
			matches_100 INTEGER,
			matches_partial INTEGER,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS phage_matches (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			case_report_id INTEGER NOT NULL REFERENCES case_reports(id) ON DELETE CASCADE,
			phage_name TEXT,
			effectiveness REAL,
			match_type TEXT,
			recommended INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_bacteria_phages_phage ON bacteria_phages(phage_id)`,
		`CREATE INDEX IF NOT EXISTS idx_phage_matches_case ON phage_matches(case_report_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Organism is a bacterium or a phage.
type Organism struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	NCBIID string `yaml:"ncbi_id"`
	TaxID  string `yaml:"tax_id"`
}

func orNA(v sql.NullString) string {
	if !v.Valid || v.String == "" {
		return NA
	}
	return v.String
}

// Bacteria returns a bacterium by ID, or ErrNotFound.
func (s *Store) Bacteria(ctx context.Context, id string) (*Organism, error) {
	var name, ncbi, taxid sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT name, ncbi_id, tax_id FROM bacteria WHERE bacteria_id = ?`, id).
		Scan(&name, &ncbi, &taxid)
	if err == sql.ErrNoRows {
		return nil, errors.Wrap(ErrNotFound, id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "query bacteria: %s", id)
	}
	return &Organism{ID: id, Name: orNA(name), NCBIID: orNA(ncbi), TaxID: orNA(taxid)}, nil
}

// BacteriaInfo is like Bacteria, but a missing bacterium is not an error,
// all its fields are "N/A".
func (s *Store) BacteriaInfo(ctx context.Context, id string) (*Organism, error) {
	b, err := s.Bacteria(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return &Organism{ID: id, Name: NA, NCBIID: NA, TaxID: NA}, nil
	}
	return b, err
}

// PhagesForBacteria returns phages strongly infecting a bacterium,
// in the order of the interaction record. Unknown phage IDs are skipped.
func (s *Store) PhagesForBacteria(ctx context.Context, bacteriaID string) ([]Organism, error) {
	var strong sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT strong_infection FROM bacteria_interactions WHERE bacteria_id = ?`, bacteriaID).
		Scan(&strong)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "query interactions: %s", bacteriaID)
	}

	ids := splitIDs(strong.String)
	if len(ids) == 0 {
		return nil, nil
	}

	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT phage_id, name, ncbi_id, tax_id FROM phages WHERE phage_id IN (?`+
			strings.Repeat(",?", len(ids)-1)+`)`, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "query phages of %s", bacteriaID)
	}
	defer rows.Close()

	m := make(map[string]Organism, len(ids))
	var id string
	var name, ncbi, taxid sql.NullString
	for rows.Next() {
		if err = rows.Scan(&id, &name, &ncbi, &taxid); err != nil {
			return nil, errors.Wrapf(err, "query phages of %s", bacteriaID)
		}
		m[id] = Organism{ID: id, Name: orNA(name), NCBIID: orNA(ncbi), TaxID: orNA(taxid)}
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "query phages of %s", bacteriaID)
	}

	phages := make([]Organism, 0, len(m))
	var p Organism
	var ok bool
	for _, id = range ids {
		if p, ok = m[id]; ok {
			phages = append(phages, p)
		}
	}
	return phages, nil
}

// BacteriaForPhage returns the first bacterium linked to a phage, or ErrNotFound.
func (s *Store) BacteriaForPhage(ctx context.Context, phageID string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT bacteria_id FROM bacteria_phages WHERE phage_id = ? ORDER BY rowid LIMIT 1`, phageID).
		Scan(&id)
	if err == sql.ErrNoRows {
		return "", errors.Wrap(ErrNotFound, phageID)
	}
	if err != nil {
		return "", errors.Wrapf(err, "query bacteria of phage %s", phageID)
	}
	return id, nil
}

// splitIDs splits a comma-separated list, removing spaces, empty items and duplicates.
func splitIDs(s string) []string {
	items := strings.Split(s, ",")
	ids := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	var ok bool
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if _, ok = seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		ids = append(ids, item)
	}
	return ids
}
