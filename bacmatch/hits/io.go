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

package hits

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/shenwei356/xopen"
)

// DefaultBufferSize is the maximum line length accepted by the readers.
var DefaultBufferSize = 1 << 20

// Read parses BLAST tabular output without a header row.
// Empty lines and comment lines starting with "#" (-outfmt 7) are skipped.
// A line with a column number other than NumColumns, or a column that
// can not be parsed, is an error.
func Read(r io.Reader) (*Table, error) {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 64<<10)
	scanner.Buffer(buf, DefaultBufferSize)

	hs := make([]Hit, 0, 256)
	items := make([]string, NumColumns+1)
	var line string
	var n int
	var h Hit
	var err error
	for scanner.Scan() {
		n++
		line = strings.TrimRight(scanner.Text(), "\r\n")
		if line == "" || line[0] == '#' {
			continue
		}

		splitN(line, '\t', NumColumns+1, &items)
		if len(items) != NumColumns {
			return nil, errors.Errorf("line %d: %d columns found, %d expected", n, len(items), NumColumns)
		}

		h, err = parseHit(items)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", n)
		}
		hs = append(hs, h)
	}
	if err = scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read tabular hits")
	}

	return &Table{hits: hs}, nil
}

// ReadFile reads hits from a plain or compressed file, "-" for stdin.
func ReadFile(file string) (*Table, error) {
	fh, err := xopen.Ropen(file)
	if err != nil {
		return nil, errors.Wrap(err, file)
	}
	defer fh.Close()

	t, err := Read(fh)
	if err != nil {
		return nil, errors.Wrap(err, file)
	}
	return t, nil
}

// Write outputs hits in the BLAST tabular format.
func (t *Table) Write(w io.Writer) error {
	var err error
	for i := range t.hits {
		if _, err = fmt.Fprintln(w, t.hits[i].String()); err != nil {
			return err
		}
	}
	return nil
}

// String formats the hit as one tab-separated line.
func (h *Hit) String() string {
	return fmt.Sprintf("%s\t%s\t%.3f\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%s\t%s",
		h.QueryID, h.SubjectID, h.PIdent, h.Length, h.Mismatch, h.GapOpen,
		h.QStart, h.QEnd, h.SStart, h.SEnd,
		strconv.FormatFloat(h.EValue, 'g', 3, 64),
		strconv.FormatFloat(h.BitScore, 'f', -1, 64))
}

func parseHit(items []string) (Hit, error) {
	var h Hit
	var err error

	h.QueryID = items[0]
	h.SubjectID = items[1]
	if h.QueryID == "" || h.SubjectID == "" {
		return h, errors.New("empty qseqid or sseqid")
	}

	if h.PIdent, err = strconv.ParseFloat(items[2], 64); err != nil {
		return h, errors.Errorf("invalid pident: %s", items[2])
	}
	if h.PIdent < 0 || h.PIdent > 100 {
		return h, errors.Errorf("pident out of range [0, 100]: %s", items[2])
	}
	if h.Length, err = strconv.Atoi(items[3]); err != nil {
		return h, errors.Errorf("invalid alignment length: %s", items[3])
	}
	if h.Length <= 0 {
		return h, errors.Errorf("alignment length should be positive: %s", items[3])
	}

	ints := [...]*int{&h.Mismatch, &h.GapOpen, &h.QStart, &h.QEnd, &h.SStart, &h.SEnd}
	for i, p := range ints {
		if *p, err = strconv.Atoi(items[4+i]); err != nil {
			return h, errors.Errorf("invalid value in column %d: %s", 5+i, items[4+i])
		}
	}

	if h.EValue, err = strconv.ParseFloat(items[10], 64); err != nil {
		return h, errors.Errorf("invalid evalue: %s", items[10])
	}
	if h.EValue < 0 {
		return h, errors.Errorf("negative evalue: %s", items[10])
	}
	if h.BitScore, err = strconv.ParseFloat(strings.TrimSpace(items[11]), 64); err != nil {
		return h, errors.Errorf("invalid bitscore: %s", items[11])
	}

	return h, nil
}

// splitN splits s by sep into at most n items, reusing the slice a.
func splitN(s string, sep byte, n int, a *[]string) {
	if cap(*a) < n {
		*a = make([]string, n)
	}
	*a = (*a)[:n]

	n--
	i := 0
	for i < n {
		m := strings.IndexByte(s, sep)
		if m < 0 {
			break
		}
		(*a)[i] = s[:m]
		s = s[m+1:]
		i++
	}
	(*a)[i] = s

	*a = (*a)[:i+1]
}
