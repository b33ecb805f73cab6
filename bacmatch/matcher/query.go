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
	"bytes"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/shenwei356/bio/seqio/fastx"
	"github.com/shenwei356/xopen"
)

// ErrEmptyQuery means the query file contains no sequence records,
// i.e., it is empty or only has blank lines. It is also returned when
// the first record has an empty sequence, as its length is unusable
// in exact match detection.
var ErrEmptyQuery = errors.New("no sequence records in query file")

// Query describes the first sequence record of a query file.
type Query struct {
	ID     string
	Length int
}

// ReadQuery reads the first record of a (gzipped) FASTA/Q file.
// Following records are ignored. A file without records, or with
// an empty first sequence, returns ErrEmptyQuery.
func ReadQuery(file string) (*Query, error) {
	if file != "-" {
		info, err := os.Stat(file)
		if err != nil {
			return nil, errors.Wrap(err, "read query")
		}
		if info.Size() == 0 {
			return nil, errors.Wrap(ErrEmptyQuery, file)
		}
	}

	reader, err := fastx.NewReader(nil, file, "")
	if err != nil {
		return nil, errors.Wrap(err, file)
	}
	defer reader.Close()

	record, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, errors.Wrap(ErrEmptyQuery, file)
		}
		if blank, _err := isBlank(file); _err == nil && blank {
			return nil, errors.Wrap(ErrEmptyQuery, file)
		}
		return nil, errors.Wrap(err, file)
	}

	if len(record.Seq.Seq) == 0 {
		return nil, errors.Wrapf(ErrEmptyQuery, "%s: empty sequence: %s", file, record.ID)
	}

	return &Query{
		ID:     string(record.ID),
		Length: len(record.Seq.Seq),
	}, nil
}

// isBlank checks if the (decompressed) content of a file only has white spaces.
func isBlank(file string) (bool, error) {
	fh, err := xopen.Ropen(file)
	if err != nil {
		return false, err
	}
	defer fh.Close()

	data, err := io.ReadAll(fh)
	if err != nil {
		return false, err
	}
	return len(bytes.TrimSpace(data)) == 0, nil
}
