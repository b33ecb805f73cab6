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
	"strings"

	"github.com/quintx/bacmatch/bacmatch/hits"
	"github.com/quintx/bacmatch/bacmatch/matcher"
	"github.com/quintx/bacmatch/bacmatch/refdb"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Classify hits in existing BLAST tabular output",
	Long: `Classify hits in existing BLAST tabular output

This command runs the same classification as "bacmatch search", but on hits
already computed by blastn. All hits in a file are treated as hits of one query.

Input:
  - BLAST tabular output with 12 columns (-outfmt 6), plain or gzipped.
  - The query length, from -L/--query-len, or the first sequence of -Q/--query-file.

Output:
  - The same formats as "bacmatch search".

`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)

		bindFlags(cmd, keyExactMatch, keyMatchLen, keyHighProb)
		th, err := thresholdsFromConfig(viper.GetViper())
		checkError(err)

		qlen := getFlagNonNegativeInt(cmd, "query-len")
		queryFile := getFlagString(cmd, "query-file")
		var q *matcher.Query
		if queryFile != "" {
			if qlen > 0 {
				checkError(fmt.Errorf("flags -L/--query-len and -Q/--query-file are not compatible"))
			}
			q, err = matcher.ReadQuery(queryFile)
			checkError(err)
			qlen = q.Length
		} else if qlen == 0 {
			checkError(fmt.Errorf("flag -L/--query-len or -Q/--query-file needed"))
		}

		topN := getFlagNonNegativeInt(cmd, "top-n")
		outFile := getFlagString(cmd, "out-file")
		outFormat := getFlagString(cmd, "out-format")

		var db *refdb.Store
		if refdbFile := getFlagString(cmd, "refdb"); refdbFile != "" {
			db, err = refdb.Open(refdbFile)
			checkError(err)
			defer db.Close()
		}

		files := getFileListFromArgsAndFile(cmd, args, true, "infile-list", true)

		outfh, gw, w, err := outStream(outFile, strings.HasSuffix(outFile, ".gz"), opt.CompressionLevel)
		checkError(err)
		defer func() {
			outfh.Flush()
			if gw != nil {
				gw.Close()
			}
			w.Close()
		}()

		rw, err := newReportWriter(outfh, outFormat)
		checkError(err)
		defer func() {
			checkError(rw.Close())
		}()

		ctx := context.Background()
		var t *hits.Table
		var r *matcher.Result
		for _, file := range files {
			t, err = hits.ReadFile(file)
			checkError(err)

			r = matcher.Classify(t, qlen, th)
			if q != nil {
				r.Query.ID = q.ID
			} else if t.Len() > 0 {
				r.Query.ID = t.At(0).QueryID
			}

			qr := newQueryReport(file, r, topN)
			if db != nil {
				checkError(qr.annotate(ctx, db))
			}
			checkError(rw.Write(qr))

			if opt.Verbose {
				if r.Exact {
					log.Infof("%s: %d hits, %d exact matches", file, r.Hits, len(r.Matches))
				} else {
					log.Infof("%s: %d hits, %d subjects, %d probable matches", file, r.Hits, len(r.Aggregates), len(r.Matches))
				}
			}
		}
	},
}

func init() {
	utilsCmd.AddCommand(aggregateCmd)

	aggregateCmd.Flags().IntP("query-len", "L", 0,
		formatFlagUsage(`Query length.`))

	aggregateCmd.Flags().StringP("query-file", "Q", "",
		formatFlagUsage(`Query file, the length of the first sequence is used.`))

	aggregateCmd.Flags().Float64P(keyExactMatch, "e", matcher.DefaultThresholds.ExactMatch,
		formatFlagUsage(`Minimum percent identity of a hit to be an exact match, in range of (0, 100].`))

	aggregateCmd.Flags().Float64P(keyMatchLen, "l", matcher.DefaultThresholds.MatchLen,
		formatFlagUsage(`Minimum fraction of the query length an exact match should cover, in range of (0, 1].`))

	aggregateCmd.Flags().Float64P(keyHighProb, "p", matcher.DefaultThresholds.HighProb,
		formatFlagUsage(`Minimum length-weighted average identity of a probable match, in range of [0, 100].`))

	aggregateCmd.Flags().IntP("top-n", "n", 0,
		formatFlagUsage(`Keep top N matches for a query (0 for all).`))

	aggregateCmd.Flags().StringP("out-file", "o", "-",
		formatFlagUsage(`Out file, supports a ".gz" suffix ("-" for stdout).`))

	aggregateCmd.Flags().StringP("out-format", "f", "tsv",
		formatFlagUsage(`Output format, available values: tsv, yaml.`))

	aggregateCmd.Flags().StringP("refdb", "R", "",
		formatFlagUsage(`SQLite database of reference organisms and phages, for annotating matches.`))

	aggregateCmd.SetUsageTemplate(usageTemplate("{ -L <query len> | -Q <query file> } [<blast output files>]"))
}
