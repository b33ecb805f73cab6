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
	"fmt"
	"strings"

	"github.com/quintx/bacmatch/bacmatch/hits"
	"github.com/spf13/cobra"
)

var longestHitsCmd = &cobra.Command{
	Use:   "longest-hits",
	Short: "Keep the longest hit of each subject in BLAST tabular output",
	Long: `Keep the longest hit of each subject in BLAST tabular output

Input:
  - BLAST tabular output with 12 columns (-outfmt 6), plain or gzipped.

Output:
  - The longest hit of each subject, the first one is kept for hits of the same length.
    Hits are sorted in descending order of percent identity, keeping the input order of ties.

`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)

		outFile := getFlagString(cmd, "out-file")
		queries := getFlagStringSlice(cmd, "query")
		minPident := getFlagNonNegativeFloat64(cmd, "min-pident")
		if minPident > 100 {
			checkError(fmt.Errorf("the value of flag --min-pident (%f) should be in range of [0, 100]", minPident))
		}

		var queriesMap map[string]interface{}
		if len(queries) > 0 {
			queriesMap = make(map[string]interface{}, len(queries))
			for _, q := range queries {
				queriesMap[q] = struct{}{}
			}
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

		var t *hits.Table
		var n int
		for _, file := range files {
			t, err = hits.ReadFile(file)
			checkError(err)

			t = t.Filter(func(h *hits.Hit) bool {
				if queriesMap != nil {
					if _, ok := queriesMap[h.QueryID]; !ok {
						return false
					}
				}
				return h.PIdent >= minPident
			})

			t = t.LongestPerSubject()
			checkError(t.Write(outfh))
			n += t.Len()
		}

		if opt.Verbose {
			log.Infof("%d hits kept from %d file(s)", n, len(files))
		}
	},
}

func init() {
	utilsCmd.AddCommand(longestHitsCmd)

	longestHitsCmd.Flags().StringP("out-file", "o", "-",
		formatFlagUsage(`Out file, supports a ".gz" suffix ("-" for stdout).`))

	longestHitsCmd.Flags().StringSliceP("query", "q", []string{},
		formatFlagUsage(`Only keep hits of these query IDs, multiple values are supported.`))

	longestHitsCmd.Flags().Float64P("min-pident", "i", 0,
		formatFlagUsage(`Minimum percent identity of hits.`))

	longestHitsCmd.SetUsageTemplate(usageTemplate("[-q <query id>] [<blast output files>]"))
}
