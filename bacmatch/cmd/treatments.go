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

	"github.com/pkg/errors"
	"github.com/quintx/bacmatch/bacmatch/refdb"
	"github.com/spf13/cobra"
)

var treatmentsCmd = &cobra.Command{
	Use:   "treatments",
	Short: "Query organism information and phage options in the reference database",
	Long: `Query organism information and phage options in the reference database

By default, positional arguments are bacteria IDs, and phages strongly infecting
them are listed. With -P/--by-phage, arguments are phage IDs, and the first
linked bacteria ID of each phage is shown.

Output format:
  Tab-delimited format.

  For bacteria IDs:
    bacteria, name, ncbi_id, tax_id, phage, phage_name, phage_ncbi_id
  For phage IDs:
    phage, bacteria

  Missing values are "N/A".

`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)

		refdbFile := getFlagString(cmd, "refdb")
		if refdbFile == "" {
			checkError(fmt.Errorf("flag -R/--refdb needed"))
		}
		byPhage := getFlagBool(cmd, "by-phage")
		outFile := getFlagString(cmd, "out-file")

		if len(args) == 0 {
			checkError(fmt.Errorf("no IDs given"))
		}

		db, err := refdb.Open(refdbFile)
		checkError(err)
		defer db.Close()

		outfh, gw, w, err := outStream(outFile, strings.HasSuffix(outFile, ".gz"), opt.CompressionLevel)
		checkError(err)
		defer func() {
			outfh.Flush()
			if gw != nil {
				gw.Close()
			}
			w.Close()
		}()

		ctx := context.Background()

		if byPhage {
			fmt.Fprintln(outfh, "phage\tbacteria")
			var id string
			for _, phage := range args {
				id, err = db.BacteriaForPhage(ctx, phage)
				if errors.Is(err, refdb.ErrNotFound) {
					id = refdb.NA
				} else {
					checkError(err)
				}
				fmt.Fprintf(outfh, "%s\t%s\n", phage, id)
			}
			return
		}

		fmt.Fprintln(outfh, "bacteria\tname\tncbi_id\ttax_id\tphage\tphage_name\tphage_ncbi_id")
		var b *refdb.Organism
		var phages []refdb.Organism
		for _, id := range args {
			b, err = db.BacteriaInfo(ctx, id)
			checkError(err)

			phages, err = db.PhagesForBacteria(ctx, id)
			checkError(err)

			if len(phages) == 0 {
				fmt.Fprintf(outfh, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					b.ID, b.Name, b.NCBIID, b.TaxID, refdb.NA, refdb.NA, refdb.NA)
				continue
			}
			for _, p := range phages {
				fmt.Fprintf(outfh, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					b.ID, b.Name, b.NCBIID, b.TaxID, p.ID, p.Name, p.NCBIID)
			}
		}
	},
}

func init() {
	utilsCmd.AddCommand(treatmentsCmd)

	treatmentsCmd.Flags().StringP("refdb", "R", "",
		formatFlagUsage(`SQLite database of reference organisms and phages.`))

	treatmentsCmd.Flags().BoolP("by-phage", "P", false,
		formatFlagUsage(`Arguments are phage IDs.`))

	treatmentsCmd.Flags().StringP("out-file", "o", "-",
		formatFlagUsage(`Out file, supports a ".gz" suffix ("-" for stdout).`))

	treatmentsCmd.SetUsageTemplate(usageTemplate("-R <refdb> <IDs>"))
}
