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

	"github.com/spf13/cobra"
)

var defaultConfigCmd = &cobra.Command{
	Use:   "default-config",
	Short: "Print the default config in TOML format",
	Long: `Print the default config in TOML format

The config file is searched in the current directory and ~/.config/bacmatch/,
with the name "bacmatch.toml", or given with the global flag --config.

Example:
  mkdir -p ~/.config/bacmatch/
  bacmatch utils default-config -d /data/blastdb/refs > ~/.config/bacmatch/bacmatch.toml

`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)

		c := defaultConfig()
		c.DB = getFlagString(cmd, "db")

		data, err := c.MarshalTOML()
		checkError(err)

		outFile := getFlagString(cmd, "out-file")
		outfh, gw, w, err := outStream(outFile, strings.HasSuffix(outFile, ".gz"), opt.CompressionLevel)
		checkError(err)
		defer func() {
			outfh.Flush()
			if gw != nil {
				gw.Close()
			}
			w.Close()
		}()

		fmt.Fprintf(outfh, "# bacmatch v%s\n\n", VERSION)
		outfh.Write(data)
	},
}

func init() {
	utilsCmd.AddCommand(defaultConfigCmd)

	defaultConfigCmd.Flags().StringP("db", "d", "",
		formatFlagUsage(`Path prefix of the BLAST nucleotide database to fill in.`))

	defaultConfigCmd.Flags().StringP("out-file", "o", "-",
		formatFlagUsage(`Out file ("-" for stdout).`))

	defaultConfigCmd.SetUsageTemplate(usageTemplate(""))
}
