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
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/quintx/bacmatch/bacmatch/align"
	"github.com/quintx/bacmatch/bacmatch/matcher"
	"github.com/quintx/bacmatch/bacmatch/refdb"
	"github.com/quintx/bacmatch/bacmatch/util"
	"github.com/shenwei356/bio/seq"
	"github.com/shenwei356/util/pathutil"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Identify query sequences with BLAST",
	Long: `Identify query sequences with BLAST

Steps:
  1. The length of the first sequence in a query file is read.
  2. blastn is called to align the query file against the database, outputting
     tabular format (-outfmt 6).
  3. If any hit has a percent identity >= -e/--exact-match-threshold and an aligned length
     >= ceil(qlen * -l/--match-len-threshold), all such hits are reported as exact matches,
     in the order of blastn output.
  4. Otherwise, hits of each (query, subject) pair are aggregated into a length-weighted
     average identity: sum(pident * length) / sum(length). Subjects with values
     >= -p/--high-prob-threshold are reported as probable matches, in descending order.

Attention:
  1. Input should be (gzipped) FASTA or FASTQ files, stdin is not supported.
     Only the length of the first sequence is used in exact match detection.
  2. Files with the same content are aligned once.
  3. A BLAST nucleotide database is needed, e.g., created with
       makeblastdb -dbtype nucl -parse_seqids -in refs.fasta -out refs
  4. Thresholds, the database, and blastn can also be set in a config file
     or environment variables. Values from flags have the highest priority.
  5. Failed queries are reported and skipped, and the exit status is non-zero.

Output format:
  Tab-delimited format with 13 columns, one row per match:

    1.  query,    Query sequence ID.
    2.  qlen,     Query sequence length.
    3.  exact,    Whether the matches are exact matches.
    4.  rank,     Rank of the match.
    5.  subject,  Subject ID.
    6.  score,    Percent identity of the hit (exact matches),
                  or length-weighted average identity (probable matches).
    7.  hits,     Number of hits of the subject.
    8.  alen,     Aligned length of the hit, or the sum of the aligned lengths.
    9.  pidentSD, Length-weighted standard deviation of hit identities.
    10. name,     Name of the subject organism.              (with -R/--refdb)
    11. ncbi_id,  NCBI ID of the subject organism.           (with -R/--refdb)
    12. tax_id,   TaxId of the subject organism.             (with -R/--refdb)
    13. phages,   Phages strongly infecting the organism.    (with -R/--refdb)

  Queries without matches output nothing in TSV format, and an empty list in YAML format.

`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)
		seq.ValidateSeq = false

		outFile := getFlagString(cmd, "out-file")

		var fhLog *os.File
		if opt.Log2File {
			ro, err := filepath.Abs(outFile)
			if err != nil {
				checkError(fmt.Errorf("failed to check output file: %s", err))
			}
			rl, err := filepath.Abs(opt.LogFile)
			if err != nil {
				checkError(fmt.Errorf("failed to check log file: %s", err))
			}
			if ro == rl {
				checkError(fmt.Errorf("output file and log file should not be the same: %s", outFile))
			}
			fhLog = addLog(opt.LogFile, opt.Verbose)
		}

		verbose := opt.Verbose
		outputLog := opt.Verbose || opt.Log2File

		timeStart := time.Now()
		closeLog := func() {
			if outputLog {
				log.Info()
				log.Infof("elapsed time: %s", time.Since(timeStart))
				log.Info()
			}
			if opt.Log2File {
				fhLog.Close()
			}
		}

		var err error

		// ---------------------------------------------------------------
		// options

		bindFlags(cmd, keyDB, keyBlastn, keyTimeout, keyExactMatch, keyMatchLen, keyHighProb)

		th, err := thresholdsFromConfig(viper.GetViper())
		checkError(err)

		aopt, err := alignOptionsFromConfig(viper.GetViper())
		checkError(err)

		maxQueryConcurrency := getFlagNonNegativeInt(cmd, "max-query-conc")
		if maxQueryConcurrency == 0 {
			maxQueryConcurrency = runtime.NumCPU()
		}
		aopt.Threads = getFlagNonNegativeInt(cmd, "blast-threads")
		if aopt.Threads == 0 {
			aopt.Threads = opt.NumCPUs / maxQueryConcurrency
			if aopt.Threads < 1 {
				aopt.Threads = 1
			}
		}
		aopt.ExtraArgs = strings.Fields(getFlagString(cmd, "blast-args"))

		topN := getFlagNonNegativeInt(cmd, "top-n")
		outFormat := getFlagString(cmd, "out-format")
		if outFormat != "tsv" && outFormat != "yaml" {
			checkError(fmt.Errorf("invalid value of flag --out-format: %s, available: tsv, yaml", outFormat))
		}

		refdbFile := getFlagString(cmd, "refdb")
		saveCase := getFlagBool(cmd, "save-case")
		if saveCase && refdbFile == "" {
			checkError(fmt.Errorf("flag -R/--refdb needed when --save-case is given"))
		}

		if outputLog {
			log.Infof("bacmatch v%s", VERSION)
			log.Info()
		}

		// ---------------------------------------------------------------
		// input files

		if outputLog {
			log.Info("checking input files ...")
		}

		files := make([]string, 0, len(args))
		inDir := getFlagString(cmd, "in-dir")
		if len(args) > 0 || getFlagString(cmd, "infile-list") != "" || inDir == "" {
			files = append(files, getFileListFromArgsAndFile(cmd, args, true, "infile-list", true)...)
		}
		if inDir != "" {
			existed, err := pathutil.DirExists(inDir)
			checkError(err)
			if !existed {
				checkError(fmt.Errorf("input directory not found: %s", inDir))
			}

			reFile, err := regexp.Compile("(?i)" + getFlagString(cmd, "file-regexp"))
			checkError(err)

			_files, err := getFileListFromDir(inDir, reFile, opt.NumCPUs)
			checkError(err)
			sort.Strings(_files)

			if outputLog {
				log.Infof("  %s files found in directory: %s", humanize.Comma(int64(len(_files))), inDir)
			}
			files = append(files, _files...)
		}

		outFileClean := filepath.Clean(outFile)
		for _, file := range files {
			if isStdin(file) {
				checkError(fmt.Errorf("stdin is not supported, please give query files"))
			}
			if filepath.Clean(file) == outFileClean {
				checkError(fmt.Errorf("out file should not be one of the input file"))
			}
		}
		if len(files) == 0 {
			checkError(fmt.Errorf("no query files given"))
		}

		// files with the same content are aligned once
		hashes := make([]uint64, len(files))
		for i, file := range files {
			hashes[i], err = util.FileHash(file)
			checkError(err)
		}
		groups := make([][]string, 0, len(files)) // in the order of input
		for _, idxs := range util.GroupByHash(hashes) {
			_files := make([]string, len(idxs))
			for i, idx := range idxs {
				_files[i] = files[idx]
			}
			groups = append(groups, _files)
		}
		nDistinct := len(groups)

		if outputLog {
			if len(files) == 1 {
				log.Infof("  1 input file given: %s", files[0])
			} else {
				log.Infof("  %s input files given, %s with distinct contents",
					humanize.Comma(int64(len(files))), humanize.Comma(int64(nDistinct)))
			}
		}

		// ---------------------------------------------------------------
		// aligner and matcher

		runner, err := align.NewRunner(aopt, nil)
		checkError(err)
		checkError(runner.Check())

		mt, err := matcher.New(runner, th)
		checkError(err)

		var db *refdb.Store
		if refdbFile != "" {
			db, err = refdb.Open(refdbFile)
			checkError(err)
			defer db.Close()
		}

		if outputLog {
			ao, mth := runner.Options(), mt.Thresholds()
			log.Infof("BLAST database: %s", ao.DB)
			log.Infof("blastn: %s, timeout: %s", ao.Bin, ao.Timeout)
			log.Infof("thresholds: exact match: %v, match length: %v, high probability: %v",
				mth.ExactMatch, mth.MatchLen, mth.HighProb)
			log.Infof("searching with %d concurrent queries, %d blastn thread(s) each ...",
				maxQueryConcurrency, aopt.Threads)
		}

		// ---------------------------------------------------------------
		// searching

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		outfh, gw, w, err := outStream(outFile, strings.HasSuffix(outFile, ".gz"), opt.CompressionLevel)
		checkError(err)

		rw, err := newReportWriter(outfh, outFormat)
		checkError(err)

		// process bar
		var pbs *mpb.Progress
		var bar *mpb.Bar
		showBar := verbose && nDistinct > 1
		if showBar {
			pbs = mpb.New(mpb.WithWidth(40), mpb.WithOutput(os.Stderr))
			bar = pbs.AddBar(int64(nDistinct),
				mpb.PrependDecorators(
					decor.Name("processed queries: ", decor.WC{W: len("processed queries: "), C: decor.DindentRight}),
					decor.Name("", decor.WCSyncSpaceR),
					decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
				),
				mpb.AppendDecorators(
					decor.Name("ETA: ", decor.WC{W: len("ETA: ")}),
					decor.EwmaETA(decor.ET_STYLE_GO, 3),
					decor.OnComplete(decor.Name(""), ". done"),
				),
			)
		}

		var nExact, nProbable, nNoMatch, nFailed int

		handle := func(r *searchResult) {
			for _, file := range r.files {
				if r.err != nil {
					nFailed++
					log.Errorf("%s: %s", file, r.err)
					continue
				}

				if !r.result.Found() {
					nNoMatch++
				} else if r.result.Exact {
					nExact++
				} else {
					nProbable++
				}

				qr := newQueryReport(file, r.result, topN)
				if db != nil {
					checkError(qr.annotate(ctx, db))
				}
				checkError(rw.Write(qr))

				if saveCase {
					if c := qr.caseReport(); c != nil {
						_, err := db.SaveCase(ctx, c)
						checkError(err)
					}
				}
			}
		}

		// receiver, outputs in the order of input
		ch := make(chan *searchResult, maxQueryConcurrency)
		done := make(chan int)
		go func() {
			buf := make(map[int]*searchResult, maxQueryConcurrency)
			var id int
			var r *searchResult
			var ok bool
			for r = range ch {
				if showBar {
					bar.EwmaIncrBy(1, r.duration)
				}

				buf[r.id] = r
				for {
					if r, ok = buf[id]; !ok {
						break
					}
					handle(r)
					delete(buf, id)
					id++
				}
			}
			done <- 1
		}()

		var wg sync.WaitGroup
		tokens := make(chan int, maxQueryConcurrency)
		for i, group := range groups {
			tokens <- 1
			wg.Add(1)

			go func(id int, files []string) {
				defer func() {
					wg.Done()
					<-tokens
				}()
				startTime := time.Now()

				result, err := mt.Match(ctx, files[0])

				ch <- &searchResult{
					id:       id,
					files:    files,
					result:   result,
					err:      err,
					duration: time.Since(startTime),
				}
			}(i, group)
		}
		wg.Wait()
		close(ch)
		<-done

		if showBar {
			pbs.Wait()
		}

		checkError(rw.Close())
		checkError(outfh.Flush())
		if gw != nil {
			checkError(gw.Close())
		}
		checkError(w.Close())

		if outputLog {
			log.Infof("%s queries processed: %s with exact matches, %s with probable matches, %s without matches, %s failed",
				humanize.Comma(int64(len(files))),
				humanize.Comma(int64(nExact)), humanize.Comma(int64(nProbable)),
				humanize.Comma(int64(nNoMatch)), humanize.Comma(int64(nFailed)))
			if outFile != "-" {
				log.Infof("results saved to: %s", outFile)
			}
		}
		closeLog()

		if nFailed > 0 {
			if db != nil {
				db.Close()
			}
			checkError(fmt.Errorf("%d queries failed", nFailed))
		}
	},
}

// searchResult is the result of a group of query files with the same content.
type searchResult struct {
	id       int
	files    []string
	result   *matcher.Result
	err      error
	duration time.Duration
}

func init() {
	RootCmd.AddCommand(searchCmd)

	searchCmd.Flags().StringP(keyDB, "d", "",
		formatFlagUsage(`Path prefix of the BLAST nucleotide database, i.e., the value of "-out" of makeblastdb.`))

	searchCmd.Flags().StringP(keyBlastn, "", align.DefaultOptions.Bin,
		formatFlagUsage(`Path of blastn.`))

	searchCmd.Flags().DurationP(keyTimeout, "", align.DefaultOptions.Timeout,
		formatFlagUsage(`Maximum time of aligning a query (0 for no limit).`))

	searchCmd.Flags().IntP("blast-threads", "b", 0,
		formatFlagUsage(`Number of threads of each blastn process. By default, it's the value of -j/--threads divided by -J/--max-query-conc.`))

	searchCmd.Flags().StringP("blast-args", "", "",
		formatFlagUsage(`Other arguments of blastn, e.g., "-task megablast -max_target_seqs 50".`))

	searchCmd.Flags().IntP("max-query-conc", "J", 4,
		formatFlagUsage(`Maximum number of concurrent queries (0 for the number of CPUs).`))

	// thresholds

	searchCmd.Flags().Float64P(keyExactMatch, "e", matcher.DefaultThresholds.ExactMatch,
		formatFlagUsage(`Minimum percent identity of a hit to be an exact match, in range of (0, 100].`))

	searchCmd.Flags().Float64P(keyMatchLen, "l", matcher.DefaultThresholds.MatchLen,
		formatFlagUsage(`Minimum fraction of the query length an exact match should cover, in range of (0, 1].`))

	searchCmd.Flags().Float64P(keyHighProb, "p", matcher.DefaultThresholds.HighProb,
		formatFlagUsage(`Minimum length-weighted average identity of a probable match, in range of [0, 100].`))

	// input

	searchCmd.Flags().StringP("in-dir", "I", "",
		formatFlagUsage(`Directory containing query files. Directory symlinks are followed.`))

	searchCmd.Flags().StringP("file-regexp", "r", `\.(f[aq](st[aq])?|fna)(\.gz)?$`,
		formatFlagUsage(`Regular expression for matching query files in -I/--in-dir, case ignored.`))

	// output

	searchCmd.Flags().StringP("out-file", "o", "-",
		formatFlagUsage(`Out file, supports a ".gz" suffix ("-" for stdout).`))

	searchCmd.Flags().StringP("out-format", "f", "tsv",
		formatFlagUsage(`Output format, available values: tsv, yaml.`))

	searchCmd.Flags().IntP("top-n", "n", 4,
		formatFlagUsage(`Keep top N matches for a query (0 for all).`))

	// reference database

	searchCmd.Flags().StringP("refdb", "R", "",
		formatFlagUsage(`SQLite database of reference organisms and phages, for annotating matches.`))

	searchCmd.Flags().BoolP("save-case", "", false,
		formatFlagUsage(`Save the top match of each query as a case report in the database of -R/--refdb.`))

	searchCmd.SetUsageTemplate(usageTemplate("{ -d <blast db> } [-I <query dir>] [<query files>] [-o out.tsv.gz]"))
}
