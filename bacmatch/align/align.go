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

// Package align runs an external aligner (blastn) for a query sequence file
// against a reference database and parses its tabular output.
package align

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/quintx/bacmatch/bacmatch/hits"
	"github.com/shenwei356/util/pathutil"
)

// ErrTimeout means the aligner did not finish within Options.Timeout.
var ErrTimeout = errors.New("alignment timed out")

// ExecutionError means the aligner exited abnormally or its output could not be parsed.
type ExecutionError struct {
	Cmd    string // command line
	Stderr string // captured standard error
	Err    error
}

func (e *ExecutionError) Error() string {
	stderr := strings.TrimSpace(e.Stderr)
	if stderr == "" {
		return fmt.Sprintf("failed to run '%s': %s", e.Cmd, e.Err)
	}
	return fmt.Sprintf("failed to run '%s': %s: %s", e.Cmd, e.Err, stderr)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Executor runs an external program and waits for it.
// The program should be killed when ctx is done.
type Executor interface {
	Run(ctx context.Context, name string, args []string, stdout, stderr io.Writer) error
}

// osExecutor is the Executor backed by os/exec.
type osExecutor struct{}

func (osExecutor) Run(ctx context.Context, name string, args []string, stdout, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return cmd.Run()
}

// Options contains the options of the aligner.
type Options struct {
	Bin     string        // path or name of blastn
	DB      string        // path prefix of the BLAST nucleotide database
	Threads int           // -num_threads
	Timeout time.Duration // 0 for no limit

	ExtraArgs []string // appended to the command line
}

// DefaultOptions is the default options, DB is still needed.
var DefaultOptions = Options{
	Bin:     "blastn",
	Threads: 1,
	Timeout: 30 * time.Minute,
}

// Runner aligns query files against one database.
// It holds no mutable state and is safe for concurrent use,
// each call spawns its own process.
type Runner struct {
	opt  Options
	exec Executor
}

// NewRunner creates a Runner. A nil executor means running real processes.
func NewRunner(opt Options, executor Executor) (*Runner, error) {
	if opt.Bin == "" {
		return nil, errors.New("aligner binary not given")
	}
	if opt.DB == "" {
		return nil, errors.New("reference database not given")
	}
	if opt.Threads < 1 {
		opt.Threads = 1
	}
	if opt.Timeout < 0 {
		return nil, errors.Errorf("negative timeout: %s", opt.Timeout)
	}
	if executor == nil {
		executor = osExecutor{}
	}

	opt.ExtraArgs = append([]string(nil), opt.ExtraArgs...)
	return &Runner{opt: opt, exec: executor}, nil
}

// Options returns a copy of the options.
func (r *Runner) Options() Options {
	opt := r.opt
	opt.ExtraArgs = append([]string(nil), r.opt.ExtraArgs...)
	return opt
}

// Args returns the command line arguments for a query file.
func (r *Runner) Args(queryFile string) []string {
	args := []string{
		"-query", queryFile,
		"-db", r.opt.DB,
		"-outfmt", "6",
		"-num_threads", strconv.Itoa(r.opt.Threads),
	}
	return append(args, r.opt.ExtraArgs...)
}

// Align runs the aligner once and returns all hits.
// No hits is not an error, an empty table is returned.
func (r *Runner) Align(ctx context.Context, queryFile string) (*hits.Table, error) {
	if r.opt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opt.Timeout)
		defer cancel()
	}

	args := r.Args(queryFile)
	cmdline := r.opt.Bin + " " + strings.Join(args, " ")

	var stdout, stderr bytes.Buffer
	err := r.exec.Run(ctx, r.opt.Bin, args, &stdout, &stderr)
	if err != nil {
		switch ctx.Err() {
		case context.DeadlineExceeded:
			return nil, errors.Wrapf(ErrTimeout, "'%s' (limit: %s)", cmdline, r.opt.Timeout)
		case context.Canceled:
			return nil, errors.Wrapf(ctx.Err(), "'%s'", cmdline)
		}
		return nil, &ExecutionError{Cmd: cmdline, Stderr: stderr.String(), Err: err}
	}

	t, err := hits.Read(&stdout)
	if err != nil {
		return nil, &ExecutionError{Cmd: cmdline, Stderr: stderr.String(),
			Err: errors.Wrap(err, "unparsable output")}
	}
	return t, nil
}

// dbSuffixes are files of a BLAST nucleotide database, a single volume,
// an alias of multiple volumes, or the version 5 lookup table.
var dbSuffixes = []string{".nin", ".nal", ".ndb", ".00.nin"}

// Check checks if the aligner binary and the database exist.
func (r *Runner) Check() error {
	if _, err := exec.LookPath(r.opt.Bin); err != nil {
		return errors.Wrapf(err, "aligner not found")
	}

	for _, s := range dbSuffixes {
		ok, err := pathutil.Exists(r.opt.DB + s)
		if err != nil {
			return errors.Wrap(err, r.opt.DB)
		}
		if ok {
			return nil
		}
	}
	return errors.Errorf("BLAST nucleotide database not found: %s", r.opt.DB)
}
