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

package align

import (
	"context"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
)

// fakeExecutor outputs canned text instead of spawning a process.
type fakeExecutor struct {
	stdout string
	stderr string
	err    error
	block  bool // wait until ctx is done

	calls int32
	name  string
	args  []string
}

func (f *fakeExecutor) Run(ctx context.Context, name string, args []string, stdout, stderr io.Writer) error {
	atomic.AddInt32(&f.calls, 1)
	f.name, f.args = name, args
	if f.block {
		<-ctx.Done()
		return errors.New("signal: killed")
	}
	io.WriteString(stdout, f.stdout)
	io.WriteString(stderr, f.stderr)
	return f.err
}

func newTestRunner(t *testing.T, f *fakeExecutor, timeout time.Duration) *Runner {
	opt := DefaultOptions
	opt.DB = "ref/blst"
	opt.Threads = 4
	opt.Timeout = timeout
	r, err := NewRunner(opt, f)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestAlign(t *testing.T) {
	f := &fakeExecutor{
		stdout: "q1\tX\t100.000\t1000\t0\t0\t1\t1000\t1\t1000\t0.0\t1847\n" +
			"q1\tY\t95.000\t300\t15\t0\t1\t300\t1\t300\t1e-120\t444\n",
	}
	r := newTestRunner(t, f, time.Second)

	tb, err := r.Align(context.Background(), "query.fasta")
	if err != nil {
		t.Error(err)
		return
	}
	if tb.Len() != 2 {
		t.Errorf("expected %d hits, returned %d", 2, tb.Len())
	}
	if f.calls != 1 {
		t.Errorf("expected one process, %d spawned", f.calls)
	}

	if f.name != "blastn" {
		t.Errorf("unexpected binary: %s", f.name)
	}
	expected := "-query query.fasta -db ref/blst -outfmt 6 -num_threads 4"
	if got := strings.Join(f.args, " "); got != expected {
		t.Errorf("expected args: %s, returned: %s", expected, got)
	}
}

func TestAlignNoHits(t *testing.T) {
	f := &fakeExecutor{stderr: "Warning: no hits"}
	r := newTestRunner(t, f, 0)

	tb, err := r.Align(context.Background(), "query.fasta")
	if err != nil {
		t.Error(err)
		return
	}
	if tb.Len() != 0 {
		t.Errorf("expected empty table, returned %d hits", tb.Len())
	}
}

func TestAlignExitError(t *testing.T) {
	f := &fakeExecutor{
		stderr: "BLAST Database error: No alias or index file found for nucleotide database [ref/blst]",
		err:    errors.New("exit status 2"),
	}
	r := newTestRunner(t, f, time.Second)

	_, err := r.Align(context.Background(), "query.fasta")
	var e *ExecutionError
	if !errors.As(err, &e) {
		t.Errorf("expected an ExecutionError, returned: %v", err)
		return
	}
	if !strings.Contains(e.Stderr, "BLAST Database error") {
		t.Errorf("stderr not captured: %q", e.Stderr)
	}
	if f.calls != 1 {
		t.Errorf("expected no retry, %d processes spawned", f.calls)
	}
}

func TestAlignUnparsableOutput(t *testing.T) {
	f := &fakeExecutor{stdout: "q1\tX\t100.000\t1000\n"}
	r := newTestRunner(t, f, time.Second)

	_, err := r.Align(context.Background(), "query.fasta")
	var e *ExecutionError
	if !errors.As(err, &e) {
		t.Errorf("expected an ExecutionError, returned: %v", err)
	}
}

func TestAlignTimeout(t *testing.T) {
	f := &fakeExecutor{block: true}
	r := newTestRunner(t, f, 20*time.Millisecond)

	_, err := r.Align(context.Background(), "query.fasta")
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("expected ErrTimeout, returned: %v", err)
	}
	var e *ExecutionError
	if errors.As(err, &e) {
		t.Errorf("timeout should not be an ExecutionError")
	}
}

func TestAlignCanceled(t *testing.T) {
	f := &fakeExecutor{block: true}
	r := newTestRunner(t, f, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Align(ctx, "query.fasta")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, returned: %v", err)
	}
}

func TestNewRunner(t *testing.T) {
	if _, err := NewRunner(Options{Bin: "blastn"}, nil); err == nil {
		t.Errorf("expected an error for missing database")
	}
	if _, err := NewRunner(Options{DB: "db"}, nil); err == nil {
		t.Errorf("expected an error for missing binary")
	}
	if _, err := NewRunner(Options{Bin: "blastn", DB: "db", Timeout: -time.Second}, nil); err == nil {
		t.Errorf("expected an error for negative timeout")
	}

	r, err := NewRunner(Options{Bin: "blastn", DB: "db", ExtraArgs: []string{"-task", "megablast"}}, nil)
	if err != nil {
		t.Error(err)
		return
	}
	args := r.Args("q.fa")
	if got := strings.Join(args, " "); got != "-query q.fa -db db -outfmt 6 -num_threads 1 -task megablast" {
		t.Errorf("unexpected args: %s", got)
	}
	opt := r.Options()
	if opt.DB != "db" || opt.Threads != 1 {
		t.Errorf("unexpected options: %+v", opt)
	}
	opt.ExtraArgs[0] = "-evalue"
	if r.Args("q.fa")[8] != "-task" {
		t.Errorf("options of the runner modified")
	}
}
