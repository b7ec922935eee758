// Package batch runs independent decodes over many files.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/gocarina/gocsv"
	"golang.org/x/sync/errgroup"
)

const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

var ErrNoInputs = errors.New("no input files matched")

// Outcome is the per-file result of a batch run.
type Outcome struct {
	Input     string        `csv:"input"`
	Output    string        `csv:"output"`
	Format    string        `csv:"format"`
	Bytes     int64         `csv:"bytes"`
	Status    string        `csv:"status"`
	Error     string        `csv:"error"`
	ElapsedMS int64         `csv:"elapsed_ms"`
	Err       error         `csv:"-"`
	Elapsed   time.Duration `csv:"-"`
}

// Job decodes one file.
type Job func(ctx context.Context, path string) (Outcome, error)

// Run calls job for every path using up to workers goroutines. A failing
// file never stops the others; outcomes are returned in input order.
func Run(ctx context.Context, paths []string, workers int, job Job) []Outcome {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	outcomes := make([]Outcome, len(paths))

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(workers)

	for i, path := range paths {
		group.Go(func() error {
			start := time.Now()

			outcome, err := job(ctx, path)
			outcome.Input = path
			outcome.Elapsed = time.Since(start)
			outcome.ElapsedMS = outcome.Elapsed.Milliseconds()

			if err != nil {
				outcome.Status = StatusFailed
				outcome.Err = err
				outcome.Error = err.Error()
			} else {
				outcome.Status = StatusOK
			}

			outcomes[i] = outcome

			return nil
		})
	}

	_ = group.Wait()

	return outcomes
}

// Failed counts failed outcomes.
func Failed(outcomes []Outcome) int {
	n := 0

	for _, o := range outcomes {
		if o.Status == StatusFailed {
			n++
		}
	}

	return n
}

// WriteReport writes outcomes as CSV.
func WriteReport(w io.Writer, outcomes []Outcome) error {
	err := gocsv.Marshal(&outcomes, w)
	if err != nil {
		return fmt.Errorf("writing CSV: %w", err)
	}

	return nil
}

// Expand resolves each argument as a glob pattern, keeping arguments that
// match nothing but exist as files. Duplicates are dropped.
func Expand(patterns []string) ([]string, error) {
	seen := map[string]bool{}
	paths := []string{}

	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
		}

		if len(matches) == 0 {
			if _, statErr := os.Stat(pattern); statErr == nil {
				matches = []string{pattern}
			}
		}

		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil || info.IsDir() || seen[m] {
				continue
			}

			seen[m] = true
			paths = append(paths, m)
		}
	}

	if len(paths) == 0 {
		return nil, ErrNoInputs
	}

	return paths, nil
}
