package extractor

import (
	"context"
	"fmt"
	"time"

	"github.com/dbsmedya/gofixture/internal/fixture"
	"github.com/dbsmedya/gofixture/internal/logger"
	"github.com/dbsmedya/gofixture/internal/types"
)

// RootResult is the outcome of one root key.
type RootResult struct {
	Key     interface{}
	Paths   []string // directories written
	Records int      // entries written, after deduplication
	Stats   types.ExtractStats
	Err     error
}

// Path returns the first directory written, or "".
func (r RootResult) Path() string {
	if len(r.Paths) == 0 {
		return ""
	}
	return r.Paths[0]
}

// RunResult summarizes a run.
type RunResult struct {
	Results  []RootResult
	Duration time.Duration
}

// Failed returns the results that carry an error.
func (r *RunResult) Failed() []RootResult {
	var out []RootResult
	for _, res := range r.Results {
		if res.Err != nil {
			out = append(out, res)
		}
	}
	return out
}

// Records returns the number of entries written across all keys.
func (r *RunResult) Records() int {
	total := 0
	for _, res := range r.Results {
		total += res.Records
	}
	return total
}

// RunnerOptions tunes a Runner.
type RunnerOptions struct {
	Deduplicate bool
	// DryRun extracts without writing.
	DryRun bool
}

// Runner extracts root keys one after another. Each key has its own walk
// history and its own output directory; a failing key is recorded and the
// run moves on.
type Runner struct {
	plan   Plan
	walker *Walker
	writer *fixture.Writer
	opts   RunnerOptions
	logger *logger.Logger
}

// NewRunner creates a runner.
func NewRunner(plan Plan, w *Walker, writer *fixture.Writer, opts RunnerOptions, log *logger.Logger) (*Runner, error) {
	if plan == nil {
		return nil, fmt.Errorf("plan is nil")
	}
	if w == nil {
		return nil, fmt.Errorf("walker is nil")
	}
	if writer == nil && !opts.DryRun {
		return nil, fmt.Errorf("writer is nil")
	}
	if log == nil {
		log = logger.NewDefault()
	}
	return &Runner{plan: plan, walker: w, writer: writer, opts: opts, logger: log}, nil
}

// Run processes keys in order. The returned error is non-nil only when the
// context was cancelled; per-key failures are reported in the results.
func (r *Runner) Run(ctx context.Context, keys []interface{}) (*RunResult, error) {
	start := time.Now()
	result := &RunResult{Results: make([]RootResult, 0, len(keys))}

	r.logger.Infow("Starting extraction", "plan", r.plan.Name(), "keys", len(keys))

	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			result.Duration = time.Since(start)
			return result, fmt.Errorf("extraction cancelled: %w", err)
		}

		res := r.runKey(ctx, key)
		result.Results = append(result.Results, res)
	}

	result.Duration = time.Since(start)
	r.logger.Infow("Extraction finished",
		"keys", len(keys),
		"failed", len(result.Failed()),
		"records", result.Records(),
		"duration", result.Duration)
	return result, nil
}

func (r *Runner) runKey(ctx context.Context, key interface{}) RootResult {
	log := r.logger.WithRootKey(types.CanonicalKey(key))
	res := RootResult{Key: key}

	bundles, stats, err := r.plan.Bundles(ctx, r.walker, key)
	res.Stats = stats
	if err != nil {
		log.Errorw("Extraction failed", "error", err)
		res.Err = err
		return res
	}

	for i := range bundles {
		if r.opts.Deduplicate {
			bundles[i], res.Stats.Duplicates = dedupeBundle(bundles[i], res.Stats.Duplicates)
		}
		res.Records += len(bundles[i].Entries())
	}

	if r.opts.DryRun {
		log.Infow("Dry run: nothing written", "records", res.Records)
		return res
	}

	for _, b := range bundles {
		path, err := r.writer.Write(b)
		if err != nil {
			log.Errorw("Write failed", "dir", b.Dir, "error", err)
			res.Err = err
			return res
		}
		res.Paths = append(res.Paths, path)
	}

	log.Infow("Fixture written",
		"paths", res.Paths,
		"records", res.Records,
		"duplicates_removed", res.Stats.Duplicates,
		"queries", res.Stats.Queries)
	return res
}

// dedupeBundle removes repeated records across the files of a bundle,
// keeping first occurrences.
func dedupeBundle(b fixture.Bundle, dropped int) (fixture.Bundle, int) {
	seen := make(map[string]bool)
	files := make([]fixture.File, len(b.Files))
	for i, f := range b.Files {
		kept := make([]fixture.Entry, 0, len(f.Entries))
		for _, e := range f.Entries {
			id := e.Identity()
			if seen[id] {
				dropped++
				continue
			}
			seen[id] = true
			kept = append(kept, e)
		}
		files[i] = fixture.File{Name: f.Name, Entries: kept}
	}
	return fixture.Bundle{Dir: b.Dir, Files: files}, dropped
}
