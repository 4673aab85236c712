// Package batch compiles many sources in parallel.
package batch

import (
	"context"
	"fmt"
	"runtime"

	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/blowhai/cache"
	"github.com/chazu/blowhai/compiler"
)

var log = commonlog.GetLogger("blowhai.batch")

// Job is one source to compile.
type Job struct {
	Name   string
	Source string
}

// Result is the outcome of one Job. Exactly one of Module and Err is set.
type Result struct {
	Name   string
	Module []byte
	Cached bool
	Err    error
}

// Options configures a batch.
type Options struct {
	Compiler compiler.Options
	Workers  int          // 0 means GOMAXPROCS
	Cache    *cache.Cache // optional
}

// Compile compiles every job and returns results in job order. A failing
// job does not stop the others. Jobs not started before ctx is done get
// ctx.Err() as their error.
func Compile(ctx context.Context, jobs []Job, opts Options) []Result {
	results := make([]Result, len(jobs))
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	// The group's functions never return errors, so its context is only
	// cancelled by the caller.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, job := range jobs {
		results[i].Name = job.Name
		if err := gctx.Err(); err != nil {
			results[i].Err = err
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			results[i] = compileOne(job, opts)
			return nil
		})
	}
	g.Wait()

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	log.Infof("compiled %d jobs, %d failed, %d workers", len(jobs), failed, workers)
	return results
}

// compileOne compiles a single job, turning a panic into an error.
func compileOne(job Job, opts Options) (result Result) {
	result.Name = job.Name
	defer func() {
		if r := recover(); r != nil {
			result.Module = nil
			result.Err = fmt.Errorf("%s: panic: %v", job.Name, r)
		}
	}()

	var err error
	if opts.Cache != nil {
		result.Module, result.Cached, err = opts.Cache.Compile(job.Source, opts.Compiler)
	} else {
		result.Module, err = compiler.Compile(job.Source, opts.Compiler)
	}
	if err != nil {
		result.Module = nil
		result.Err = fmt.Errorf("%s: %w", job.Name, err)
		log.Debugf("%s", result.Err)
	}
	return result
}
