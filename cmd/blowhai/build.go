package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/tliron/commonlog"

	"github.com/chazu/blowhai/batch"
	"github.com/chazu/blowhai/cache"
	"github.com/chazu/blowhai/manifest"
)

// runBuild processes the `blowhai build` subcommand, which compiles every
// source listed in the nearest blowhai.toml.
// Usage:
//
//	blowhai build          # build with manifest settings
//	blowhai build -j 8     # override build.jobs
func runBuild(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("blowhai build", flag.ContinueOnError)
	fs.SetOutput(stderr)
	jobs := fs.Int("j", -1, "Parallel compile jobs (default build.jobs)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	m, err := manifest.FindAndLoad(".")
	if err != nil {
		fmt.Fprintf(stderr, "Error loading manifest: %v\n", err)
		return 1
	}
	if m == nil {
		fmt.Fprintf(stderr, "Error: no %s found\n", manifest.FileName)
		return 1
	}

	if logFile := m.LogFile(); logFile != "" {
		commonlog.Configure(m.Log.Verbosity, &logFile)
	} else {
		commonlog.Configure(m.Log.Verbosity, nil)
	}

	sources, err := m.SourcePaths()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if len(sources) == 0 {
		fmt.Fprintf(stderr, "No [build] sources configured in %s\n", manifest.FileName)
		return 1
	}

	if err := checkOutputs(sources, m.OutputPath); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	opts := batch.Options{Compiler: m.CompilerOptions(), Workers: m.Build.Jobs}
	if *jobs >= 0 {
		opts.Workers = *jobs
	}
	if dir := m.CacheDir(); dir != "" {
		if opts.Cache, err = cache.Open(dir); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
	}

	c := &cli{stdout: stdout, stderr: stderr, manifest: m}
	var batchJobs []batch.Job
	for _, src := range sources {
		content, err := os.ReadFile(src)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		batchJobs = append(batchJobs, batch.Job{Name: src, Source: string(content)})
	}

	failed := 0
	for _, r := range batch.Compile(ctx, batchJobs, opts) {
		if r.Err != nil {
			fmt.Fprintf(stderr, "%v\n", r.Err)
			failed++
			continue
		}
		if err := c.writeModule(m.OutputPath(r.Name), r.Module); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			failed++
		}
	}

	name := m.Project.Name
	if name == "" {
		name = m.Dir
	}
	if failed > 0 {
		fmt.Fprintf(stderr, "%s: %d of %d sources failed\n", name, failed, len(sources))
		return 1
	}
	fmt.Fprintf(stdout, "%s: built %d modules\n", name, len(sources))
	return 0
}
