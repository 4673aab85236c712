// blowhai CLI - compiles blowhai programs to WebAssembly modules
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/blowhai/batch"
	"github.com/chazu/blowhai/cache"
	"github.com/chazu/blowhai/compiler"
	"github.com/chazu/blowhai/host"
	"github.com/chazu/blowhai/manifest"
	"github.com/chazu/blowhai/server"
	"github.com/chazu/blowhai/wasm"

	_ "github.com/tliron/commonlog/simple"
)

const defaultOutput = "out.wasm"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// cli carries the streams and settings of one invocation.
type cli struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	manifest *manifest.Manifest
	opts     compiler.Options
	cache    *cache.Cache

	output  string
	doRun   bool
	dump    bool
	ast     bool
	eval    bool
	remote  string
	verbose bool
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) > 0 {
		switch args[0] {
		case "build":
			return runBuild(ctx, args[1:], stdout, stderr)
		case "fmt":
			return runFmt(args[1:], stdout, stderr)
		}
	}

	fs := flag.NewFlagSet("blowhai", flag.ContinueOnError)
	fs.SetOutput(stderr)
	output := fs.String("o", "", "Output file (\"-\" for stdout); default out.wasm or <name>.wasm")
	export := fs.String("export", "", "Name of the exported entry function (default _start)")
	doRun := fs.Bool("run", false, "Run the compiled module and print its result")
	dump := fs.Bool("dump", false, "Print a disassembly of the compiled module")
	ast := fs.Bool("ast", false, "Print the parsed program")
	eval := fs.Bool("eval", false, "Print the result of the reference evaluator")
	cacheDir := fs.String("cache", "", "Compilation cache directory")
	verbosity := fs.Int("v", -1, "Log verbosity (0 quiet - 6 debug)")
	lspMode := fs.Bool("lsp", false, "Start the language server on stdio")
	serveMode := fs.Bool("serve", false, "Start the compile service (Connect, gRPC, gRPC-Web)")
	servePort := fs.Int("port", 8765, "Compile service port (used with -serve)")
	remote := fs.String("remote", "", "Compile and run through the compile service at this URL")
	jobs := fs.Int("j", 0, "Parallel compile jobs for several files (default GOMAXPROCS)")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: blowhai [options] [paths...]\n")
		fmt.Fprintf(stderr, "       blowhai build [-j n]\n")
		fmt.Fprintf(stderr, "       blowhai fmt [-check] [paths...]\n\n")
		fmt.Fprintf(stderr, "Compiles blowhai programs to WebAssembly. With no paths, one line is read from stdin.\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  echo '(3 + 4);' | blowhai -run   # Compile stdin to out.wasm and run it\n")
		fmt.Fprintf(stderr, "  blowhai -dump prog.bh            # Write prog.wasm, print disassembly\n")
		fmt.Fprintf(stderr, "  blowhai ./src/...                # Compile every .bh file below src\n")
		fmt.Fprintf(stderr, "  blowhai build                    # Compile the sources named in blowhai.toml\n")
		fmt.Fprintf(stderr, "\nServers:\n")
		fmt.Fprintf(stderr, "  blowhai -lsp                     # Language server on stdio\n")
		fmt.Fprintf(stderr, "  blowhai -serve -port 8080        # Compile service on :8080\n")
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	c := &cli{
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
		output: *output,
		doRun:  *doRun,
		dump:   *dump,
		ast:    *ast,
		eval:   *eval,
		remote: *remote,
	}
	if err := c.configure(*export, *cacheDir, *verbosity); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if *lspMode {
		if err := server.NewLSP(c.opts).Run(); err != nil {
			fmt.Fprintf(stderr, "LSP error: %v\n", err)
			return 1
		}
		return 0
	}

	if *serveMode {
		var options []server.ServerOption
		if c.cache != nil {
			options = append(options, server.WithCache(c.cache))
		}
		srv := server.New(c.opts, options...)
		defer srv.Stop()
		fmt.Fprintf(stdout, "blowhai compile service listening on :%d\n", *servePort)
		if err := srv.ListenAndServe(ctx, fmt.Sprintf(":%d", *servePort)); err != nil {
			fmt.Fprintf(stderr, "Server error: %v\n", err)
			return 1
		}
		return 0
	}

	paths := fs.Args()
	if len(paths) == 0 {
		return c.compileStdin(ctx)
	}

	files, err := expandPaths(paths)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if len(files) == 1 {
		return c.compileFile(ctx, files[0])
	}
	if c.output != "" {
		fmt.Fprintln(stderr, "Error: -o needs exactly one input file")
		return 1
	}
	if c.remote != "" || c.doRun || c.dump || c.ast || c.eval {
		fmt.Fprintln(stderr, "Error: -remote, -run, -dump, -ast and -eval need exactly one input")
		return 1
	}
	return c.compileMany(ctx, files, *jobs)
}

// configure merges manifest defaults with flag values and sets up logging
// and the cache.
func (c *cli) configure(export, cacheDir string, verbosity int) error {
	m, err := manifest.FindAndLoad(".")
	if err != nil {
		return fmt.Errorf("loading manifest: %w", err)
	}
	c.manifest = m

	c.opts = compiler.DefaultOptions()
	logFile := ""
	if m != nil {
		c.opts = m.CompilerOptions()
		if verbosity < 0 {
			verbosity = m.Log.Verbosity
		}
		if cacheDir == "" {
			cacheDir = m.CacheDir()
		}
		logFile = m.LogFile()
	}
	if export != "" {
		c.opts.ExportName = export
	}
	if err := c.opts.Validate(); err != nil {
		return err
	}

	if verbosity < 0 {
		verbosity = 0
	}
	c.verbose = verbosity > 0
	if logFile != "" {
		commonlog.Configure(verbosity, &logFile)
	} else {
		commonlog.Configure(verbosity, nil)
	}

	if cacheDir != "" {
		c.cache, err = cache.Open(cacheDir)
		if err != nil {
			return err
		}
	}
	return nil
}

// compileStdin compiles a single line read from stdin.
func (c *cli) compileStdin(ctx context.Context) int {
	line, err := bufio.NewReader(c.stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		fmt.Fprintf(c.stderr, "Error reading stdin: %v\n", err)
		return 1
	}
	out := c.output
	if out == "" {
		out = defaultOutput
	}
	return c.compileSource(ctx, "<stdin>", strings.TrimRight(line, "\r\n"), out)
}

func (c *cli) compileFile(ctx context.Context, path string) int {
	content, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return 1
	}
	out := c.output
	if out == "" {
		out = c.outputPath(path)
	}
	return c.compileSource(ctx, path, string(content), out)
}

// outputPath returns where the module for src goes when -o is not given.
func (c *cli) outputPath(src string) string {
	if c.manifest != nil {
		return c.manifest.OutputPath(src)
	}
	return strings.TrimSuffix(src, filepath.Ext(src)) + ".wasm"
}

func (c *cli) compileSource(ctx context.Context, name, source, out string) int {
	if c.remote != "" {
		return c.remoteCompile(ctx, name, source, out)
	}

	if c.ast || c.eval {
		unit, err := compiler.Analyze(source)
		if err != nil {
			fmt.Fprintf(c.stderr, "%s: %v\n", name, err)
			return 1
		}
		if c.ast {
			fmt.Fprintln(c.stdout, unit.Program.String())
		}
		if c.eval {
			v, err := compiler.Evaluate(unit.Program)
			if err != nil {
				fmt.Fprintf(c.stderr, "%s: eval: %v\n", name, err)
				return 1
			}
			fmt.Fprintln(c.stdout, v)
		}
	}

	module, err := c.compile(source)
	if err != nil {
		fmt.Fprintf(c.stderr, "%s: %v\n", name, err)
		return 1
	}
	if err := c.writeModule(out, module); err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return 1
	}

	if c.dump {
		m, err := wasm.Decode(module)
		if err == nil {
			var listing string
			if listing, err = wasm.Disassemble(m); err == nil {
				fmt.Fprint(c.stdout, listing)
			}
		}
		if err != nil {
			fmt.Fprintf(c.stderr, "Error: %v\n", err)
			return 1
		}
	}

	if c.doRun {
		v, err := host.Run(ctx, module, c.opts.ExportName)
		if err != nil {
			fmt.Fprintf(c.stderr, "%s: %v\n", name, err)
			return 1
		}
		fmt.Fprintln(c.stdout, v)
	}
	return 0
}

func (c *cli) compile(source string) ([]byte, error) {
	if c.cache != nil {
		module, _, err := c.cache.Compile(source, c.opts)
		return module, err
	}
	return compiler.Compile(source, c.opts)
}

func (c *cli) remoteCompile(ctx context.Context, name, source, out string) int {
	client := server.NewClient(http.DefaultClient, strings.TrimSuffix(c.remote, "/"))
	module, err := client.Compile(ctx, source)
	if err != nil {
		fmt.Fprintf(c.stderr, "%s: %v\n", name, err)
		return 1
	}
	if err := c.writeModule(out, module); err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return 1
	}
	if c.doRun {
		v, err := client.Run(ctx, source)
		if err != nil {
			fmt.Fprintf(c.stderr, "%s: %v\n", name, err)
			return 1
		}
		fmt.Fprintln(c.stdout, v)
	}
	return 0
}

// writeModule writes module to path, or to stdout for "-". The file is only
// created once compilation has succeeded.
func (c *cli) writeModule(path string, module []byte) error {
	if path == "-" {
		_, err := c.stdout.Write(module)
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	if err := os.WriteFile(path, module, 0o644); err != nil {
		return err
	}
	if c.verbose {
		fmt.Fprintf(c.stderr, "Wrote %s (%d bytes)\n", path, len(module))
	}
	return nil
}

// compileMany compiles several files in parallel, each to its own output.
func (c *cli) compileMany(ctx context.Context, files []string, workers int) int {
	if workers == 0 && c.manifest != nil {
		workers = c.manifest.Build.Jobs
	}

	if err := checkOutputs(files, c.outputPath); err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return 1
	}

	jobs := make([]batch.Job, 0, len(files))
	for _, f := range files {
		content, err := os.ReadFile(f)
		if err != nil {
			fmt.Fprintf(c.stderr, "Error: %v\n", err)
			return 1
		}
		jobs = append(jobs, batch.Job{Name: f, Source: string(content)})
	}

	results := batch.Compile(ctx, jobs, batch.Options{Compiler: c.opts, Workers: workers, Cache: c.cache})

	failed := false
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(c.stderr, "%v\n", r.Err)
			failed = true
			continue
		}
		if err := c.writeModule(c.outputPath(r.Name), r.Module); err != nil {
			fmt.Fprintf(c.stderr, "Error: %v\n", err)
			failed = true
		}
	}
	if failed {
		return 1
	}
	if c.verbose {
		fmt.Fprintf(c.stderr, "Compiled %d files\n", len(results))
	}
	return 0
}

// checkOutputs fails when two different sources would be written to the
// same module file.
func checkOutputs(sources []string, outputFor func(string) string) error {
	seen := make(map[string]string, len(sources))
	for _, src := range sources {
		out := filepath.Clean(outputFor(src))
		if prev, dup := seen[out]; dup && filepath.Clean(prev) != filepath.Clean(src) {
			return fmt.Errorf("%s and %s both compile to %s", prev, src, out)
		}
		seen[out] = src
	}
	return nil
}

// expandPaths turns file, directory and dir/... arguments into a list of
// .bh files.
func expandPaths(paths []string) ([]string, error) {
	var files []string
	for _, path := range paths {
		recursive := false
		if strings.HasSuffix(path, "/...") {
			recursive = true
			path = strings.TrimSuffix(path, "/...")
		}

		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("cannot access %q: %w", path, err)
		}

		if !info.IsDir() {
			files = append(files, path)
			continue
		}

		if recursive {
			err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if !d.IsDir() && strings.HasSuffix(p, manifest.SourceExt) {
					files = append(files, p)
				}
				return nil
			})
			if err != nil {
				return nil, fmt.Errorf("walking %q: %w", path, err)
			}
			continue
		}

		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}
		for _, e := range entries {
			if !e.IsDir() && strings.HasSuffix(e.Name(), manifest.SourceExt) {
				files = append(files, filepath.Join(path, e.Name()))
			}
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no %s files found", manifest.SourceExt)
	}
	return files, nil
}
