// Package compiler runs a compilation job: every file is parsed
// concurrently, the registry is finished once all top-level declarations are
// in, and every function body is then checked concurrently.
package compiler

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/raven-lang/raven/internal/checker"
	"github.com/raven-lang/raven/internal/cli"
	"github.com/raven-lang/raven/internal/errors"
	"github.com/raven-lang/raven/internal/parser"
	"github.com/raven-lang/raven/internal/position"
	"github.com/raven-lang/raven/internal/syntax"
	"github.com/raven-lang/raven/internal/tasks"
	"github.com/raven-lang/raven/internal/vfs"
)

// File is one source file of a job. Name determines the namespace.
type File struct {
	Name     string
	Contents []byte
}

// Options configures a job.
type Options struct {
	// Jobs bounds the functions checked at once; 0 means GOMAXPROCS.
	Jobs    int
	Checker *checker.Config
	Logger  *cli.Logger
}

func (o Options) withDefaults() Options {
	if o.Jobs <= 0 {
		o.Jobs = runtime.GOMAXPROCS(0)
	}
	if o.Checker == nil {
		o.Checker = checker.DefaultConfig()
	}
	if o.Logger == nil {
		o.Logger = cli.NewLoggerTo(io.Discard, false, false)
	}
	return o
}

// Result is the outcome of a job that ran to completion.
type Result struct {
	Registry  *syntax.Registry
	Functions []*syntax.Function
	Structs   []*syntax.Struct
	// Errors holds every user-facing error, sorted by file and offset.
	Errors errors.List
	// Sources maps file names to their contents for error rendering.
	Sources map[string]*position.SourceFile
}

// OK reports whether the job found no errors.
func (r *Result) OK() bool { return len(r.Errors) == 0 }

// Compile runs a job over files. The returned error is non-nil only when the
// job could not run to the end: an invalid checker config, cancellation of
// ctx, or a defect. User-facing errors are in the Result.
func Compile(ctx context.Context, opts Options, files []File) (*Result, error) {
	opts = opts.withDefaults()
	log := opts.Logger
	start := time.Now()

	if err := opts.Checker.Validate(cli.Version); err != nil {
		return nil, fmt.Errorf("invalid checker config: %w", err)
	}

	handle := tasks.NewHandle(ctx)
	reg := syntax.NewRegistry(handle.Context())
	if err := opts.Checker.RegisterBuiltins(reg); err != nil {
		return nil, fmt.Errorf("failed to register primitives: %w", err)
	}

	log.Debug("parsing %d files", len(files))
	var top errgroup.Group
	for _, f := range files {
		top.Go(func() (err error) {
			defer errors.RecoverDefect(&err)
			parser.Parse(handle, reg, f.Name, f.Contents)
			return nil
		})
	}
	topDefect := top.Wait()
	reg.Finish()
	log.Debug("registry finished: %d functions, %d structs", len(reg.Functions()), len(reg.Structs()))

	if err := handle.Wait(); err != nil {
		return nil, err
	}
	if topDefect != nil {
		return nil, topDefect
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	errs := handle.Errors()
	functions := reg.Functions()
	checked, err := check(ctx, opts, reg, functions, &errs)
	if err != nil {
		return nil, err
	}
	errs.Sort()

	log.Info("checked %d functions in %d files with %d errors (%s)",
		checked, len(files), len(errs), time.Since(start).Round(time.Microsecond))
	sources := make(map[string]*position.SourceFile, len(files))
	for _, f := range files {
		sources[f.Name] = position.NewSourceFile(f.Name, f.Contents)
	}
	return &Result{
		Registry:  reg,
		Functions: functions,
		Structs:   reg.Structs(),
		Errors:    errs,
		Sources:   sources,
	}, nil
}

// check verifies every function whose body resolved, at most opts.Jobs at a
// time, appending failures to errs.
func check(ctx context.Context, opts Options, reg *syntax.Registry, functions []*syntax.Function, errs *errors.List) (int, error) {
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(opts.Jobs)

	var mu sync.Mutex
	checked := 0
	for _, fn := range functions {
		if !fn.HasCode() || fn.State() == syntax.Failed {
			continue
		}
		checked++
		group.Go(func() (err error) {
			defer errors.RecoverDefect(&err)
			if verr := checker.VerifyFunction(gctx, opts.Checker, fn, reg); verr != nil {
				opts.Logger.Debug("%s: %v", fn.Name, verr)
				mu.Lock()
				*errs = append(*errs, verr)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return checked, nil
}

// Load reads the source files under roots. File names are made relative to
// the root they were found under, so `src/a/b.rv` below root `src` declares
// names in `a::b`.
func Load(fsys vfs.FileSystem, roots ...string) ([]File, error) {
	var files []File
	seen := make(map[string]bool)
	for _, root := range roots {
		names, err := vfs.SourceFiles(fsys, root)
		if err != nil {
			return nil, fmt.Errorf("failed to list sources in %s: %w", root, err)
		}
		info, err := fsys.Stat(root)
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			rel := name
			if info.IsDir() {
				rel = vfs.Rel(root, name)
			} else {
				rel = vfs.Rel(".", name)
			}
			if seen[rel] {
				continue
			}
			seen[rel] = true
			data, err := fsys.ReadFile(name)
			if err != nil {
				return nil, fmt.Errorf("failed to read %s: %w", name, err)
			}
			files = append(files, File{Name: rel, Contents: data})
		}
	}
	return files, nil
}
