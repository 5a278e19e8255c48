// Command ravenc parses and type checks Raven source files.
package main

import (
	"context"
	stderrors "errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/raven-lang/raven/internal/checker"
	"github.com/raven-lang/raven/internal/cli"
	"github.com/raven-lang/raven/internal/compiler"
	"github.com/raven-lang/raven/internal/errors"
	"github.com/raven-lang/raven/internal/lexer"
	"github.com/raven-lang/raven/internal/position"
	"github.com/raven-lang/raven/internal/vfs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// run executes ravenc and returns the exit code: 0 when every file checks,
// 1 when compile errors were reported, 2 for usage or setup failures.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("ravenc", flag.ContinueOnError)
	flags.SetOutput(stderr)
	var (
		configPath  = flags.String("config", "", "path of the ravenc config file")
		checkerPath = flags.String("checker", "", "path of the checker config (primitives and operators)")
		jobs        = flags.Int("jobs", 0, "functions checked at once (0 = GOMAXPROCS)")
		watch       = flags.Bool("watch", false, "recompile whenever a source file changes")
		verbose     = flags.Bool("v", false, "verbose output")
		debug       = flags.Bool("debug", false, "debug output")
		showVersion = flags.Bool("version", false, "show version information")
		jsonVersion = flags.Bool("json", false, "print -version output as JSON")
		dumpTokens  = flags.Bool("tokens", false, "print the tokens of each file instead of compiling")
	)
	flags.Usage = func() {
		fmt.Fprintln(stderr, "USAGE:")
		fmt.Fprintln(stderr, "    ravenc [OPTIONS] <FILE or DIR>...")
		fmt.Fprintln(stderr)
		fmt.Fprintln(stderr, "OPTIONS:")
		flags.PrintDefaults()
	}
	if err := flags.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	if *showVersion {
		if err := cli.PrintVersion(stdout, "ravenc", *jsonVersion); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		return 0
	}

	cfg, err := cli.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	// flags win over the config file
	flags.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "checker":
			cfg.Checker = *checkerPath
		case "jobs":
			cfg.Jobs = *jobs
		case "v":
			cfg.Verbose = *verbose
		case "debug":
			cfg.Debug = *debug
		}
	})
	logger := cli.NewLoggerTo(stderr, cfg.Verbose, cfg.Debug)

	roots := flags.Args()
	if len(roots) == 0 {
		logger.Error("no input files")
		flags.Usage()
		return 2
	}

	fsys := vfs.NewOS()
	if *dumpTokens {
		return printTokens(fsys, roots, stdout, logger)
	}

	checkerCfg, err := checker.LoadConfig(cfg.Checker)
	if err != nil {
		logger.Error("%v", err)
		return 2
	}
	opts := compiler.Options{Jobs: cfg.Jobs, Checker: checkerCfg, Logger: logger}

	if *watch {
		return watchMode(ctx, opts, fsys, roots, stdout, logger)
	}

	files, err := compiler.Load(fsys, roots...)
	if err != nil {
		logger.Error("%v", err)
		return 2
	}
	result, err := compiler.Compile(ctx, opts, files)
	return report(result, err, stdout, logger)
}

func report(result *compiler.Result, err error, stdout io.Writer, logger *cli.Logger) int {
	if err != nil {
		logger.Error("compilation aborted: %v", err)
		return 2
	}
	for _, e := range result.Errors {
		fmt.Fprintln(stdout, e)
		var ce *errors.CompileError
		if stderrors.As(e, &ce) {
			if source, ok := result.Sources[ce.File]; ok {
				fmt.Fprint(stdout, source.Highlight(ce.Pos, 1))
			}
		}
	}
	if !result.OK() {
		logger.Info("%d errors", len(result.Errors))
		return 1
	}
	logger.Info("ok: %d functions, %d structs", len(result.Functions), len(result.Structs))
	return 0
}

func watchMode(ctx context.Context, opts compiler.Options, fsys vfs.FileSystem, roots []string, stdout io.Writer, logger *cli.Logger) int {
	watcher, err := vfs.NewFSWatcher()
	if err != nil {
		logger.Error("failed to start watcher: %v", err)
		return 2
	}
	defer watcher.Close()

	logger.Info("watching %s", strings.Join(roots, ", "))
	err = compiler.Watch(ctx, opts, fsys, watcher, roots, func(result *compiler.Result, err error) {
		report(result, err, stdout, logger)
	})
	if err != nil && ctx.Err() == nil {
		logger.Error("%v", err)
		return 2
	}
	return 0
}

func printTokens(fsys vfs.FileSystem, roots []string, stdout io.Writer, logger *cli.Logger) int {
	names, err := vfs.SourceFiles(fsys, roots...)
	if err != nil {
		logger.Error("%v", err)
		return 2
	}
	for _, name := range names {
		data, err := fsys.ReadFile(name)
		if err != nil {
			logger.Error("%v", err)
			return 2
		}
		source := position.NewSourceFile(name, data)
		for _, tok := range lexer.Tokenize(data) {
			pos := source.PositionFromOffset(tok.Span.Start)
			fmt.Fprintf(stdout, "%s:%d:%d\t%-18s %q\n", name, pos.Line, pos.Column, tok.Type, tok.Text(data))
		}
	}
	return 0
}
