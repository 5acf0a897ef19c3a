package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"latex-camera-ready/internal/config"
	"latex-camera-ready/internal/logger"
	"latex-camera-ready/internal/refactor"
	"latex-camera-ready/internal/types"
)

// cliFlags holds the parsed command line.
type cliFlags struct {
	output  string
	crop    bool
	verbose bool
	force   bool
	bib     bool
	config  string
	report  string
	logFile string
}

func newFlagSet(f *cliFlags, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("latex-camera-ready", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&f.output, "o", "", "Output directory (default ./final)")
	fs.StringVar(&f.output, "output", "", "Output directory (default ./final)")
	fs.BoolVar(&f.crop, "c", false, "Crop bitmaps based on LaTeX trim parameters")
	fs.BoolVar(&f.crop, "crop", false, "Crop bitmaps based on LaTeX trim parameters")
	fs.BoolVar(&f.verbose, "v", false, "Print analysis summary and debug logs")
	fs.BoolVar(&f.verbose, "verbose", false, "Print analysis summary and debug logs")
	fs.BoolVar(&f.force, "f", false, "Force output to an existing directory")
	fs.BoolVar(&f.force, "force", false, "Force output to an existing directory")
	fs.BoolVar(&f.bib, "b", false, "Cleanup BibTeX entries (leave only cited)")
	fs.BoolVar(&f.bib, "bib", false, "Cleanup BibTeX entries (leave only cited)")
	fs.StringVar(&f.config, "config", "", "Configuration file (JSON or YAML)")
	fs.StringVar(&f.report, "report", "", "Write a JSON report of the run to this file")
	fs.StringVar(&f.logFile, "log-file", "", "Also write logs to this file")

	fs.Usage = func() { printHelp(stderr) }
	return fs
}

// printHelp displays the help information for command line usage.
func printHelp(w io.Writer) {
	fmt.Fprintln(w, "latex-camera-ready - export a LaTeX source tree for dissemination")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  latex-camera-ready [options] <file.tex>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Options:")
	fmt.Fprintln(w, "  -o, -output <DIR>   output directory (default ./final)")
	fmt.Fprintln(w, "  -c, -crop           crop bitmaps and PDFs using their trim= parameters")
	fmt.Fprintln(w, "  -v, -verbose        print the analysis summary")
	fmt.Fprintln(w, "  -f, -force          write into an existing output directory")
	fmt.Fprintln(w, "  -b, -bib            keep only cited BibTeX entries in bib/references.bib")
	fmt.Fprintln(w, "  -config <FILE>      configuration file (.json, .yaml)")
	fmt.Fprintln(w, "  -report <FILE>      write a JSON report of the run")
	fmt.Fprintln(w, "  -log-file <FILE>    also write logs to a file")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Exit codes:")
	fmt.Fprintln(w, "  1 unsupported input   2 output exists   3 malformed structure")
	fmt.Fprintln(w, "  4 bad configuration   5 missing sub-document   6 I/O or bibliography error")
}

// parseArgs accepts flags before and after the input file name.
func parseArgs(fs *flag.FlagSet, args []string) (string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return "", err
		}
		rest := fs.Args()
		if len(rest) == 0 {
			break
		}
		positional = append(positional, rest[0])
		args = rest[1:]
	}

	switch len(positional) {
	case 0:
		return "", errors.New("missing input file")
	case 1:
		return positional[0], nil
	default:
		return "", fmt.Errorf("expected one input file, got %d", len(positional))
	}
}

// run executes the command line and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	var f cliFlags
	fs := newFlagSet(&f, stderr)
	input, err := parseArgs(fs, args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "Error: %v\n\n", err)
		printHelp(stderr)
		return types.ExitCode(types.NewAppError(types.ErrUnsupportedInput, "invalid arguments", err))
	}

	cm, err := config.NewConfigManager(f.config)
	if err == nil {
		err = cm.Load()
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return types.ExitCode(err)
	}
	cfg := cm.GetConfig()

	level, ok := logger.ParseLevel(cfg.LogLevel)
	if f.verbose {
		level = logger.LevelDebug
	}
	logFile := cfg.LogFile
	if f.logFile != "" {
		logFile = f.logFile
	}
	if err := logger.Init(&logger.Config{
		LogFilePath: logFile,
		MaxFileSize: 10 * 1024 * 1024,
		MaxBackups:  3,
		Level:       level,
		Console:     stderr,
	}); err != nil {
		fmt.Fprintf(stderr, "Error: failed to initialise logging: %v\n", err)
		return types.ExitCode(types.NewAppError(types.ErrIO, "logger", err))
	}
	defer logger.Close()
	if !ok {
		logger.Warn("unknown log level, using info", logger.String("level", cfg.LogLevel))
	}

	opts := cm.Options(input)
	if f.output != "" {
		opts.OutputDir = f.output
	}
	opts.Crop = f.crop
	opts.Verbose = f.verbose
	opts.Force = f.force
	opts.FilterBibliography = f.bib

	rep, err := refactor.Run(opts)
	if f.report != "" && rep != nil {
		if werr := rep.WriteJSON(f.report); werr != nil {
			logger.Error("failed to write report", werr, logger.String("path", f.report))
		}
	}
	if err != nil {
		logger.Error("export aborted", err)
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return types.ExitCode(err)
	}

	rep.Render(stdout, f.verbose)
	return 0
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}
