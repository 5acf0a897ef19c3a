package refactor

import (
	"os"
	"path/filepath"

	"latex-camera-ready/internal/bibtex"
	"latex-camera-ready/internal/config"
	"latex-camera-ready/internal/logger"
	"latex-camera-ready/internal/parser"
	"latex-camera-ready/internal/report"
	"latex-camera-ready/internal/types"
)

// Run exports opts.InputFile into opts.OutputDir. Recoverable problems are
// collected in the returned report; an error means the run was aborted and
// the report holds what happened up to that point.
func Run(opts *types.Options) (*report.Report, error) {
	applyDefaults(opts)
	rep := report.New(opts.InputFile, opts.OutputDir)

	if _, err := parser.ParseInput(opts.InputFile); err != nil {
		return rep, err
	}

	if err := prepareOutput(opts.OutputDir, opts.Force); err != nil {
		return rep, err
	}

	var collector *bibtex.Collector
	if opts.FilterBibliography {
		collector = bibtex.NewCollector()
	}

	rootDir := filepath.Dir(opts.InputFile)
	dst := filepath.Join(opts.OutputDir, filepath.Base(opts.InputFile))
	logger.Info("exporting document",
		logger.String("input", opts.InputFile),
		logger.String("output", opts.OutputDir),
		logger.Bool("crop", opts.Crop),
		logger.Bool("bib", opts.FilterBibliography))

	r := NewRefactorer(opts, rootDir, opts.OutputDir, collector, rep)
	if err := r.Refactor(opts.InputFile, dst, types.ModeRoot); err != nil {
		return rep, err
	}

	if collector != nil {
		if err := extractBibliography(opts, collector, rep); err != nil {
			return rep, err
		}
	}

	logger.Info("export finished",
		logger.Int("files", len(rep.Files)),
		logger.Int("inclusions", len(rep.Inclusions)),
		logger.Int("warnings", rep.WarningCount()))
	return rep, nil
}

func applyDefaults(opts *types.Options) {
	if opts.OutputDir == "" {
		opts.OutputDir = config.DefaultOutputDirectory
	}
	if opts.BibliographyFile == "" {
		opts.BibliographyFile = config.DefaultBibliographyFile
	}
	if opts.TrackedEnvironments == nil {
		opts.TrackedEnvironments = append([]string(nil), config.DefaultTrackedEnvironments...)
	}
	if opts.AliasMacros == nil {
		opts.AliasMacros = append([]string(nil), config.DefaultAliasMacros...)
	}
	if opts.JPEGQuality <= 0 {
		opts.JPEGQuality = config.DefaultJPEGQuality
	}
}

// prepareOutput creates the output skeleton. An existing output directory is
// only reused when force is set; its contents are left in place.
func prepareOutput(outDir string, force bool) error {
	if _, err := os.Stat(outDir); err == nil && !force {
		return types.NewAppErrorWithDetails(types.ErrOutputExists,
			"output directory exists (use -f to overwrite)", outDir, nil)
	}

	for _, dir := range []string{outDir, filepath.Join(outDir, BibDir), filepath.Join(outDir, ResourcesDir), filepath.Join(outDir, IncludesDir)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return types.NewAppErrorWithDetails(types.ErrIO, "failed to create output directory", dir, err)
		}
	}
	return nil
}

func extractBibliography(opts *types.Options, collector *bibtex.Collector, rep *report.Report) error {
	citations := collector.Citations()
	databases := collector.Databases()

	names := make([]string, 0, len(databases))
	for _, db := range databases {
		names = append(names, db.Name)
	}

	res, err := bibtex.Extract(citations, databases)
	if err != nil {
		return err
	}
	if err := res.Write(filepath.Join(opts.OutputDir, BibDir, opts.BibliographyFile)); err != nil {
		return err
	}

	for _, key := range res.Unmatched {
		logger.Warn("citation without bibliography entry", logger.String("key", key))
		rep.Record(report.StageUnmatchedCitation, "", 0, key, "")
	}
	for _, is := range res.Suspicious {
		rep.Record(report.StageSuspiciousEntry, is.Database, is.Line, is.Key, is.Message)
	}
	for _, is := range res.Problems {
		subject := is.Key
		if subject == "" {
			subject = is.Message
			is.Message = ""
		}
		rep.Record(report.StageBibliography, is.Database, is.Line, subject, is.Message)
	}

	rep.SetBibliography(citations.Sorted(), names, len(res.Matched))
	return nil
}
