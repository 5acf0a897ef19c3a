// Package refactor rewrites a LaTeX document tree for distribution. Every
// inclusion command is redirected to a relocated copy of its target inside the
// output directory; included sub-documents are rewritten recursively.
package refactor

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"latex-camera-ready/internal/bibtex"
	"latex-camera-ready/internal/editor"
	"latex-camera-ready/internal/logger"
	"latex-camera-ready/internal/parser"
	"latex-camera-ready/internal/relocator"
	"latex-camera-ready/internal/report"
	"latex-camera-ready/internal/tracker"
	"latex-camera-ready/internal/types"
)

// Output layout below the output directory.
const (
	IncludesDir  = "includes"
	ResourcesDir = "resources"
	BibDir       = "bib"
)

// graphicsExtensions are tried in order for \includegraphics targets written
// without an extension.
var graphicsExtensions = []string{".pdf", ".png", ".jpg", ".jpeg", ".eps"}

// Refactorer holds the state shared by all files of one run.
type Refactorer struct {
	opts      *types.Options
	rootDir   string
	outDir    string
	relocator *relocator.Relocator
	collector *bibtex.Collector
	report    *report.Report
	aliasSet  map[string]bool

	active map[string]bool   // files being refactored, for cycle detection
	owners map[string]string // output path -> source path
}

// NewRefactorer creates a Refactorer writing below outDir. Sources are
// reported relative to rootDir. A nil collector disables citation scanning.
func NewRefactorer(opts *types.Options, rootDir, outDir string, collector *bibtex.Collector, rep *report.Report) *Refactorer {
	r := &Refactorer{
		opts:    opts,
		rootDir: rootDir,
		outDir:  outDir,
		relocator: relocator.New(relocator.Options{
			Crop:        opts.Crop,
			JPEGQuality: opts.JPEGQuality,
			CountPages:  opts.Verbose,
		}),
		collector: collector,
		report:    rep,
		aliasSet:  make(map[string]bool, len(opts.AliasMacros)),
		active:    make(map[string]bool),
		owners:    make(map[string]string),
	}
	for _, name := range opts.AliasMacros {
		r.aliasSet[name] = true
	}
	return r
}

type alias struct {
	name    string
	value   string
	pattern *regexp.Regexp
}

// fileState is owned by a single Refactor call.
type fileState struct {
	src        string
	display    string
	dir        string
	stem       string
	mode       types.RefactorMode
	tracker    *tracker.Tracker
	aliases    []alias
	standalone bool
}

func (st *fileState) setAlias(name, value string) {
	for i := range st.aliases {
		if st.aliases[i].name == name {
			st.aliases[i].value = value
			return
		}
	}
	st.aliases = append(st.aliases, alias{
		name:    name,
		value:   value,
		pattern: regexp.MustCompile(regexp.QuoteMeta(name) + `(?: |\{\})`),
	})
}

// expandAliases substitutes the original alias values into target, e.g.
// `\FigPath plot.png` or `\FigPath{}plot.png` with \FigPath = figs/.
func (st *fileState) expandAliases(target string) string {
	for _, a := range st.aliases {
		target = a.pattern.ReplaceAllLiteralString(target, a.value)
	}
	return target
}

// aliasTarget is the value alias definitions are rewritten to. Standalone
// sub-documents are compiled from their own directory one level below the
// output root.
func (st *fileState) aliasTarget() string {
	if st.mode == types.ModeSubFile && st.standalone {
		return "../" + ResourcesDir + "/"
	}
	return "./" + ResourcesDir + "/"
}

// Refactor rewrites src into dst. Root mode names included files after the
// enclosing tracked environment and places them in includes/; sub-file mode
// places resources in resources/<dst stem>/.
func (r *Refactorer) Refactor(src, dst string, mode types.RefactorMode) error {
	abs, err := filepath.Abs(src)
	if err != nil {
		abs = src
	}
	if r.active[abs] {
		return types.NewAppErrorWithDetails(types.ErrStructure, "include cycle detected", r.rel(src), nil)
	}
	r.active[abs] = true
	defer delete(r.active, abs)

	lines, err := editor.ReadLines(src)
	if err != nil {
		return types.NewAppErrorWithDetails(types.ErrIO, "failed to read source file", src, err)
	}

	logger.Info("refactoring file",
		logger.String("src", r.rel(src)),
		logger.String("dst", dst),
		logger.String("mode", mode.String()),
		logger.Int("lines", len(lines)))

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return types.NewAppError(types.ErrIO, "failed to create output directory", err)
	}
	out, err := os.Create(dst)
	if err != nil {
		return types.NewAppErrorWithDetails(types.ErrIO, "failed to create output file", dst, err)
	}

	st := &fileState{
		src:     src,
		display: r.rel(src),
		dir:     filepath.Dir(src),
		stem:    strings.SplitN(filepath.Base(dst), ".", 2)[0],
		mode:    mode,
	}
	st.tracker = tracker.New(st.display, r.opts.TrackedEnvironments)

	w := bufio.NewWriter(out)
	for i, line := range lines {
		rewritten, err := r.processLine(st, i+1, line)
		if err != nil {
			out.Close()
			return err
		}
		if _, err := w.WriteString(rewritten); err != nil {
			out.Close()
			return types.NewAppErrorWithDetails(types.ErrIO, "failed to write output file", dst, err)
		}
	}
	if err := w.Flush(); err != nil {
		out.Close()
		return types.NewAppErrorWithDetails(types.ErrIO, "failed to write output file", dst, err)
	}
	if err := out.Close(); err != nil {
		return types.NewAppErrorWithDetails(types.ErrIO, "failed to close output file", dst, err)
	}

	for _, env := range st.tracker.Unclosed() {
		logger.Warn("environment not closed at end of file", logger.String("file", st.display), logger.String("env", env))
		r.report.Record(report.StageUnclosedEnv, st.display, 0, env, "")
	}
	r.report.AddFile(dst)
	return nil
}

// event is an environment marker or an inclusion, ordered by position.
type event struct {
	pos    int
	marker *parser.EnvMarker
	inc    *parser.Inclusion
}

func (r *Refactorer) processLine(st *fileState, lineNo int, line string) (string, error) {
	if parser.IsCommentLine(line) {
		return "", nil
	}

	cs := parser.CommentStart(line)
	code, tail := line[:cs], line[cs:]

	if parser.IsStandaloneClass(code) {
		st.standalone = true
	}

	var repls []parser.Replacement
	if def, ok := parser.FindCommandDefinition(code); ok && r.aliasSet[def.Name] {
		st.setAlias(def.Name, def.Value)
		repls = append(repls, parser.Replacement{Start: def.ValueStart, End: def.ValueEnd, Text: st.aliasTarget()})
	}

	markers := parser.FindEnvMarkers(code)
	incs := parser.FindInclusions(code, st.mode)
	events := make([]event, 0, len(markers)+len(incs))
	mi, ii := 0, 0
	for mi < len(markers) || ii < len(incs) {
		if ii >= len(incs) || (mi < len(markers) && markers[mi].Start < incs[ii].Start) {
			events = append(events, event{pos: markers[mi].Start, marker: &markers[mi]})
			mi++
		} else {
			events = append(events, event{pos: incs[ii].Start, inc: &incs[ii]})
			ii++
		}
	}

	for _, ev := range events {
		if ev.marker != nil {
			if ev.marker.Begin {
				st.tracker.Open(ev.marker.Name, lineNo)
				continue
			}
			if err := st.tracker.Close(ev.marker.Name, lineNo); err != nil {
				var se *tracker.StructuralError
				if errors.As(err, &se) {
					return "", types.NewAppErrorWithDetails(types.ErrStructure, "malformed environment nesting", se.Error(), se)
				}
				return "", err
			}
			continue
		}

		incRepls, err := r.handleInclusion(st, lineNo, *ev.inc)
		if err != nil {
			return "", err
		}
		repls = append(repls, incRepls...)
	}

	declaresBib := false
	if r.collector != nil {
		declaresBib = r.collector.ScanLine(code, st.dir, st.display)
	}

	code = parser.Splice(code, repls)
	if declaresBib {
		code = parser.ReplaceBibliographies(code, BibDir+"/"+r.opts.BibliographyFile)
	}
	return code + tail, nil
}

func (r *Refactorer) handleInclusion(st *fileState, lineNo int, inc parser.Inclusion) ([]parser.Replacement, error) {
	target := strings.TrimSpace(inc.Target)
	if target == "" || parser.IsMacroTarget(target) {
		logger.Debug("skipping inclusion without a file target",
			logger.String("file", st.display), logger.Int("line", lineNo), logger.String("target", inc.Target))
		return nil, nil
	}

	name := target
	if st.standalone {
		name = st.expandAliases(name)
	}
	name = filepath.ToSlash(name)
	src := resolve(st.dir, name)

	tex := inc.IsTeX()
	switch {
	case tex && !isFile(src) && !strings.HasSuffix(name, ".tex") && (path.Ext(name) == "" || isFile(src+".tex")):
		src += ".tex"
		name += ".tex"
	case inc.Command == "includegraphics" && path.Ext(name) == "" && !isFile(src):
		for _, ext := range graphicsExtensions {
			if isFile(src + ext) {
				src += ext
				name += ext
				break
			}
		}
	}
	exists := isFile(src)
	subDocument := tex && exists && strings.EqualFold(path.Ext(name), ".tex")

	if tex && !exists && st.mode == types.ModeRoot {
		return nil, types.NewAppErrorWithDetails(types.ErrMissingSubDocument,
			"required sub-document not found",
			fmt.Sprintf("%s:%d: %s", st.display, lineNo, name), nil)
	}

	base := path.Base(name)
	var dst, rewritten, context string
	if st.mode == types.ModeRoot {
		ctx := st.tracker.Current()
		file := base
		if ctx.Tracked {
			file = ctx.Stem() + path.Ext(base)
		}
		dst = filepath.Join(r.outDir, IncludesDir, file)
		rewritten = IncludesDir + "/" + file
		context = ctx.Label()
		st.tracker.Advance()
	} else {
		dst = filepath.Join(r.outDir, ResourcesDir, st.stem, base)
		if len(st.aliases) > 0 {
			rewritten = st.aliases[0].name + " " + st.stem + "/" + base
		} else {
			rewritten = "./" + ResourcesDir + "/" + st.stem + "/" + base
		}
		context = st.stem
	}
	if inc.Command == "include" || inc.Command == "includestandalone" {
		// Both commands append .tex themselves.
		rewritten = strings.TrimSuffix(rewritten, ".tex")
	}

	r.checkCollision(st, lineNo, src, dst)

	rec := types.InclusionRecord{
		Source:    st.display,
		Line:      lineNo,
		Command:   inc.Command,
		Context:   context,
		Original:  target,
		Rewritten: rewritten,
	}
	params := inc.Params

	if subDocument {
		if err := r.Refactor(src, dst, types.ModeSubFile); err != nil {
			return nil, err
		}
		if info, err := os.Stat(dst); err == nil {
			rec.Bytes = info.Size()
		}
	} else {
		res, err := r.relocator.Relocate(relocator.Request{Src: src, Dst: dst, Command: inc.Command, Params: params})
		if err != nil {
			return nil, types.NewAppErrorWithDetails(types.ErrIO, "failed to relocate resource", src, err)
		}
		params = res.Params
		rec.Missing = res.Missing
		rec.Cropped = res.Cropped
		rec.Bytes = res.Bytes
		rec.Pages = res.Pages
	}

	if rec.Missing {
		logger.Warn("missing resource",
			logger.String("file", st.display), logger.Int("line", lineNo), logger.String("target", name))
		r.report.Record(report.StageMissingResource, st.display, lineNo, name, "")
	} else {
		logger.Debug("relocated",
			logger.String("context", context), logger.String("from", name), logger.String("to", rewritten))
	}
	r.report.AddInclusion(rec)

	repls := []parser.Replacement{{Start: inc.TargetStart, End: inc.TargetEnd, Text: rewritten}}
	if params != inc.Params {
		repls = append(repls, parser.Replacement{Start: inc.ParamsStart, End: inc.ParamsEnd, Text: params})
	}
	return repls, nil
}

func (r *Refactorer) checkCollision(st *fileState, lineNo int, src, dst string) {
	if prev, ok := r.owners[dst]; ok && prev != src {
		msg := fmt.Sprintf("overwrites the copy of %s", r.rel(prev))
		logger.Warn("output name collision", logger.String("dst", dst), logger.String("src", src), logger.String("previous", prev))
		r.report.Record(report.StageCollision, st.display, lineNo, r.rel(dst), msg)
	}
	r.owners[dst] = src
}

func (r *Refactorer) rel(p string) string {
	if rel, err := filepath.Rel(r.rootDir, p); err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(rel)
	}
	return p
}

func resolve(dir, name string) string {
	p := filepath.FromSlash(name)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

func isFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}
