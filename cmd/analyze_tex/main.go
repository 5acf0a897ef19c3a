// Command analyze_tex prints the inclusion tree, environment counters and
// citations of a LaTeX document without writing anything.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"latex-camera-ready/internal/bibtex"
	"latex-camera-ready/internal/config"
	"latex-camera-ready/internal/editor"
	"latex-camera-ready/internal/parser"
	"latex-camera-ready/internal/tracker"
	"latex-camera-ready/internal/types"
)

type analyzer struct {
	tracked   []string
	collector *bibtex.Collector
	visited   map[string]bool
	missing   int
	counters  map[string]int
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: analyze_tex <file.tex> [tracked-environment ...]")
		os.Exit(1)
	}

	input := os.Args[1]
	if _, err := parser.ParseInput(input); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(types.ExitCode(err))
	}

	a := &analyzer{
		tracked:   config.DefaultTrackedEnvironments,
		collector: bibtex.NewCollector(),
		visited:   make(map[string]bool),
	}
	if len(os.Args) > 2 {
		a.tracked = os.Args[2:]
	}

	fmt.Println("=== Inclusion Tree ===")
	if err := a.walk(input, types.ModeRoot, 0); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(types.ExitCode(err))
	}

	fmt.Println("\n=== Environment Counters ===")
	for _, kind := range a.tracked {
		fmt.Printf("%-15s: %d\n", kind, a.counters[kind])
	}

	fmt.Println("\n=== Citations ===")
	cites := a.collector.Citations().Sorted()
	for i, key := range cites {
		fmt.Printf("  [%d] %s\n", i+1, key)
	}
	var dbs []string
	for _, db := range a.collector.Databases() {
		dbs = append(dbs, db.Path)
	}
	sort.Strings(dbs)
	fmt.Printf("Databases (%d): %s\n", len(dbs), strings.Join(dbs, ", "))

	if a.missing > 0 {
		fmt.Printf("\n%d referenced files are missing\n", a.missing)
	}
}

func (a *analyzer) walk(path string, mode types.RefactorMode, depth int) error {
	abs, _ := filepath.Abs(path)
	if a.visited[abs] {
		fmt.Printf("%s(already listed: %s)\n", strings.Repeat("  ", depth), path)
		return nil
	}
	a.visited[abs] = true

	lines, err := editor.ReadLines(path)
	if err != nil {
		return types.NewAppErrorWithDetails(types.ErrIO, "failed to read", path, err)
	}

	indent := strings.Repeat("  ", depth)
	dir := filepath.Dir(path)
	tr := tracker.New(path, a.tracked)

	for i, line := range lines {
		if parser.IsCommentLine(line) {
			continue
		}
		code := line[:parser.CommentStart(line)]
		a.collector.ScanLine(code, dir, path)

		markers := parser.FindEnvMarkers(code)
		incs := parser.FindInclusions(code, mode)
		mi := 0
		for _, inc := range incs {
			for ; mi < len(markers) && markers[mi].Start < inc.Start; mi++ {
				if err := apply(tr, markers[mi], i+1); err != nil {
					return err
				}
			}

			target := strings.TrimSpace(inc.Target)
			if parser.IsMacroTarget(target) {
				continue
			}
			resolved := filepath.Join(dir, filepath.FromSlash(target))
			if inc.IsTeX() && !exists(resolved) && !strings.HasSuffix(resolved, ".tex") {
				resolved += ".tex"
			}

			mark := " "
			if !exists(resolved) {
				mark = "!"
				a.missing++
			}
			fmt.Printf("%s%s %4d  %-12s %-16s %s\n", indent, mark, i+1, tr.Current().Label(), inc.Command, target)
			tr.Advance()

			if inc.IsTeX() && mark == " " && strings.HasSuffix(resolved, ".tex") {
				if err := a.walk(resolved, types.ModeSubFile, depth+1); err != nil {
					return err
				}
			}
		}
		for ; mi < len(markers); mi++ {
			if err := apply(tr, markers[mi], i+1); err != nil {
				return err
			}
		}
	}

	for _, env := range tr.Unclosed() {
		fmt.Printf("%swarning: %s not closed\n", indent, env)
	}
	if mode == types.ModeRoot {
		a.counters = make(map[string]int)
		for _, kind := range a.tracked {
			a.counters[kind] = tr.Counter(kind)
		}
	}
	return nil
}

func apply(tr *tracker.Tracker, m parser.EnvMarker, line int) error {
	if m.Begin {
		tr.Open(m.Name, line)
		return nil
	}
	if err := tr.Close(m.Name, line); err != nil {
		return types.NewAppError(types.ErrStructure, "malformed environment nesting", err)
	}
	return nil
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
