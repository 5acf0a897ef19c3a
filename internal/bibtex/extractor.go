package bibtex

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"latex-camera-ready/internal/editor"
	"latex-camera-ready/internal/logger"
	"latex-camera-ready/internal/types"
)

// Issue is a non-fatal problem found in a database.
type Issue struct {
	Database string
	Line     int
	Key      string
	Message  string
}

func (i Issue) String() string {
	if i.Key != "" {
		return fmt.Sprintf("%s:%d: %s: %s", i.Database, i.Line, i.Key, i.Message)
	}
	return fmt.Sprintf("%s:%d: %s", i.Database, i.Line, i.Message)
}

// Result is the outcome of an extraction.
type Result struct {
	// Macros holds @string and @preamble blocks in source order.
	Macros []Entry
	// Matched maps cited keys to their entries.
	Matched map[string]Entry
	// Unmatched lists cited keys with no entry, sorted.
	Unmatched []string
	// Suspicious lists entries whose title count is not exactly one.
	Suspicious []Issue
	// Problems lists duplicates and blocks the parser could not read.
	Problems []Issue
	// Parsed counts all entries read.
	Parsed int
}

// Keys returns the matched keys in output order.
func (r *Result) Keys() []string {
	keys := make([]string, 0, len(r.Matched))
	for k := range r.Matched {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Check parses one database and reports its suspicious entries and problems
// without filtering. Every entry is included in Matched.
func Check(path string) (*Result, error) {
	res := &Result{Matched: make(map[string]Entry)}
	if err := res.load(path, nil); err != nil {
		return nil, err
	}
	return res, nil
}

// Extract reads every database and keeps the entries whose key was cited.
// An unreadable database is a BIB_ERROR.
func Extract(citations *CitationSet, databases []Database) (*Result, error) {
	res := &Result{Matched: make(map[string]Entry)}

	for _, db := range databases {
		logger.Info("parsing bibliography", logger.String("database", db.Path))
		if err := res.load(db.Path, citations); err != nil {
			return nil, err
		}
	}

	for _, key := range citations.Sorted() {
		if _, ok := res.Matched[key]; !ok {
			res.Unmatched = append(res.Unmatched, key)
		}
	}

	logger.Info("bibliography extracted",
		logger.Int("cited", citations.Len()),
		logger.Int("matched", len(res.Matched)),
		logger.Int("unmatched", len(res.Unmatched)))
	return res, nil
}

// load parses path into res. A nil filter keeps every entry.
func (r *Result) load(path string, filter *CitationSet) error {
	content, err := editor.ReadFile(path)
	if err != nil {
		return types.NewAppErrorWithDetails(types.ErrBibliography, "failed to read bibliography database", path, err)
	}

	entries, parseErrs := Parse(content)
	for _, pe := range parseErrs {
		r.Problems = append(r.Problems, Issue{Database: path, Line: pe.Line, Message: pe.Message})
		logger.Warn("unreadable bibtex block", logger.String("database", path), logger.Int("line", pe.Line), logger.String("reason", pe.Message))
	}

	for _, e := range entries {
		if e.IsMacro() {
			r.addMacro(e)
			continue
		}
		r.Parsed++

		if n := e.TitleCount(); n != 1 {
			r.Suspicious = append(r.Suspicious, Issue{
				Database: path,
				Line:     e.Line,
				Key:      e.Key,
				Message:  fmt.Sprintf("%d title entries", n),
			})
			logger.Warn("suspicious bibtex entry", logger.String("key", e.Key), logger.Int("titles", n))
		}

		if filter != nil && !filter.Contains(e.Key) {
			continue
		}
		if prev, ok := r.Matched[e.Key]; ok {
			r.Problems = append(r.Problems, Issue{
				Database: path,
				Line:     e.Line,
				Key:      e.Key,
				Message:  fmt.Sprintf("duplicate entry, replaces the one at line %d", prev.Line),
			})
			logger.Warn("duplicate bibtex entry", logger.String("key", e.Key))
		}
		r.Matched[e.Key] = e
	}
	return nil
}

func (r *Result) addMacro(e Entry) {
	for _, m := range r.Macros {
		if m.Text == e.Text {
			return
		}
	}
	r.Macros = append(r.Macros, e)
}

// Render returns the consolidated database text: macros first, then matched
// entries sorted by key, each followed by a blank line.
func (r *Result) Render() string {
	var sb strings.Builder
	for _, m := range r.Macros {
		sb.WriteString(m.Text)
		sb.WriteString("\n\n")
	}
	for _, key := range r.Keys() {
		sb.WriteString(r.Matched[key].Text)
		sb.WriteString("\n\n")
	}
	return sb.String()
}

// Write saves the consolidated database to path, creating its directory.
func (r *Result) Write(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return types.NewAppError(types.ErrIO, "failed to create bibliography directory", err)
	}
	if err := os.WriteFile(path, []byte(r.Render()), 0644); err != nil {
		return types.NewAppError(types.ErrIO, "failed to write bibliography", err)
	}
	return nil
}
