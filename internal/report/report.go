// Package report aggregates what an export run did and the recoverable
// problems it ran into, and renders the end-of-run summary.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"latex-camera-ready/internal/types"
)

// Stage 问题阶段枚举
type Stage string

const (
	StageMissingResource   Stage = "missing_resource"     // referenced file not on disk
	StageUnmatchedCitation Stage = "unmatched_citation"   // cited key without database entry
	StageSuspiciousEntry   Stage = "suspicious_entry"     // entry without exactly one title
	StageBibliography      Stage = "bibliography"         // duplicate or unreadable entry
	StageCollision         Stage = "collision"            // two sources, one output name
	StageUnclosedEnv       Stage = "unclosed_environment" // environment still open at EOF
)

// Issue is one recoverable problem.
type Issue struct {
	Stage     Stage     `json:"stage"`
	Source    string    `json:"source,omitempty"`
	Line      int       `json:"line,omitempty"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Report collects the outcome of one run. It is safe for concurrent use.
type Report struct {
	mu         sync.RWMutex
	Input      string                  `json:"input"`
	Output     string                  `json:"output"`
	Files      []string                `json:"files"`
	Inclusions []types.InclusionRecord `json:"inclusions"`
	Issues     []Issue                 `json:"issues"`
	Citations  []string                `json:"citations,omitempty"`
	Databases  []string                `json:"databases,omitempty"`
	Matched    int                     `json:"matched"`
}

// New creates an empty report for a run from input to output.
func New(input, output string) *Report {
	return &Report{Input: input, Output: output}
}

// Record adds an issue.
func (r *Report) Record(stage Stage, source string, line int, subject, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Issues = append(r.Issues, Issue{
		Stage:     stage,
		Source:    source,
		Line:      line,
		Subject:   subject,
		Message:   message,
		Timestamp: time.Now(),
	})
}

// AddFile records a rewritten source file.
func (r *Report) AddFile(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Files = append(r.Files, path)
}

// AddInclusion records one rewritten inclusion command.
func (r *Report) AddInclusion(rec types.InclusionRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Inclusions = append(r.Inclusions, rec)
}

// SetBibliography records the citation pass outcome.
func (r *Report) SetBibliography(citations, databases []string, matched int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Citations = append([]string(nil), citations...)
	r.Databases = append([]string(nil), databases...)
	r.Matched = matched
}

// IssuesByStage returns copies of the issues of one stage, in record order.
func (r *Report) IssuesByStage(stage Stage) []Issue {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Issue
	for _, is := range r.Issues {
		if is.Stage == stage {
			out = append(out, is)
		}
	}
	return out
}

// WarningCount returns the number of recorded issues.
func (r *Report) WarningCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.Issues)
}

// MissingBySource groups missing resources by the file that references them.
func (r *Report) MissingBySource() map[string][]string {
	missing := make(map[string][]string)
	for _, is := range r.IssuesByStage(StageMissingResource) {
		missing[is.Source] = append(missing[is.Source], is.Subject)
	}
	return missing
}

// TotalBytes sums the sizes of the relocated resources.
func (r *Report) TotalBytes() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var total int64
	for _, inc := range r.Inclusions {
		total += inc.Bytes
	}
	return total
}

// StageDisplayName 获取阶段的显示名称
func StageDisplayName(stage Stage) string {
	switch stage {
	case StageMissingResource:
		return "missing resource"
	case StageUnmatchedCitation:
		return "unmatched citation"
	case StageSuspiciousEntry:
		return "suspicious bibtex entry"
	case StageBibliography:
		return "bibliography problem"
	case StageCollision:
		return "output name collision"
	case StageUnclosedEnv:
		return "unclosed environment"
	default:
		return string(stage)
	}
}

// WriteJSON saves the report as indented JSON.
func (r *Report) WriteJSON(path string) error {
	r.mu.RLock()
	data, err := json.MarshalIndent(r, "", "  ")
	r.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report file: %w", err)
	}
	return nil
}

// Render writes the end-of-run summary. Missing dependencies and warnings are
// always listed; verbose adds the inclusion table and the citation list.
func (r *Report) Render(w io.Writer, verbose bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if verbose {
		r.renderInclusions(w)
		r.renderCitations(w)
	}

	missing := make(map[string][]string)
	var sources []string
	for _, is := range r.Issues {
		if is.Stage != StageMissingResource {
			continue
		}
		if _, ok := missing[is.Source]; !ok {
			sources = append(sources, is.Source)
		}
		missing[is.Source] = append(missing[is.Source], is.Subject)
	}
	for _, src := range sources {
		fmt.Fprintf(w, "\nMissing dependencies in %s:\n", src)
		for _, name := range missing[src] {
			fmt.Fprintf(w, "   %s\n", name)
		}
	}

	var warnings []Issue
	for _, is := range r.Issues {
		if is.Stage != StageMissingResource {
			warnings = append(warnings, is)
		}
	}
	if len(warnings) > 0 {
		fmt.Fprintf(w, "\nWarnings:\n")
		for _, is := range warnings {
			loc := is.Source
			if is.Line > 0 {
				loc = fmt.Sprintf("%s:%d", is.Source, is.Line)
			}
			msg := is.Subject
			if is.Message != "" {
				msg += ": " + is.Message
			}
			if loc != "" {
				fmt.Fprintf(w, "  [%s] %s (%s)\n", StageDisplayName(is.Stage), msg, loc)
			} else {
				fmt.Fprintf(w, "  [%s] %s\n", StageDisplayName(is.Stage), msg)
			}
		}
	}

	var total int64
	copied := 0
	for _, inc := range r.Inclusions {
		total += inc.Bytes
		if !inc.Missing {
			copied++
		}
	}
	fmt.Fprintf(w, "\nExported %s to %s: %d files rewritten, %s of %s inclusions relocated (%s), %s\n",
		r.Input, r.Output, len(r.Files),
		humanize.Comma(int64(copied)), humanize.Comma(int64(len(r.Inclusions))),
		humanize.Bytes(uint64(total)),
		plural(len(r.Issues), "warning"))
}

func (r *Report) renderInclusions(w io.Writer) {
	if len(r.Inclusions) == 0 {
		return
	}
	bySource := make(map[string][]types.InclusionRecord)
	var sources []string
	for _, inc := range r.Inclusions {
		if _, ok := bySource[inc.Source]; !ok {
			sources = append(sources, inc.Source)
		}
		bySource[inc.Source] = append(bySource[inc.Source], inc)
	}

	for _, src := range sources {
		fmt.Fprintf(w, "\n%s:\n", src)
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for _, inc := range bySource[src] {
			var notes []string
			if inc.Missing {
				notes = append(notes, "missing")
			} else {
				notes = append(notes, humanize.Bytes(uint64(inc.Bytes)))
			}
			if inc.Cropped {
				notes = append(notes, "cropped")
			}
			if inc.Pages > 0 {
				notes = append(notes, plural(inc.Pages, "page"))
			}
			fmt.Fprintf(tw, "  %d\t%s\t%s\t%s -> %s\t%s\n",
				inc.Line, inc.Context, inc.Command, inc.Original, inc.Rewritten, strings.Join(notes, ", "))
		}
		tw.Flush()
	}
}

func (r *Report) renderCitations(w io.Writer) {
	if len(r.Citations) == 0 && len(r.Databases) == 0 {
		return
	}
	cites := append([]string(nil), r.Citations...)
	sort.Strings(cites)
	fmt.Fprintf(w, "\nFound %d citations:\n", len(cites))
	for i, key := range cites {
		fmt.Fprintf(w, "  [%d] %s\n", i+1, key)
	}
	fmt.Fprintf(w, "Found %d BibTeX databases: %s\n", len(r.Databases), strings.Join(r.Databases, ", "))
	fmt.Fprintf(w, "Matched %d entries\n", r.Matched)
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", word)
	}
	return fmt.Sprintf("%s %ss", humanize.Comma(int64(n)), word)
}
