package parser

import (
	"regexp"
	"sort"
	"strings"

	"latex-camera-ready/internal/types"
)

var (
	// \begin{figure}, \end{table*}
	envPattern = regexp.MustCompile(`\\(begin|end)\{([A-Za-z]+)\*?\}`)

	// \newcommand*{\FigPath}{figures/}, \renewcommand\DataPath{data/}, \def\FigPath{figures/}
	newCommandPattern = regexp.MustCompile(`\\(?:(?:re|provide)?newcommand\*?\s*\{?(\\[A-Za-z@]+)\}?|def\s*(\\[A-Za-z@]+))\s*\{([^{}]*)\}`)

	// \documentclass[tikz]{standalone}
	standalonePattern = regexp.MustCompile(`\\documentclass(?:\[[^\]]*\])?\{standalone\}`)

	// Inclusion commands of the top-level document
	rootInclusionPattern = regexp.MustCompile(`\\(includegraphics|includestandalone|include|input)\*?(\[[^\]]*\])?\{((?:[^{}]|\{\})*)\}`)

	// Inclusion commands inside sub-documents
	subInclusionPattern = regexp.MustCompile(`\\(includegraphics|include|input)\*?((?:\[[^\]]*\])*)\{((?:[^{}]|\{\})*)\}`)

	// PGFPlots data/graphics sources: \addplot table [x=a] {data.csv}
	pgfplotsPattern = regexp.MustCompile(`\s(table|graphics)\s?(\[[^\]]*\])?\s*\{((?:[^{}]|\{\})*)\}`)

	// \cite{a,b}, \citep[p.~3]{a}, \nocite{c}
	citePattern = regexp.MustCompile(`\\(?:no)?cite[A-Za-z]*\*?(?:\[[^\]]*\]){0,2}\{([^{}]*)\}`)

	citeKeyPattern = regexp.MustCompile(`^[\w:\-.]+$`)

	// \bibliography{refs,extra}
	bibliographyPattern = regexp.MustCompile(`\\bibliography\{([^{}]*)\}`)

	// A target that is only a macro, e.g. \addplot table {\loadedtable}
	macroOnlyPattern = regexp.MustCompile(`^\\[A-Za-z@]+$`)
)

// IsCommentLine reports whether line is a full-line comment.
func IsCommentLine(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "%")
}

// CommentStart returns the index of the first unescaped '%' in line, or
// len(line) if there is none.
func CommentStart(line string) int {
	for i := 0; i < len(line); i++ {
		if line[i] != '%' {
			continue
		}
		backslashes := 0
		for j := i - 1; j >= 0 && line[j] == '\\'; j-- {
			backslashes++
		}
		if backslashes%2 == 0 {
			return i
		}
	}
	return len(line)
}

// EnvMarker is one \begin{...} or \end{...} occurrence.
type EnvMarker struct {
	Begin bool
	Name  string
	Start int
	End   int
}

// FindEnvMarkers returns all environment markers in line, in order.
func FindEnvMarkers(line string) []EnvMarker {
	var markers []EnvMarker
	for _, m := range envPattern.FindAllStringSubmatchIndex(line, -1) {
		markers = append(markers, EnvMarker{
			Begin: line[m[2]:m[3]] == "begin",
			Name:  line[m[4]:m[5]],
			Start: m[0],
			End:   m[1],
		})
	}
	return markers
}

// CommandDefinition is a simple macro definition whose body has no braces.
type CommandDefinition struct {
	Name       string
	Value      string
	ValueStart int
	ValueEnd   int
}

// FindCommandDefinition returns the first simple macro definition in line.
func FindCommandDefinition(line string) (CommandDefinition, bool) {
	m := newCommandPattern.FindStringSubmatchIndex(line)
	if m == nil {
		return CommandDefinition{}, false
	}
	nameStart, nameEnd := m[2], m[3]
	if nameStart < 0 {
		nameStart, nameEnd = m[4], m[5]
	}
	return CommandDefinition{
		Name:       line[nameStart:nameEnd],
		Value:      line[m[6]:m[7]],
		ValueStart: m[6],
		ValueEnd:   m[7],
	}, true
}

// IsStandaloneClass reports whether line declares the standalone document class.
func IsStandaloneClass(line string) bool {
	return standalonePattern.MatchString(line)
}

// Inclusion is one resource-inclusion command. Params is the raw option text
// including brackets ("" when absent). The spans index into the scanned line.
type Inclusion struct {
	Command     string
	Params      string
	Target      string
	Start       int
	End         int
	ParamsStart int
	ParamsEnd   int
	TargetStart int
	TargetEnd   int
}

// IsTeX reports whether the command pulls in a LaTeX sub-document.
func (inc Inclusion) IsTeX() bool {
	switch inc.Command {
	case "input", "include", "includestandalone":
		return true
	}
	return false
}

// IsMacroTarget reports whether the target is a bare macro rather than a file.
func IsMacroTarget(target string) bool {
	return macroOnlyPattern.MatchString(strings.TrimSpace(target))
}

// FindInclusions returns the inclusion commands in line recognised in mode,
// ordered by position.
func FindInclusions(line string, mode types.RefactorMode) []Inclusion {
	var found []Inclusion
	if mode == types.ModeRoot {
		found = collectInclusions(line, rootInclusionPattern, found)
	} else {
		found = collectInclusions(line, subInclusionPattern, found)
		found = collectInclusions(line, pgfplotsPattern, found)
	}
	sort.Slice(found, func(i, j int) bool { return found[i].Start < found[j].Start })
	return found
}

func collectInclusions(line string, re *regexp.Regexp, found []Inclusion) []Inclusion {
	for _, m := range re.FindAllStringSubmatchIndex(line, -1) {
		inc := Inclusion{
			Command:     line[m[2]:m[3]],
			Start:       m[0],
			End:         m[1],
			TargetStart: m[6],
			TargetEnd:   m[7],
			Target:      line[m[6]:m[7]],
		}
		if m[4] >= 0 {
			inc.Params = line[m[4]:m[5]]
			inc.ParamsStart, inc.ParamsEnd = m[4], m[5]
		} else {
			// No options: insert new ones (if any) right before the target brace.
			inc.ParamsStart, inc.ParamsEnd = m[6]-1, m[6]-1
		}
		found = append(found, inc)
	}
	return found
}

// Replacement describes a splice into a line.
type Replacement struct {
	Start int
	End   int
	Text  string
}

// Splice applies non-overlapping replacements to line. Replacements may be
// given in any order.
func Splice(line string, repls []Replacement) string {
	if len(repls) == 0 {
		return line
	}
	sorted := append([]Replacement(nil), repls...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	var sb strings.Builder
	pos := 0
	for _, r := range sorted {
		if r.Start < pos {
			continue
		}
		sb.WriteString(line[pos:r.Start])
		sb.WriteString(r.Text)
		pos = r.End
	}
	sb.WriteString(line[pos:])
	return sb.String()
}

// FindCitations returns every well-formed citation key in line, in order.
func FindCitations(line string) []string {
	var keys []string
	for _, m := range citePattern.FindAllStringSubmatch(line, -1) {
		for _, key := range strings.Split(m[1], ",") {
			key = strings.TrimSpace(key)
			if citeKeyPattern.MatchString(key) {
				keys = append(keys, key)
			}
		}
	}
	return keys
}

// FindBibliographies returns the database names declared with \bibliography{}.
func FindBibliographies(line string) []string {
	var names []string
	for _, m := range bibliographyPattern.FindAllStringSubmatch(line, -1) {
		for _, name := range strings.Split(m[1], ",") {
			if name = strings.TrimSpace(name); name != "" {
				names = append(names, name)
			}
		}
	}
	return names
}

// ReplaceBibliographies points every \bibliography{} in line at target.
func ReplaceBibliographies(line, target string) string {
	return bibliographyPattern.ReplaceAllLiteralString(line, `\bibliography{`+target+`}`)
}
