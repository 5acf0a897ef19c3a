package parser

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"latex-camera-ready/internal/types"
)

func TestParseInput(t *testing.T) {
	tmpDir := t.TempDir()
	texFile := filepath.Join(tmpDir, "paper.TEX")
	if err := os.WriteFile(texFile, []byte("\\documentclass{article}\n"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		input    string
		wantCode types.ErrorCode
	}{
		{"valid tex file", texFile, ""},
		{"empty input", "", types.ErrUnsupportedInput},
		{"pdf input", filepath.Join(tmpDir, "paper.pdf"), types.ErrUnsupportedInput},
		{"no extension", filepath.Join(tmpDir, "paper"), types.ErrUnsupportedInput},
		{"missing tex file", filepath.Join(tmpDir, "missing.tex"), types.ErrIO},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseInput(tt.input)
			if code := types.CodeOf(err); code != tt.wantCode {
				t.Fatalf("ParseInput() code = %q, want %q (err=%v)", code, tt.wantCode, err)
			}
			if err == nil && got != types.SourceTypeLaTeX {
				t.Errorf("ParseInput() = %v, want %v", got, types.SourceTypeLaTeX)
			}
		})
	}
}

func TestIsCommentLine(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"% comment\n", true},
		{"   % indented comment\n", true},
		{"\\includegraphics{a.png} % trailing\n", false},
		{"\\% escaped percent\n", false},
		{"\n", false},
	}
	for _, tt := range tests {
		if got := IsCommentLine(tt.line); got != tt.want {
			t.Errorf("IsCommentLine(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestCommentStart(t *testing.T) {
	tests := []struct {
		line string
		want int
	}{
		{"abc", 3},
		{"ab % c", 3},
		{`50\% of % rest`, 8},
		{`a\\% comment`, 3},
	}
	for _, tt := range tests {
		if got := CommentStart(tt.line); got != tt.want {
			t.Errorf("CommentStart(%q) = %d, want %d", tt.line, got, tt.want)
		}
	}
}

func TestFindEnvMarkers(t *testing.T) {
	line := `\begin{figure*}[t]\centering\begin{subfigure}{0.5\linewidth}\end{subfigure}`
	got := FindEnvMarkers(line)
	want := []struct {
		begin bool
		name  string
	}{
		{true, "figure"},
		{true, "subfigure"},
		{false, "subfigure"},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d markers, got %d", len(want), len(got))
	}
	for i, w := range want {
		if got[i].Begin != w.begin || got[i].Name != w.name {
			t.Errorf("marker %d = %+v, want %+v", i, got[i], w)
		}
	}
	if got[0].Start != 0 || got[1].Start <= got[0].Start {
		t.Error("markers not ordered by position")
	}
}

func TestFindCommandDefinition(t *testing.T) {
	tests := []struct {
		name      string
		line      string
		wantName  string
		wantValue string
		wantOK    bool
	}{
		{"starred newcommand", `\newcommand*{\FigPath}{figures/}`, `\FigPath`, "figures/", true},
		{"renewcommand without braces", `\renewcommand\DataPath{../data/}`, `\DataPath`, "../data/", true},
		{"def", `\def\FigPath{img/}`, `\FigPath`, "img/", true},
		{"command with arguments", `\newcommand{\vect}[1]{\mathbf{#1}}`, "", "", false},
		{"no definition", `\section{Intro}`, "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def, ok := FindCommandDefinition(tt.line)
			if ok != tt.wantOK {
				t.Fatalf("FindCommandDefinition() ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if def.Name != tt.wantName || def.Value != tt.wantValue {
				t.Errorf("got %q=%q, want %q=%q", def.Name, def.Value, tt.wantName, tt.wantValue)
			}
			if tt.line[def.ValueStart:def.ValueEnd] != tt.wantValue {
				t.Errorf("value span does not cover the value")
			}
		})
	}
}

func TestIsStandaloneClass(t *testing.T) {
	if !IsStandaloneClass(`\documentclass[tikz,border=2pt]{standalone}`) {
		t.Error("expected standalone class with options to match")
	}
	if !IsStandaloneClass(`\documentclass{standalone}`) {
		t.Error("expected standalone class to match")
	}
	if IsStandaloneClass(`\documentclass{article}`) {
		t.Error("article must not match")
	}
}

func TestFindInclusions_Root(t *testing.T) {
	line := `\includegraphics[width=\linewidth,trim=1 2 3 4,clip]{fig/a.png} and \input{sections/intro} \includestandalone[mode=buildnew]{tikz/plot}`
	got := FindInclusions(line, types.ModeRoot)
	if len(got) != 3 {
		t.Fatalf("expected 3 inclusions, got %d: %+v", len(got), got)
	}

	if got[0].Command != "includegraphics" || got[0].Target != "fig/a.png" ||
		got[0].Params != `[width=\linewidth,trim=1 2 3 4,clip]` {
		t.Errorf("unexpected first inclusion %+v", got[0])
	}
	if got[1].Command != "input" || got[1].Target != "sections/intro" || got[1].Params != "" {
		t.Errorf("unexpected second inclusion %+v", got[1])
	}
	if got[2].Command != "includestandalone" || got[2].Target != "tikz/plot" {
		t.Errorf("unexpected third inclusion %+v", got[2])
	}
	for _, inc := range got {
		if line[inc.TargetStart:inc.TargetEnd] != inc.Target {
			t.Errorf("target span mismatch for %s", inc.Command)
		}
		if !inc.IsTeX() && inc.Command != "includegraphics" {
			t.Errorf("unexpected IsTeX for %s", inc.Command)
		}
	}
}

func TestFindInclusions_RootIgnoresLookalikes(t *testing.T) {
	for _, line := range []string{
		`\includeonly{chap1}`,
		`\inputencoding{latin1}`,
		`\addplot table {data.csv};`,
	} {
		if got := FindInclusions(line, types.ModeRoot); len(got) != 0 {
			t.Errorf("FindInclusions(%q) = %+v, want none", line, got)
		}
	}
}

func TestFindInclusions_SubFile(t *testing.T) {
	line := `\addplot table [x=a, y=b] {\DataPath results.csv}; \addplot graphics[xmin=0]{plot.png}; \includegraphics[scale=2][1]{logo.pdf}`
	got := FindInclusions(line, types.ModeSubFile)
	if len(got) != 3 {
		t.Fatalf("expected 3 inclusions, got %d: %+v", len(got), got)
	}
	want := []struct{ command, params, target string }{
		{"table", "[x=a, y=b]", `\DataPath results.csv`},
		{"graphics", "[xmin=0]", "plot.png"},
		{"includegraphics", "[scale=2][1]", "logo.pdf"},
	}
	for i, w := range want {
		if got[i].Command != w.command || got[i].Params != w.params || got[i].Target != w.target {
			t.Errorf("inclusion %d = %+v, want %+v", i, got[i], w)
		}
	}
}

func TestFindInclusions_EmptyGroupInTarget(t *testing.T) {
	got := FindInclusions(`\includegraphics{\FigPath{}plot.png}`, types.ModeSubFile)
	if len(got) != 1 || got[0].Target != `\FigPath{}plot.png` {
		t.Errorf("FindInclusions() = %+v", got)
	}
}

func TestSplice(t *testing.T) {
	line := `\includegraphics[trim=1 2 3 4,clip]{a.png}`
	incs := FindInclusions(line, types.ModeRoot)
	if len(incs) != 1 {
		t.Fatal("expected one inclusion")
	}
	inc := incs[0]
	got := Splice(line, []Replacement{
		{Start: inc.TargetStart, End: inc.TargetEnd, Text: "includes/figure_01.png"},
		{Start: inc.ParamsStart, End: inc.ParamsEnd, Text: ""},
	})
	if got != `\includegraphics{includes/figure_01.png}` {
		t.Errorf("Splice() = %q", got)
	}

	if Splice("unchanged", nil) != "unchanged" {
		t.Error("Splice with no replacements must return the line")
	}
}

func TestFindCitations(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []string
	}{
		{"single", `see \cite{knuth84}.`, []string{"knuth84"}},
		{"multiple keys", `\cite{a:1,b-2, c_3.x}`, []string{"a:1", "b-2", "c_3.x"}},
		{"natbib variants", `\citep[p.~3]{smith} and \citet{jones}`, []string{"smith", "jones"}},
		{"nocite", `\nocite{hidden}`, []string{"hidden"}},
		{"nocite star ignored", `\nocite{*}`, nil},
		{"no citation", `\section{Intro}`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FindCitations(tt.line); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("FindCitations() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBibliographies(t *testing.T) {
	line := "\\bibliographystyle{plain}\\bibliography{refs, extra}\n"
	if got := FindBibliographies(line); !reflect.DeepEqual(got, []string{"refs", "extra"}) {
		t.Errorf("FindBibliographies() = %v", got)
	}
	want := "\\bibliographystyle{plain}\\bibliography{bib/references.bib}\n"
	if got := ReplaceBibliographies(line, "bib/references.bib"); got != want {
		t.Errorf("ReplaceBibliographies() = %q, want %q", got, want)
	}
}

func TestIsMacroTarget(t *testing.T) {
	if !IsMacroTarget(`\loadedtable`) {
		t.Error("bare macro should be a macro target")
	}
	if IsMacroTarget(`\FigPath a.png`) {
		t.Error("alias-prefixed path is not a bare macro")
	}
}
