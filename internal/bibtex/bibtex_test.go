package bibtex

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"latex-camera-ready/internal/types"
)

const sampleDB = `% leading text is ignored
@string{ieee = "IEEE Transactions"}

@article{A,
  title = {First {Nested} Title},
  author = "Doe, J.",
  journal = ieee # " on Things",
  year = 2020}

@inproceedings(B,
  Title = "Second",
  booktitle = {Proc. of (something)}
)

@comment{C, title = {ignored}}

@misc{C,
  note = {no title here}
}
`

func TestParse(t *testing.T) {
	entries, errs := Parse(sampleDB)
	if len(errs) != 0 {
		t.Fatalf("unexpected parse errors: %v", errs)
	}

	var got []string
	for _, e := range entries {
		got = append(got, e.Type+":"+e.Key)
	}
	want := []string{"string:", "article:A", "inproceedings:B", "misc:C"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("entries = %v, want %v", got, want)
	}

	a := entries[1]
	if !reflect.DeepEqual(a.Fields, []string{"title", "author", "journal", "year"}) {
		t.Errorf("fields of A = %v", a.Fields)
	}
	if !strings.HasSuffix(a.Text, "year = 2020}") {
		t.Errorf("entry A should end at its closing brace, got %q", a.Text)
	}
	if a.Line != 4 {
		t.Errorf("entry A line = %d, want 4", a.Line)
	}
	if n := entries[2].TitleCount(); n != 1 {
		t.Errorf("B title count = %d, want 1", n)
	}
	if n := entries[3].TitleCount(); n != 0 {
		t.Errorf("C title count = %d, want 0", n)
	}
}

func TestParse_ClosingBraceOnSameLine(t *testing.T) {
	entries, errs := Parse("@book{K, title={T}, year={1999}} @book{L, title={U}}")
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(entries) != 2 || entries[0].Key != "K" || entries[1].Key != "L" {
		t.Fatalf("got %+v", entries)
	}
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		content string
		entries int
		errs    int
	}{
		{"unterminated", "@article{X, title={open}\n", 0, 1},
		{"missing key", "@article{, title={T}}", 0, 1},
		{"stray at sign", "mail me at someone@example.org\n@misc{M, title={T}}", 1, 0},
		{"empty", "", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, errs := Parse(tt.content)
			if len(entries) != tt.entries || len(errs) != tt.errs {
				t.Errorf("got %d entries, %d errors; want %d, %d", len(entries), len(errs), tt.entries, tt.errs)
			}
		})
	}
}

func TestTitleCount(t *testing.T) {
	entries, _ := Parse("@article{D, title={One}, TITLE={Two}, subtitle={x}}")
	if len(entries) != 1 {
		t.Fatalf("expected one entry")
	}
	if n := entries[0].TitleCount(); n != 2 {
		t.Errorf("TitleCount = %d, want 2", n)
	}
}

func TestCollector(t *testing.T) {
	tmpDir := t.TempDir()
	c := NewCollector()

	c.ScanLine(`See \cite{A,B} and \citep[p.~3][]{C}.`, tmpDir, "main.tex")
	c.ScanLine(`\nocite{bad key}\citet*{D}`, tmpDir, "main.tex")
	if !c.ScanLine(`\bibliography{refs,refs}`, tmpDir, "main.tex") {
		t.Error("ScanLine should report the bibliography declaration")
	}
	if c.ScanLine(`no declaration`, tmpDir, "main.tex") {
		t.Error("ScanLine reported a declaration that is not there")
	}

	want := []string{"A", "B", "C", "D"}
	if got := c.Citations().Sorted(); !reflect.DeepEqual(got, want) {
		t.Errorf("citations = %v, want %v", got, want)
	}

	dbs := c.Databases()
	if len(dbs) != 1 {
		t.Fatalf("databases = %+v, want one", dbs)
	}
	if dbs[0].Path != filepath.Join(tmpDir, "refs.bib") {
		t.Errorf("database path = %s", dbs[0].Path)
	}
}

func TestResolveDatabase(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, "plain"), []byte(""), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		want string
	}{
		{"refs", filepath.Join(tmpDir, "refs.bib")},
		{"refs.bib", filepath.Join(tmpDir, "refs.bib")},
		{"plain", filepath.Join(tmpDir, "plain")},
		{"sub/lib", filepath.Join(tmpDir, "sub", "lib.bib")},
	}
	for _, tt := range tests {
		if got := ResolveDatabase(tmpDir, tt.name); got != tt.want {
			t.Errorf("ResolveDatabase(%q) = %s, want %s", tt.name, got, tt.want)
		}
	}
}

func TestExtract(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "refs.bib")
	content := "@article{C,\n  title={Third}\n}\n@article{A,\n  title={First}\n}\n@article{B,\n  title={Second}\n}\n"
	if err := os.WriteFile(dbPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	res, err := Extract(NewCitationSet("B", "A", "Z"), []Database{{Name: "refs", Path: dbPath}})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if got := res.Keys(); !reflect.DeepEqual(got, []string{"A", "B"}) {
		t.Errorf("matched keys = %v", got)
	}
	if !reflect.DeepEqual(res.Unmatched, []string{"Z"}) {
		t.Errorf("unmatched = %v", res.Unmatched)
	}
	if res.Parsed != 3 {
		t.Errorf("parsed = %d, want 3", res.Parsed)
	}

	want := "@article{A,\n  title={First}\n}\n\n@article{B,\n  title={Second}\n}\n\n"
	if got := res.Render(); got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}

	out := filepath.Join(tmpDir, "final", "bib", "references.bib")
	if err := res.Write(out); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil || string(data) != want {
		t.Errorf("written database = %q (%v)", data, err)
	}
}

func TestExtract_MacrosDuplicatesAndSuspicious(t *testing.T) {
	tmpDir := t.TempDir()
	first := filepath.Join(tmpDir, "a.bib")
	second := filepath.Join(tmpDir, "b.bib")
	os.WriteFile(first, []byte("@string{j = {J}}\n@article{K, title={Old}}\n@misc{N, note={x}}\n"), 0644)
	os.WriteFile(second, []byte("@string{j = {J}}\n@preamble{\"\\newcommand{\\x}{}\"}\n@article{K, title={New}}\n"), 0644)

	res, err := Extract(NewCitationSet("K"), []Database{{Path: first}, {Path: second}})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if len(res.Macros) != 2 {
		t.Errorf("macros = %d, want 2 (identical @string kept once)", len(res.Macros))
	}
	if !strings.Contains(res.Matched["K"].Text, "New") {
		t.Errorf("later duplicate should win, got %q", res.Matched["K"].Text)
	}
	if len(res.Problems) != 1 || res.Problems[0].Key != "K" {
		t.Errorf("problems = %+v", res.Problems)
	}
	if len(res.Suspicious) != 1 || res.Suspicious[0].Key != "N" {
		t.Errorf("suspicious = %+v", res.Suspicious)
	}
	if !strings.HasPrefix(res.Render(), "@string{j = {J}}\n\n@preamble") {
		t.Errorf("macros should be emitted first: %q", res.Render())
	}
}

func TestExtract_MissingDatabase(t *testing.T) {
	_, err := Extract(NewCitationSet("A"), []Database{{Path: filepath.Join(t.TempDir(), "nope.bib")}})
	if err == nil {
		t.Fatal("expected an error for a missing database")
	}
	if code := types.CodeOf(err); code != types.ErrBibliography {
		t.Errorf("error code = %s, want %s", code, types.ErrBibliography)
	}
}

func TestCheck(t *testing.T) {
	path := filepath.Join(t.TempDir(), "all.bib")
	os.WriteFile(path, []byte("@article{A, title={T}}\n@article{B, title={T}, title={U}}\n@article{A, title={T2}}\n"), 0644)

	res, err := Check(path)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if len(res.Matched) != 2 {
		t.Errorf("matched = %d, want 2", len(res.Matched))
	}
	if len(res.Suspicious) != 1 || len(res.Problems) != 1 {
		t.Errorf("suspicious = %+v, problems = %+v", res.Suspicious, res.Problems)
	}
}
