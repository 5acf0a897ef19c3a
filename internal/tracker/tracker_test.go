package tracker

import (
	"errors"
	"math/rand"
	"reflect"
	"testing"
	"testing/quick"
)

var kinds = []string{"figure", "table", "algorithm"}

func quickConfig() *quick.Config {
	return &quick.Config{
		MaxCount: 200,
		Rand:     rand.New(rand.NewSource(42)),
	}
}

func TestOpenClose(t *testing.T) {
	tr := New("main.tex", kinds)

	tr.Open("document", 1)
	tr.Open("figure", 2)
	if got := tr.Current(); got.Env != "figure" || got.Kind != "figure" || got.Counter != 1 || got.SubItem != 0 {
		t.Fatalf("unexpected context %+v", got)
	}

	if err := tr.Close("figure", 5); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := tr.Close("document", 6); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if tr.Depth() != 0 {
		t.Errorf("expected empty stack, depth %d", tr.Depth())
	}
}

func TestCloseEmptyStack(t *testing.T) {
	tr := New("chapter.tex", kinds)
	err := tr.Close("figure", 12)

	var se *StructuralError
	if !errors.As(err, &se) {
		t.Fatalf("expected StructuralError, got %v", err)
	}
	if se.File != "chapter.tex" || se.Line != 12 || se.Env != "figure" {
		t.Errorf("unexpected error fields %+v", se)
	}
}

func TestCloseMismatch(t *testing.T) {
	tr := New("main.tex", kinds)
	tr.Open("figure", 3)

	err := tr.Close("table", 9)
	var se *StructuralError
	if !errors.As(err, &se) {
		t.Fatalf("expected StructuralError, got %v", err)
	}
	if se.Line != 9 {
		t.Errorf("expected line 9, got %d", se.Line)
	}
	if tr.Depth() != 1 {
		t.Error("mismatched close must not pop")
	}
}

func TestSubItems(t *testing.T) {
	tr := New("main.tex", kinds)
	tr.Open("figure", 1)

	var stems []string
	for i := 0; i < 3; i++ {
		stems = append(stems, tr.Current().Stem())
		tr.Advance()
	}
	if !reflect.DeepEqual(stems, []string{"figure_01", "figure_01b", "figure_01c"}) {
		t.Errorf("unexpected stems %v", stems)
	}

	if err := tr.Close("figure", 4); err != nil {
		t.Fatal(err)
	}
	tr.Open("figure", 5)
	if got := tr.Current().Stem(); got != "figure_02" {
		t.Errorf("sub-item not reset on new figure: %s", got)
	}
}

func TestNestedUntrackedUsesTrackedAncestor(t *testing.T) {
	tr := New("main.tex", kinds)
	tr.Open("document", 1)
	tr.Open("table", 2)
	tr.Open("center", 3)
	tr.Open("tabular", 4)

	ctx := tr.Current()
	if ctx.Env != "tabular" || ctx.Kind != "table" || !ctx.Tracked {
		t.Errorf("unexpected context %+v", ctx)
	}
	if ctx.Label() != "table 01" {
		t.Errorf("unexpected label %q", ctx.Label())
	}
}

func TestUntrackedContext(t *testing.T) {
	tr := New("main.tex", kinds)
	if got := tr.Current(); got.Tracked || got.Label() != "document" || got.Stem() != "" {
		t.Errorf("unexpected top-level context %+v", got)
	}
	tr.Open("itemize", 1)
	if got := tr.Current(); got.Tracked || got.Env != "itemize" {
		t.Errorf("unexpected untracked context %+v", got)
	}
}

func TestUnclosed(t *testing.T) {
	tr := New("main.tex", kinds)
	tr.Open("document", 1)
	tr.Open("figure", 7)
	want := []string{"document (line 1)", "figure (line 7)"}
	if got := tr.Unclosed(); !reflect.DeepEqual(got, want) {
		t.Errorf("Unclosed() = %v, want %v", got, want)
	}
}

func TestSubItemSuffix(t *testing.T) {
	tests := []struct {
		index int
		want  string
	}{
		{0, ""}, {1, "b"}, {2, "c"}, {21, "v"}, {22, "w"}, {25, "z"}, {26, "_26"},
	}
	for _, tt := range tests {
		if got := SubItemSuffix(tt.index); got != tt.want {
			t.Errorf("SubItemSuffix(%d) = %q, want %q", tt.index, got, tt.want)
		}
	}
}

// Property: the Nth opening of a tracked kind sees counter N.
func TestProperty_CounterIsOccurrenceIndex(t *testing.T) {
	f := func(choices []uint8) bool {
		tr := New("main.tex", kinds)
		seen := map[string]int{}
		for i, c := range choices {
			kind := kinds[int(c)%len(kinds)]
			tr.Open(kind, i+1)
			seen[kind]++
			ctx := tr.Current()
			if ctx.Counter != seen[kind] || ctx.SubItem != 0 {
				return false
			}
			if err := tr.Close(kind, i+1); err != nil {
				return false
			}
		}
		return true
	}
	if err := quick.Check(f, quickConfig()); err != nil {
		t.Error(err)
	}
}

// Property: balanced begin/end sequences leave the stack empty.
func TestProperty_BalancedLeavesEmptyStack(t *testing.T) {
	names := []string{"document", "figure", "itemize", "table", "center"}
	f := func(choices []uint8) bool {
		tr := New("main.tex", kinds)
		var opened []string
		for i, c := range choices {
			name := names[int(c)%len(names)]
			tr.Open(name, i)
			opened = append(opened, name)
		}
		for i := len(opened) - 1; i >= 0; i-- {
			if err := tr.Close(opened[i], i); err != nil {
				return false
			}
		}
		return tr.Depth() == 0
	}
	if err := quick.Check(f, quickConfig()); err != nil {
		t.Error(err)
	}
}
