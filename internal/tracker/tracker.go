// Package tracker follows LaTeX environment nesting while a file is scanned and
// derives collision-free names for the resources included inside numbered
// environments such as figures and tables.
package tracker

import (
	"fmt"
	"strconv"
)

// StructuralError reports malformed environment nesting.
type StructuralError struct {
	File   string
	Line   int
	Env    string
	Reason string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("%s:%d: %s (environment %q)", e.File, e.Line, e.Reason, e.Env)
}

type frame struct {
	name string
	line int
}

// Tracker is the per-file environment stack with per-kind counters.
type Tracker struct {
	file     string
	stack    []frame
	tracked  map[string]bool
	counters map[string]int
	subItem  int
}

// New creates a Tracker for file that numbers the given environment kinds.
func New(file string, trackedKinds []string) *Tracker {
	t := &Tracker{
		file:     file,
		tracked:  make(map[string]bool, len(trackedKinds)),
		counters: make(map[string]int, len(trackedKinds)),
	}
	for _, kind := range trackedKinds {
		t.tracked[kind] = true
		t.counters[kind] = 0
	}
	return t
}

// Open pushes name. Opening a tracked kind increments its counter and resets
// the sub-item index.
func (t *Tracker) Open(name string, line int) {
	t.stack = append(t.stack, frame{name: name, line: line})
	if t.tracked[name] {
		t.counters[name]++
		t.subItem = 0
	}
}

// Close pops the innermost environment, which must be name.
func (t *Tracker) Close(name string, line int) error {
	if len(t.stack) == 0 {
		return &StructuralError{File: t.file, Line: line, Env: name, Reason: "\\end without matching \\begin"}
	}
	top := t.stack[len(t.stack)-1]
	if top.name != name {
		return &StructuralError{
			File:   t.file,
			Line:   line,
			Env:    name,
			Reason: fmt.Sprintf("\\end does not match \\begin{%s} on line %d", top.name, top.line),
		}
	}
	t.stack = t.stack[:len(t.stack)-1]
	return nil
}

// Depth returns the number of open environments.
func (t *Tracker) Depth() int {
	return len(t.stack)
}

// Counter returns how many environments of kind have been opened so far.
func (t *Tracker) Counter(kind string) int {
	return t.counters[kind]
}

// Unclosed lists the environments still open, outermost first, as "name (line N)".
func (t *Tracker) Unclosed() []string {
	out := make([]string, 0, len(t.stack))
	for _, f := range t.stack {
		out = append(out, fmt.Sprintf("%s (line %d)", f.name, f.line))
	}
	return out
}

// Context describes where in the environment tree the scanner currently is.
type Context struct {
	// Env is the innermost open environment ("" at top level).
	Env string
	// Kind is the innermost tracked environment enclosing the position, if any.
	Kind    string
	Counter int
	SubItem int
	Tracked bool
}

// Current returns the context at the current position. A sub-figure inside a
// figure belongs to the figure, so the nearest tracked ancestor names it.
func (t *Tracker) Current() Context {
	var ctx Context
	if len(t.stack) > 0 {
		ctx.Env = t.stack[len(t.stack)-1].name
	}
	for i := len(t.stack) - 1; i >= 0; i-- {
		name := t.stack[i].name
		if t.tracked[name] {
			ctx.Kind = name
			ctx.Counter = t.counters[name]
			ctx.SubItem = t.subItem
			ctx.Tracked = true
			break
		}
	}
	return ctx
}

// Advance moves to the next sub-item of the current tracked environment.
func (t *Tracker) Advance() {
	t.subItem++
}

// Label is the human-readable context, e.g. "figure 03b" or "document".
func (c Context) Label() string {
	if !c.Tracked {
		return "document"
	}
	return fmt.Sprintf("%s %02d%s", c.Kind, c.Counter, SubItemSuffix(c.SubItem))
}

// Stem is the file name stem for a resource in this context, e.g. "figure_03b".
// It is empty outside tracked environments.
func (c Context) Stem() string {
	if !c.Tracked {
		return ""
	}
	return fmt.Sprintf("%s_%02d%s", c.Kind, c.Counter, SubItemSuffix(c.SubItem))
}

// SubItemSuffix maps a sub-item index to its letter suffix. The first
// inclusion has no suffix, the second is "b", the third "c" and so on; past
// "z" the numeric index is used.
func SubItemSuffix(index int) string {
	switch {
	case index <= 0:
		return ""
	case index < 26:
		return string(rune('a' + index))
	default:
		return "_" + strconv.Itoa(index)
	}
}
