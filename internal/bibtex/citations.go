package bibtex

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"latex-camera-ready/internal/parser"
)

// CitationSet is the set of keys cited anywhere in the document.
type CitationSet struct {
	keys map[string]bool
}

// NewCitationSet creates an empty set.
func NewCitationSet(keys ...string) *CitationSet {
	s := &CitationSet{keys: make(map[string]bool)}
	s.Add(keys...)
	return s
}

// Add inserts keys into the set.
func (s *CitationSet) Add(keys ...string) {
	for _, k := range keys {
		s.keys[k] = true
	}
}

// Contains reports whether key was cited.
func (s *CitationSet) Contains(key string) bool {
	return s.keys[key]
}

// Len returns the number of distinct keys.
func (s *CitationSet) Len() int {
	return len(s.keys)
}

// Sorted returns the keys in lexical order.
func (s *CitationSet) Sorted() []string {
	out := make([]string, 0, len(s.keys))
	for k := range s.keys {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Database is one declared BibTeX database.
type Database struct {
	// Name as written in \bibliography{}.
	Name string
	// Path on disk after resolution.
	Path string
	// Source is the file that declared it.
	Source string
}

// Collector gathers citation keys and database declarations while the
// document is scanned.
type Collector struct {
	citations *CitationSet
	databases []Database
	seen      map[string]bool
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{
		citations: NewCitationSet(),
		seen:      make(map[string]bool),
	}
}

// ScanLine records the citations and \bibliography declarations in code,
// which must already have its comment stripped. Database names are resolved
// against baseDir, the directory of source. It reports whether code declares
// a database.
func (c *Collector) ScanLine(code, baseDir, source string) bool {
	c.citations.Add(parser.FindCitations(code)...)

	names := parser.FindBibliographies(code)
	for _, name := range names {
		path := ResolveDatabase(baseDir, name)
		if c.seen[path] {
			continue
		}
		c.seen[path] = true
		c.databases = append(c.databases, Database{Name: name, Path: path, Source: source})
	}
	return len(names) > 0
}

// Citations returns the collected citation set.
func (c *Collector) Citations() *CitationSet {
	return c.citations
}

// Databases returns the declared databases in declaration order.
func (c *Collector) Databases() []Database {
	return c.databases
}

// ResolveDatabase maps a \bibliography name to a file path. BibTeX appends
// ".bib" itself, so the extension is added unless the bare name exists.
func ResolveDatabase(baseDir, name string) string {
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, name)
	}
	if strings.HasSuffix(path, ".bib") {
		return path
	}
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		return path
	}
	return path + ".bib"
}
