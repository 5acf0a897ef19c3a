// Package bibtex collects the citation keys used by a document and extracts
// the matching entries from its BibTeX databases.
package bibtex

import (
	"fmt"
	"strings"
	"unicode"
)

// Entry is one raw BibTeX block.
type Entry struct {
	// Type is the lower-cased entry type, e.g. "article" or "string".
	Type string
	// Key is the citation key; empty for @string and @preamble.
	Key string
	// Text is the raw block from '@' to the closing delimiter.
	Text string
	// Fields lists the field names in order of appearance.
	Fields []string
	// Line is the 1-based line of the '@'.
	Line int
}

// IsMacro reports whether the entry is a @string or @preamble block.
func (e Entry) IsMacro() bool {
	return e.Type == "string" || e.Type == "preamble"
}

// TitleCount returns how many title fields the entry has.
func (e Entry) TitleCount() int {
	n := 0
	for _, f := range e.Fields {
		if strings.EqualFold(f, "title") {
			n++
		}
	}
	return n
}

// ParseError describes a block the parser had to give up on.
type ParseError struct {
	Line    int
	Message string
}

func (e ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// Parse splits a BibTeX database into entries by tracking brace depth, so
// closing delimiters may appear anywhere on a line. Text outside entries and
// @comment blocks are skipped.
func Parse(content string) ([]Entry, []ParseError) {
	var (
		entries []Entry
		errs    []ParseError
	)

	i := 0
	for {
		at := strings.IndexByte(content[i:], '@')
		if at < 0 {
			break
		}
		start := i + at
		line := 1 + strings.Count(content[:start], "\n")

		j := start + 1
		for j < len(content) && (isIdentChar(content[j])) {
			j++
		}
		entryType := strings.ToLower(content[start+1 : j])
		for j < len(content) && unicode.IsSpace(rune(content[j])) {
			j++
		}
		if entryType == "" || j >= len(content) || (content[j] != '{' && content[j] != '(') {
			// A stray '@' in free text.
			i = start + 1
			continue
		}

		end, ok := matchDelimiter(content, j)
		if !ok {
			errs = append(errs, ParseError{Line: line, Message: fmt.Sprintf("unterminated @%s entry", entryType)})
			break
		}
		i = end + 1

		if entryType == "comment" {
			continue
		}

		entry := Entry{
			Type: entryType,
			Text: content[start : end+1],
			Line: line,
		}
		body := content[j+1 : end]
		if !entry.IsMacro() {
			comma := strings.IndexByte(body, ',')
			if comma < 0 {
				entry.Key = strings.TrimSpace(body)
				body = ""
			} else {
				entry.Key = strings.TrimSpace(body[:comma])
				body = body[comma+1:]
			}
			if entry.Key == "" {
				errs = append(errs, ParseError{Line: line, Message: fmt.Sprintf("@%s entry without a key", entryType)})
				continue
			}
		}
		entry.Fields = fieldNames(body)
		entries = append(entries, entry)
	}

	return entries, errs
}

func isIdentChar(c byte) bool {
	return c < 0x80 && (unicode.IsLetter(rune(c)) || unicode.IsDigit(rune(c)) || c == '_' || c == '-')
}

// matchDelimiter returns the index of the delimiter closing the one at open.
// Braces nest; a '(' entry ends at the first ')' outside braces.
func matchDelimiter(content string, open int) (int, bool) {
	depth := 0
	paren := content[open] == '('
	for k := open; k < len(content); k++ {
		switch content[k] {
		case '{':
			depth++
		case '}':
			depth--
			if !paren && depth == 0 {
				return k, true
			}
			if depth < 0 {
				return 0, false
			}
		case ')':
			if paren && depth == 0 && k > open {
				return k, true
			}
		}
	}
	return 0, false
}

// fieldNames returns the names of "name = value" pairs in an entry body.
func fieldNames(body string) []string {
	var names []string
	i := 0
	for i < len(body) {
		for i < len(body) && (unicode.IsSpace(rune(body[i])) || body[i] == ',') {
			i++
		}
		start := i
		for i < len(body) && !strings.ContainsRune("=,{}\"#", rune(body[i])) && !unicode.IsSpace(rune(body[i])) {
			i++
		}
		name := body[start:i]
		for i < len(body) && unicode.IsSpace(rune(body[i])) {
			i++
		}
		if name == "" || i >= len(body) || body[i] != '=' {
			i = skipValue(body, i)
			continue
		}
		i++
		names = append(names, name)
		i = skipValue(body, i)
	}
	return names
}

// skipValue advances past a (possibly '#'-concatenated) field value and stops
// at the comma that separates it from the next field.
func skipValue(body string, i int) int {
	for i < len(body) {
		switch c := body[i]; {
		case c == ',':
			return i
		case c == '{':
			depth := 0
			for ; i < len(body); i++ {
				if body[i] == '{' {
					depth++
				} else if body[i] == '}' {
					depth--
					if depth == 0 {
						break
					}
				}
			}
			i++
		case c == '"':
			i++
			depth := 0
			for ; i < len(body); i++ {
				if body[i] == '{' {
					depth++
				} else if body[i] == '}' {
					depth--
				} else if body[i] == '"' && depth == 0 {
					break
				}
			}
			i++
		default:
			i++
		}
	}
	return i
}
