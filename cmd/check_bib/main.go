// Command check_bib parses BibTeX databases with the exporter's parser and
// reports entries that would be flagged during extraction.
package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"

	"latex-camera-ready/internal/bibtex"
	"latex-camera-ready/internal/types"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: check_bib <file.bib> [file.bib ...]")
		os.Exit(1)
	}

	exit := 0
	for _, path := range os.Args[1:] {
		res, err := bibtex.Check(path)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			exit = types.ExitCode(err)
			continue
		}

		size := ""
		if info, err := os.Stat(path); err == nil {
			size = humanize.Bytes(uint64(info.Size()))
		}
		fmt.Printf("=== %s (%s) ===\n", path, size)
		fmt.Printf("Entries: %d, @string/@preamble blocks: %d\n", res.Parsed, len(res.Macros))

		for _, is := range res.Suspicious {
			fmt.Printf("  suspicious  %s\n", is)
		}
		for _, is := range res.Problems {
			fmt.Printf("  problem     %s\n", is)
		}
		if len(res.Suspicious)+len(res.Problems) > 0 && exit == 0 {
			exit = 1
		}
	}
	os.Exit(exit)
}
