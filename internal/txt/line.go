// Package txt provides line-oriented reading utilities for the knowledge
// text formats (.rules, .ops, .conf, .pref, foci dumps).
// A LineReader hands out one logical line at a time with comments stripped,
// and lets parsers peek, consume prefixes, and pull whitespace tokens.
package txt

import (
	"bufio"
	"os"
	"strings"
)

// LineReader walks a knowledge file line by line.
// Comments begin with "//" or ";" and run to end of line.
type LineReader struct {
	f     *os.File
	sc    *bufio.Scanner
	head  string
	valid bool
	read  int
	eof   bool
	err   error
}

// Open starts reading the named file.
func Open(fname string) (*LineReader, error) {
	f, err := os.Open(fname)
	if err != nil {
		return nil, err
	}
	return &LineReader{f: f, sc: bufio.NewScanner(f)}, nil
}

// FromString builds a reader over in-memory text (mostly for tests).
func FromString(src string) *LineReader {
	return &LineReader{sc: bufio.NewScanner(strings.NewReader(src))}
}

// Close releases the underlying file (no-op for string readers).
func (in *LineReader) Close() error {
	if in.f == nil {
		return nil
	}
	return in.f.Close()
}

// Last reports the number of the most recently read line (1-based).
func (in *LineReader) Last() int { return in.read }

// End reports whether input is exhausted.
func (in *LineReader) End() bool { return in.eof && !in.valid }

// Error reports any underlying read error.
func (in *LineReader) Error() bool { return in.err != nil }

// strip removes the comment tail and surrounding whitespace from a raw line.
func strip(raw string) string {
	if i := strings.Index(raw, "//"); i >= 0 {
		raw = raw[:i]
	}
	if i := strings.Index(raw, ";"); i >= 0 {
		raw = raw[:i]
	}
	return strings.TrimSpace(raw)
}

// advance pulls the next raw line into head, setting eof at the end.
func (in *LineReader) advance() bool {
	if !in.sc.Scan() {
		in.err = in.sc.Err()
		in.eof = true
		in.valid = false
		return false
	}
	in.read++
	in.head = strip(in.sc.Text())
	in.valid = true
	return true
}

// Next returns the current line, reading a new one if the current line has
// been consumed. With force, the current line is always discarded first.
// Returns "" with ok=false at end of input.
func (in *LineReader) Next(force bool) (string, bool) {
	if force {
		in.valid = false
	}
	if !in.valid && !in.advance() {
		return "", false
	}
	return in.head, true
}

// NextContent skips blank lines and returns the next line with content.
func (in *LineReader) NextContent() (string, bool) {
	for {
		ln, ok := in.Next(false)
		if !ok {
			return "", false
		}
		if ln != "" {
			return ln, true
		}
		in.valid = false
	}
}

// NextBlank discards lines until a blank line is found (error recovery).
func (in *LineReader) NextBlank() bool {
	for {
		ln, ok := in.Next(true)
		if !ok {
			return false
		}
		if ln == "" {
			return true
		}
	}
}

// Head returns the current line without consuming it ("" if none).
func (in *LineReader) Head() string {
	if !in.valid {
		return ""
	}
	return in.head
}

// Blank reports whether the current line is empty.
func (in *LineReader) Blank() bool { return in.head == "" }

// Begins checks whether the current line starts with the given prefix.
func (in *LineReader) Begins(pre string) bool {
	return in.valid && strings.HasPrefix(in.head, pre)
}

// First checks whether the current line starts with one of the given runes.
func (in *LineReader) First(opts string) bool {
	return in.valid && in.head != "" && strings.ContainsRune(opts, rune(in.head[0]))
}

// Skip consumes a prefix off the current line plus any following whitespace.
func (in *LineReader) Skip(pre string) {
	if in.valid && strings.HasPrefix(in.head, pre) {
		in.head = strings.TrimSpace(strings.TrimPrefix(in.head, pre))
	}
}

// Flush discards the current line.
func (in *LineReader) Flush() {
	in.head = ""
	in.valid = false
}

// Token pulls the next whitespace-delimited token off the current line.
// Returns "" when the line is exhausted.
func (in *LineReader) Token() string {
	if !in.valid {
		return ""
	}
	in.head = strings.TrimSpace(in.head)
	if in.head == "" {
		return ""
	}
	i := strings.IndexAny(in.head, " \t")
	if i < 0 {
		tok := in.head
		in.head = ""
		return tok
	}
	tok := in.head[:i]
	in.head = strings.TrimSpace(in.head[i:])
	return tok
}
