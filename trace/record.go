// Package trace reads memory-access traces in the Valgrind lackey format,
// where data accesses look like " L 7ff000398,8".
package trace

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Kind is the access kind of a trace record.
type Kind byte

// Access kinds, by their trace code.
const (
	Load        Kind = 'L'
	Store       Kind = 'S'
	Modify      Kind = 'M'
	Instruction Kind = 'I'
)

// Valid reports whether k is a recognized access code.
func (k Kind) Valid() bool {
	switch k {
	case Load, Store, Modify, Instruction:
		return true
	}
	return false
}

// Accesses returns how many cache accesses a record of kind k makes. A
// modify is a load followed by a store to the same address.
func (k Kind) Accesses() int {
	if k == Modify {
		return 2
	}
	return 1
}

// String returns the single-character trace code.
func (k Kind) String() string {
	return string(rune(k))
}

// Access is one parsed data-access record.
type Access struct {
	Kind    Kind
	Address uint64
	// Size is the access size in bytes, 0 when the record has none. The
	// cache model does not use it.
	Size int
}

// ErrMalformedRecord is the error every MalformedRecordError unwraps to.
var ErrMalformedRecord = errors.New("malformed trace record")

// MalformedRecordError describes a record that starts with the access marker
// but cannot be parsed.
type MalformedRecordError struct {
	// Line is the 1-based line number, 0 if unknown.
	Line   int
	Text   string
	Reason string
	Err    error
}

func (e *MalformedRecordError) Error() string {
	msg := e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s %q: %s", e.Line, ErrMalformedRecord, e.Text, msg)
	}
	return fmt.Sprintf("%s %q: %s", ErrMalformedRecord, e.Text, msg)
}

// Unwrap allows errors.Is against ErrMalformedRecord and the cause.
func (e *MalformedRecordError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrMalformedRecord}
	}
	return []error{ErrMalformedRecord, e.Err}
}

// ParserOptions holds the format details that vary between trace sources.
type ParserOptions struct {
	// Marker is the first byte of every data-access record. Lines that do
	// not start with it are skipped.
	Marker byte
	// Separator ends the address field and precedes the size field.
	Separator byte
}

// DefaultParserOptions returns the options for Valgrind lackey traces.
func DefaultParserOptions() ParserOptions {
	return ParserOptions{
		Marker:    ' ',
		Separator: ',',
	}
}

// Parser turns raw trace lines into accesses. It holds no state between
// lines.
type Parser struct {
	opts ParserOptions
}

// NewParser creates a parser with the given options.
func NewParser(opts ParserOptions) *Parser {
	return &Parser{opts: opts}
}

// NewDefaultParser creates a parser for Valgrind lackey traces.
func NewDefaultParser() *Parser {
	return NewParser(DefaultParserOptions())
}

// Parse parses one line. It returns ok == false and a nil error for lines
// that are not data-access records.
func (p *Parser) Parse(line string) (acc Access, ok bool, err error) {
	if len(line) == 0 || line[0] != p.opts.Marker {
		return Access{}, false, nil
	}

	rest := line[1:]
	if len(rest) == 0 {
		return Access{}, false, p.malformed(line, "missing access kind", nil)
	}

	acc.Kind = Kind(rest[0])
	if !acc.Kind.Valid() {
		return Access{}, false, p.malformed(line,
			fmt.Sprintf("unknown access kind %q", rest[0]), nil)
	}

	fields := rest[1:]
	if strings.TrimSpace(fields) == "" {
		return Access{}, false, p.malformed(line, "missing address", nil)
	}
	if fields[0] != ' ' && fields[0] != '\t' {
		return Access{}, false, p.malformed(line, "missing space after access kind", nil)
	}

	fields = strings.TrimSpace(fields)
	addrField, sizeField, hasSize := strings.Cut(fields, string(p.opts.Separator))
	addrField = strings.TrimSpace(addrField)
	if addrField == "" {
		return Access{}, false, p.malformed(line, "missing address", nil)
	}

	acc.Address, err = parseHex(addrField)
	if err != nil {
		return Access{}, false, p.malformed(line, "invalid address", err)
	}

	if hasSize {
		acc.Size, err = strconv.Atoi(strings.TrimSpace(sizeField))
		if err != nil {
			return Access{}, false, p.malformed(line, "invalid size", err)
		}
		if acc.Size < 0 {
			return Access{}, false, p.malformed(line, "negative size", nil)
		}
	}

	return acc, true, nil
}

func (p *Parser) malformed(line, reason string, err error) error {
	return &MalformedRecordError{Text: line, Reason: reason, Err: err}
}

func parseHex(s string) (uint64, error) {
	if len(s) > 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	return strconv.ParseUint(s, 16, 64)
}
