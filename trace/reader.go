package trace

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// MaxLineSize bounds a single trace line. Longer lines are cut to this size
// and flagged as Truncated; the rest of the line is discarded.
const MaxLineSize = 1024 * 1024

// Line is one raw line of a trace file.
type Line struct {
	// Number is 1-based.
	Number int
	Text   string
	// Truncated is set when the line was longer than MaxLineSize.
	Truncated bool
}

// Check returns a MalformedRecordError for a truncated line and nil
// otherwise.
func (l Line) Check() error {
	if !l.Truncated {
		return nil
	}

	text := l.Text
	if len(text) > 32 {
		text = text[:32] + "..."
	}

	return &MalformedRecordError{
		Line:   l.Number,
		Text:   text,
		Reason: fmt.Sprintf("line longer than %d bytes", MaxLineSize),
	}
}

// Reader yields the lines of a trace in file order.
type Reader struct {
	reader *bufio.Reader
	closer io.Closer
	line   int
	err    error
}

// NewReader creates a Reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{reader: bufio.NewReaderSize(r, 64*1024)}
}

// Open opens the trace file at path.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}

	r := NewReader(f)
	r.closer = f

	return r, nil
}

// Next returns the next line. It returns false at the end of the trace or
// on a read error; check Err to tell them apart.
func (r *Reader) Next() (Line, bool) {
	if r.err != nil {
		return Line{}, false
	}

	var (
		buf       []byte
		truncated bool
		read      bool
	)

	for {
		chunk, err := r.reader.ReadSlice('\n')
		read = read || len(chunk) > 0
		if err == nil {
			chunk = chunk[:len(chunk)-1]
		}

		if !truncated {
			if room := MaxLineSize - len(buf); len(chunk) > room {
				buf = append(buf, chunk[:room]...)
				truncated = true
			} else {
				buf = append(buf, chunk...)
			}
		}

		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if errors.Is(err, io.EOF) {
			if !read {
				return Line{}, false
			}
			break
		}
		if err != nil {
			r.err = err
			return Line{}, false
		}
		break
	}

	r.line++

	return Line{
		Number:    r.line,
		Text:      strings.TrimSuffix(string(buf), "\r"),
		Truncated: truncated,
	}, true
}

// Err returns the first read error, if any.
func (r *Reader) Err() error {
	if r.err != nil {
		return fmt.Errorf("failed to read trace at line %d: %w", r.line+1, r.err)
	}
	return nil
}

// Close closes the underlying file when the Reader was created by Open.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}
