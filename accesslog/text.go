package accesslog

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// TextSink writes one human-readable line per access, in the style of a
// verbose cache simulator run:
//
//	L 10,1 set=1 tag=0x0 miss
type TextSink struct {
	w      *bufio.Writer
	closer io.Closer
}

// NewTextSink creates a TextSink writing to w. Closing the sink does not
// close w.
func NewTextSink(w io.Writer) *TextSink {
	return newTextSink(nopCloser{w})
}

func newTextSink(wc io.WriteCloser) *TextSink {
	return &TextSink{w: bufio.NewWriter(wc), closer: wc}
}

// Write writes an entry.
func (s *TextSink) Write(e Entry) error {
	_, err := fmt.Fprintf(s.w, "%s %x,%d set=%d tag=%#x %s\n",
		e.Kind, e.Address, e.Size,
		e.Result.Address.Index, e.Result.Address.Tag, e.Result.Outcome)
	return err
}

// Flush flushes buffered lines.
func (s *TextSink) Flush() error {
	return s.w.Flush()
}

// Close flushes and closes the destination.
func (s *TextSink) Close() error {
	if err := s.Flush(); err != nil {
		return err
	}
	return s.closer.Close()
}

func openFileSink(format Format, path string) (Sink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create access log: %w", err)
	}

	if format == FormatText {
		return newTextSink(f), nil
	}

	s, err := newCSVSink(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return s, nil
}
