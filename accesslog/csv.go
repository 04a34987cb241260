package accesslog

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/sarchlab/csim/cache"
)

var csvHeader = []string{
	"seq", "line", "kind", "address", "size",
	"set", "tag", "way", "outcome", "evicted_tag",
}

// CSVSink writes entries as CSV rows under a header.
type CSVSink struct {
	w      *csv.Writer
	closer io.Closer
}

// NewCSVSink creates a CSVSink writing to w and writes the header. Closing
// the sink does not close w.
func NewCSVSink(w io.Writer) (*CSVSink, error) {
	return newCSVSink(nopCloser{w})
}

func newCSVSink(wc io.WriteCloser) (*CSVSink, error) {
	s := &CSVSink{w: csv.NewWriter(wc), closer: wc}
	if err := s.w.Write(csvHeader); err != nil {
		return nil, err
	}
	return s, nil
}

// Write writes an entry.
func (s *CSVSink) Write(e Entry) error {
	evicted := ""
	if e.Result.Outcome == cache.MissWithEviction {
		evicted = hex(e.Result.EvictedTag)
	}

	return s.w.Write([]string{
		strconv.FormatUint(e.Seq, 10),
		strconv.Itoa(e.Line),
		e.Kind.String(),
		hex(e.Address),
		strconv.Itoa(e.Size),
		strconv.FormatUint(e.Result.Address.Index, 10),
		hex(e.Result.Address.Tag),
		strconv.Itoa(e.Result.Way),
		e.Result.Outcome.String(),
		evicted,
	})
}

// Flush flushes buffered rows.
func (s *CSVSink) Flush() error {
	s.w.Flush()
	return s.w.Error()
}

// Close flushes and closes the destination.
func (s *CSVSink) Close() error {
	if err := s.Flush(); err != nil {
		return err
	}
	return s.closer.Close()
}

func hex(v uint64) string {
	return "0x" + strconv.FormatUint(v, 16)
}
