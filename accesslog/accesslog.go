// Package accesslog records every cache access of a simulation run for
// later inspection.
package accesslog

import (
	"fmt"
	"io"

	"github.com/sarchlab/csim/cache"
	"github.com/sarchlab/csim/trace"
)

// Entry is one cache access. A modify record produces two entries with the
// same Line.
type Entry struct {
	// Seq is the 1-based position of the access in the run.
	Seq     uint64
	Line    int
	Kind    trace.Kind
	Address uint64
	Size    int
	Result  cache.AccessResult
}

// A Sink receives access entries in run order.
type Sink interface {
	Write(entry Entry) error
	Flush() error
	Close() error
}

// Format names a sink implementation.
type Format string

// Supported formats.
const (
	FormatText   Format = "text"
	FormatCSV    Format = "csv"
	FormatSQLite Format = "sqlite"
)

// Open creates a file sink of the given format. An empty path lets the
// SQLite sink pick a unique name; the other formats require a path.
func Open(format Format, path string) (Sink, error) {
	switch format {
	case FormatSQLite:
		return NewSQLiteSink(path)
	case FormatCSV, FormatText:
		if path == "" {
			return nil, fmt.Errorf("%s access log needs a path", format)
		}
		return openFileSink(format, path)
	default:
		return nil, fmt.Errorf("unknown access log format %q", format)
	}
}

// nopCloser adapts a writer that the sink does not own.
type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
