// Package sim drives a cache model with a memory-access trace.
package sim

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/sarchlab/csim/accesslog"
	"github.com/sarchlab/csim/cache"
	"github.com/sarchlab/csim/trace"
)

// LineSource yields trace lines in file order. trace.Reader implements it.
type LineSource interface {
	Next() (trace.Line, bool)
	Err() error
}

// Simulator applies trace records to a cache model one at a time, in order.
type Simulator struct {
	model  cache.Model
	parser *trace.Parser
	sink   accesslog.Sink
	logger *slog.Logger

	// seq counts model accesses for the access log.
	seq uint64
}

// SimulatorOption is a functional option for configuring the Simulator.
type SimulatorOption func(*Simulator)

// WithParser sets the trace parser. The default parses lackey traces.
func WithParser(p *trace.Parser) SimulatorOption {
	return func(s *Simulator) {
		s.parser = p
	}
}

// WithSink records every model access into sink.
func WithSink(sink accesslog.Sink) SimulatorOption {
	return func(s *Simulator) {
		s.sink = sink
	}
}

// WithLogger sets the logger used for malformed-record diagnostics.
func WithLogger(logger *slog.Logger) SimulatorOption {
	return func(s *Simulator) {
		s.logger = logger
	}
}

// New creates a Simulator around model.
func New(model cache.Model, opts ...SimulatorOption) *Simulator {
	s := &Simulator{
		model:  model,
		parser: trace.NewDefaultParser(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Model returns the cache model being driven.
func (s *Simulator) Model() cache.Model {
	return s.model
}

// Run processes every line of src. Malformed records are logged and
// counted, and processing continues. A read error from src or a sink
// failure stops the run and is returned with the partial result.
func (s *Simulator) Run(src LineSource) (Result, error) {
	var result Result

	for {
		line, ok := src.Next()
		if !ok {
			break
		}

		if err := s.step(line, &result); err != nil {
			return s.finish(result), err
		}
	}

	if err := src.Err(); err != nil {
		return s.finish(result), err
	}

	if s.sink != nil {
		if err := s.sink.Flush(); err != nil {
			return s.finish(result), fmt.Errorf("failed to flush access log: %w", err)
		}
	}

	return s.finish(result), nil
}

func (s *Simulator) step(line trace.Line, result *Result) error {
	acc, ok, err := s.parse(line)
	if err != nil {
		result.Malformed++
		s.reportMalformed(line, err)
		return nil
	}

	if !ok {
		result.Skipped++
		return nil
	}

	result.Records++
	result.countKind(acc.Kind)

	_, err = s.Apply(acc, line.Number)

	return err
}

func (s *Simulator) parse(line trace.Line) (trace.Access, bool, error) {
	if err := line.Check(); err != nil {
		return trace.Access{}, false, err
	}
	return s.parser.Parse(line.Text)
}

func (s *Simulator) reportMalformed(line trace.Line, err error) {
	text := line.Text

	var malformed *trace.MalformedRecordError
	if errors.As(err, &malformed) {
		malformed.Line = line.Number
		text = malformed.Text
	}

	s.logger.Warn("skipping malformed trace record",
		"line", line.Number,
		"text", text,
		"error", err)
}

// Apply runs one parsed record against the model. A modify record is a
// load and a store to the same address, in that order. lineNumber is only
// used for the access log.
func (s *Simulator) Apply(acc trace.Access, lineNumber int) ([]cache.AccessResult, error) {
	results := make([]cache.AccessResult, 0, acc.Kind.Accesses())

	for i := 0; i < acc.Kind.Accesses(); i++ {
		r := s.model.Access(acc.Address)
		s.seq++
		results = append(results, r)

		if s.sink == nil {
			continue
		}

		err := s.sink.Write(accesslog.Entry{
			Seq:     s.seq,
			Line:    lineNumber,
			Kind:    acc.Kind,
			Address: acc.Address,
			Size:    acc.Size,
			Result:  r,
		})
		if err != nil {
			return results, fmt.Errorf("failed to write access log: %w", err)
		}
	}

	return results, nil
}

func (s *Simulator) finish(result Result) Result {
	result.Geometry = s.model.Geometry()
	result.Stats = s.model.Stats()
	return result
}
