package accesslog

import "errors"

type multiSink []Sink

// Multi returns a Sink that writes every entry to each of sinks in order.
func Multi(sinks ...Sink) Sink {
	if len(sinks) == 1 {
		return sinks[0]
	}
	return multiSink(sinks)
}

func (m multiSink) Write(e Entry) error {
	for _, s := range m {
		if err := s.Write(e); err != nil {
			return err
		}
	}
	return nil
}

func (m multiSink) Flush() error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Flush())
	}
	return errors.Join(errs...)
}

func (m multiSink) Close() error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
