package kfmt

import "io"

// PrefixWriter is an io.Writer that forwards writes to Sink and emits Prefix
// before the first byte of every line. The hal package uses it to tag the
// init output of each driver with the driver name.
type PrefixWriter struct {
	// Sink receives the prefixed output.
	Sink io.Writer

	// Prefix is emitted at the beginning of each line.
	Prefix []byte

	// midLine is set while the current line has already been prefixed.
	midLine bool
}

// Write implements io.Writer. The prefix is emitted lazily so a trailing line
// feed does not leave a dangling prefix behind. The returned byte count does
// not include the injected prefixes.
func (w *PrefixWriter) Write(p []byte) (int, error) {
	var written int

	for len(p) != 0 {
		if !w.midLine {
			if _, err := w.Sink.Write(w.Prefix); err != nil {
				return written, err
			}
			w.midLine = true
		}

		lineLen := len(p)
		for i, b := range p {
			if b == '\n' {
				lineLen = i + 1
				break
			}
		}

		n, err := w.Sink.Write(p[:lineLen])
		written += n
		if err != nil {
			return written, err
		}

		if p[lineLen-1] == '\n' {
			w.midLine = false
		}
		p = p[lineLen:]
	}

	return written, nil
}

// Reset marks the start of a new line so that the next write is prefixed.
func (w *PrefixWriter) Reset() {
	w.midLine = false
}
