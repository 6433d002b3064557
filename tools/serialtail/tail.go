package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
)

// openInput opens the configured serial source.
func openInput(ctx context.Context, cfg Config) (io.ReadCloser, error) {
	switch {
	case cfg.Socket != "":
		var d net.Dialer
		conn, err := d.DialContext(ctx, "unix", cfg.Socket)
		if err != nil {
			return nil, fmt.Errorf("connecting to serial socket: %w", err)
		}
		return conn, nil
	case cfg.Input == "" || cfg.Input == "-":
		return os.Stdin, nil
	default:
		f, err := os.Open(cfg.Input)
		if err != nil {
			return nil, fmt.Errorf("opening serial log: %w", err)
		}
		return f, nil
	}
}

// Tail decodes records from r and emits the ones allowed by filter to sink
// until r is exhausted or ctx is cancelled. Decoding runs on its own
// goroutine so that cancellation is not delayed by a blocked read; on
// cancellation r is closed if it implements io.Closer.
func Tail(ctx context.Context, r io.Reader, filter Filter, sink Sink) error {
	type result struct {
		rec Record
		err error
	}

	var (
		results = make(chan result)
		done    = make(chan struct{})
	)

	go func() {
		dec := NewDecoder(r)
		for {
			rec, err := dec.Next()
			select {
			case results <- result{rec, err}:
			case <-done:
				return
			}

			if err != nil {
				return
			}
		}
	}()

	defer func() {
		close(done)
		if c, ok := r.(io.Closer); ok {
			_ = c.Close()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case res := <-results:
			if errors.Is(res.err, io.EOF) {
				return nil
			}
			if res.err != nil {
				return fmt.Errorf("reading serial stream: %w", res.err)
			}

			if !filter.Allow(res.rec) {
				continue
			}

			if err := sink.Emit(res.rec); err != nil {
				return fmt.Errorf("writing record: %w", err)
			}
		}
	}
}
