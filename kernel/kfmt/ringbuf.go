package kfmt

import "io"

// ringBufferSize is the capacity of the buffer that holds Printf output
// produced before the serial console is attached. It must be a power of 2.
const ringBufferSize = 2048

// ringBuffer is a fixed-size byte queue. Once full, each write discards the
// oldest buffered bytes so that the most recent output survives.
type ringBuffer struct {
	buffer [ringBufferSize]byte

	// start is the index of the oldest buffered byte and size the number
	// of buffered bytes.
	start, size int
}

// Write appends p to the buffer. It never fails.
func (rb *ringBuffer) Write(p []byte) (int, error) {
	for _, b := range p {
		rb.buffer[(rb.start+rb.size)&(ringBufferSize-1)] = b
		if rb.size == ringBufferSize {
			rb.start = (rb.start + 1) & (ringBufferSize - 1)
			continue
		}
		rb.size++
	}

	return len(p), nil
}

// Read consumes up to len(p) buffered bytes. It returns io.EOF once the
// buffer is empty.
func (rb *ringBuffer) Read(p []byte) (int, error) {
	if rb.size == 0 {
		return 0, io.EOF
	}

	// copy the contiguous run that starts at rb.start
	n := rb.size
	if tail := ringBufferSize - rb.start; tail < n {
		n = tail
	}
	n = copy(p, rb.buffer[rb.start:rb.start+n])

	rb.start = (rb.start + n) & (ringBufferSize - 1)
	rb.size -= n
	return n, nil
}

// WriteTo drains the buffer into w. It implements io.WriterTo so that
// draining does not need an intermediate buffer.
func (rb *ringBuffer) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for rb.size != 0 {
		n := rb.size
		if tail := ringBufferSize - rb.start; tail < n {
			n = tail
		}

		written, err := w.Write(rb.buffer[rb.start : rb.start+n])
		total += int64(written)
		rb.start = (rb.start + written) & (ringBufferSize - 1)
		rb.size -= written
		if err != nil {
			return total, err
		}
		if written < n {
			return total, io.ErrShortWrite
		}
	}

	return total, nil
}

// Len returns the number of buffered bytes.
func (rb *ringBuffer) Len() int {
	return rb.size
}
