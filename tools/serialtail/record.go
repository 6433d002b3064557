package main

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strconv"

	"kconsole/kernel/kfmt"
	"kconsole/kernel/klog"
)

const escape = 0x1b

// levelRaw tags output that was not written by the kernel logger, such as
// syscall writes and kfmt.Printf output.
const levelRaw klog.Level = 0

var colorReset = []byte("\x1b[0m")

// Record is a single unit of kernel serial output.
type Record struct {
	Level   klog.Level
	Message string
}

// LevelName returns the name of the record level or "raw".
func (r Record) LevelName() string {
	if r.Level == levelRaw {
		return "raw"
	}
	return r.Level.String()
}

// codeLevels maps the console code of each level color back to its level.
var codeLevels = func() map[[2]uint8]klog.Level {
	m := make(map[[2]uint8]klog.Level, len(klog.Levels))
	for _, level := range klog.Levels {
		intensity, base := kfmt.ConsoleCode(kfmt.LevelColor(level))
		m[[2]uint8{intensity, base}] = level
	}
	return m
}()

// Decoder splits a serial stream into records. Colored records span from
// their color start sequence to the matching reset sequence; everything else
// is returned one line at a time as a raw record.
type Decoder struct {
	r *bufio.Reader
}

// NewDecoder returns a decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Next returns the next record. It returns io.EOF once the stream is
// exhausted. Output truncated by the end of the stream is returned as a
// final record.
func (d *Decoder) Next() (Record, error) {
	for {
		b, err := d.r.Peek(1)
		if err != nil {
			return Record{}, err
		}

		var rec Record
		var ok bool
		if b[0] == escape {
			rec, ok, err = d.colored()
		} else {
			rec, ok, err = d.raw()
		}

		if ok {
			return rec, nil
		}
		if err != nil {
			return Record{}, err
		}
	}
}

// raw consumes bytes up to and including the next newline or up to the next
// escape sequence.
func (d *Decoder) raw() (Record, bool, error) {
	var line []byte
	for {
		b, err := d.r.ReadByte()
		if err != nil {
			return rawRecord(line), len(line) != 0, err
		}

		switch b {
		case '\n':
			return rawRecord(line), len(line) != 0, nil
		case escape:
			_ = d.r.UnreadByte()
			return rawRecord(line), len(line) != 0, nil
		}

		line = append(line, b)
	}
}

func rawRecord(line []byte) Record {
	return Record{Level: levelRaw, Message: string(bytes.TrimSuffix(line, []byte{'\r'}))}
}

// colored consumes an escape sequence. A color start sequence is followed by
// the message up to the reset sequence; stray or unsupported sequences are
// skipped.
func (d *Decoder) colored() (Record, bool, error) {
	level, ok, err := d.colorStart()
	if err != nil || !ok {
		return Record{}, false, err
	}

	var msg []byte
	for {
		b, err := d.r.ReadByte()
		if err != nil {
			return Record{Level: level, Message: string(msg)}, len(msg) != 0, err
		}

		msg = append(msg, b)
		if bytes.HasSuffix(msg, colorReset) {
			msg = bytes.TrimSuffix(msg[:len(msg)-len(colorReset)], []byte{'\n'})
			return Record{Level: level, Message: string(msg)}, true, nil
		}
	}
}

// colorStart parses "ESC [ intensity ; base+30 m" and returns the matching
// level. It returns false for the reset sequence and for colors that do not
// belong to a level.
func (d *Decoder) colorStart() (klog.Level, bool, error) {
	seq, err := d.r.ReadSlice('m')
	switch {
	case errors.Is(err, bufio.ErrBufferFull):
		return 0, false, nil
	case err != nil:
		return 0, false, err
	}

	if len(seq) < 3 || seq[1] != '[' {
		return 0, false, nil
	}

	params := bytes.Split(seq[2:len(seq)-1], []byte{';'})
	if len(params) != 2 {
		return 0, false, nil
	}

	intensity, err1 := strconv.ParseUint(string(params[0]), 10, 8)
	code, err2 := strconv.ParseUint(string(params[1]), 10, 8)
	if err1 != nil || err2 != nil || code < 30 {
		return 0, false, nil
	}

	level, ok := codeLevels[[2]uint8{uint8(intensity), uint8(code - 30)}]
	return level, ok, nil
}
