package main

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"kconsole/kernel/kfmt"
	"kconsole/kernel/klog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeAll(t *testing.T, r io.Reader) []Record {
	t.Helper()

	var recs []Record
	dec := NewDecoder(r)
	for {
		rec, err := dec.Next()
		if err == io.EOF {
			return recs
		}
		require.NoError(t, err)
		recs = append(recs, rec)
	}
}

func TestDecoder(t *testing.T) {
	stream := "\x1b[0;31mdisk failed\n\x1b[0m" +
		"hello raw\r\n" +
		"\x1b[1;33mlow mem\n\x1b[0m" +
		"\x1b[0;34mboot\nsecond line\n\x1b[0m" +
		"\x1b[1;32mgreen\n\x1b[0m" +
		"\x1b[1mno newline"

	exp := []Record{
		{klog.LevelError, "disk failed"},
		{levelRaw, "hello raw"},
		{klog.LevelWarn, "low mem"},
		{klog.LevelInfo, "boot\nsecond line"},
		{levelRaw, "green"},
		{levelRaw, "no newline"},
	}

	assert.Equal(t, exp, decodeAll(t, strings.NewReader(stream)))
}

func TestDecoderRecordRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	for _, level := range klog.Levels {
		kfmt.FprintRecord(&buf, level, "record %d", int(level))
	}
	buf.WriteString("abc")

	recs := decodeAll(t, &buf)
	require.Len(t, recs, len(klog.Levels)+1)

	for i, level := range klog.Levels {
		assert.Equal(t, level, recs[i].Level)
		assert.Equal(t, "record "+string(rune('0'+int(level))), recs[i].Message)
	}
	assert.Equal(t, Record{levelRaw, "abc"}, recs[len(recs)-1])
}

func TestDecoderTruncatedRecord(t *testing.T) {
	recs := decodeAll(t, strings.NewReader("\x1b[0;31mcut short"))
	assert.Equal(t, []Record{{klog.LevelError, "cut short"}}, recs)

	assert.Empty(t, decodeAll(t, strings.NewReader("\x1b[0;3")))
	assert.Empty(t, decodeAll(t, strings.NewReader("")))
}

func TestRecordLevelName(t *testing.T) {
	assert.Equal(t, "raw", Record{Level: levelRaw}.LevelName())
	assert.Equal(t, "trace", Record{Level: klog.LevelTrace}.LevelName())
}
