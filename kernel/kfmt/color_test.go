package kfmt

import (
	"bytes"
	"kconsole/device/color"
	"kconsole/kernel/klog"
	"testing"
)

func TestLevelColor(t *testing.T) {
	specs := []struct {
		level klog.Level
		exp   color.Color
	}{
		{klog.LevelError, color.Red},
		{klog.LevelWarn, color.Yellow},
		{klog.LevelInfo, color.Blue},
		{klog.LevelDebug, color.LightRed},
		{klog.LevelTrace, color.DarkGray},
		{klog.Level(0), color.LightGray},
		{klog.Level(99), color.LightGray},
	}

	for specIndex, spec := range specs {
		if got := LevelColor(spec.level); got != spec.exp {
			t.Errorf("[spec %d] expected level %s to map to %s; got %s", specIndex, spec.level, spec.exp, got)
		}
	}
}

func TestConsoleCode(t *testing.T) {
	specs := []struct {
		c                     color.Color
		expIntensity, expBase uint8
	}{
		{color.Black, 0, 0},
		{color.Blue, 0, 4},
		{color.Green, 0, 2},
		{color.Cyan, 0, 6},
		{color.Red, 0, 1},
		{color.Magenta, 0, 5},
		{color.Brown, 0, 3},
		{color.LightGray, 1, 7},
		{color.DarkGray, 0, 7},
		{color.LightBlue, 1, 4},
		{color.LightGreen, 1, 2},
		{color.LightCyan, 1, 6},
		{color.LightRed, 1, 1},
		{color.Pink, 1, 5},
		{color.Yellow, 1, 3},
		{color.White, 1, 0},
		// out of palette
		{color.Color(color.Count), 0, 7},
	}

	if len(specs)-1 != color.Count {
		t.Fatalf("expected specs to cover all %d palette entries", color.Count)
	}

	for specIndex, spec := range specs {
		intensity, base := ConsoleCode(spec.c)
		if intensity != spec.expIntensity || base != spec.expBase {
			t.Errorf("[spec %d] expected %s to map to (%d, %d); got (%d, %d)", specIndex, spec.c, spec.expIntensity, spec.expBase, intensity, base)
		}
	}
}

func TestFprintColored(t *testing.T) {
	specs := []struct {
		c   color.Color
		msg string
		exp []byte
	}{
		{color.Red, "hi", []byte{27, '[', '0', ';', '3', '1', 'm', 'h', 'i', 27, '[', '0', 'm'}},
		{color.White, "", []byte("\x1b[1;30m\x1b[0m")},
		{color.LightGray, "multi\nline", []byte("\x1b[1;37mmulti\nline\x1b[0m")},
		{color.Cyan, "50%", []byte("\x1b[0;36m50%\x1b[0m")},
	}

	var buf bytes.Buffer
	for specIndex, spec := range specs {
		buf.Reset()
		FprintColored(&buf, spec.c, spec.msg)

		if got := buf.Bytes(); !bytes.Equal(got, spec.exp) {
			t.Errorf("[spec %d] expected to get\n%q\ngot:\n%q", specIndex, spec.exp, got)
		}
	}
}

func TestFprintfColored(t *testing.T) {
	var buf bytes.Buffer

	FprintfColored(&buf, LevelColor(klog.LevelWarn), "disk %d at %d%%\n", 1, 90)

	if exp, got := "\x1b[1;33mdisk 1 at 90%\n\x1b[0m", buf.String(); got != exp {
		t.Fatalf("expected to get\n%q\ngot:\n%q", exp, got)
	}
}

func TestFprintRecord(t *testing.T) {
	specs := []struct {
		level  klog.Level
		format string
		args   []interface{}
		exp    string
	}{
		{klog.LevelError, "boom", nil, "\x1b[0;31mboom\n\x1b[0m"},
		{klog.LevelInfo, "open: path: %s, flags: %d", []interface{}{"stdin:", 0}, "\x1b[0;34mopen: path: stdin:, flags: 0\n\x1b[0m"},
		{klog.LevelDebug, "", nil, "\x1b[1;31m\n\x1b[0m"},
		{klog.LevelTrace, "len: 0x%x", []interface{}{uintptr(3)}, "\x1b[0;37mlen: 0x3\n\x1b[0m"},
	}

	var buf bytes.Buffer
	for specIndex, spec := range specs {
		buf.Reset()
		FprintRecord(&buf, spec.level, spec.format, spec.args...)

		if got := buf.String(); got != spec.exp {
			t.Errorf("[spec %d] expected to get\n%q\ngot:\n%q", specIndex, spec.exp, got)
		}
	}
}
