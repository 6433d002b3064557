package kfmt

import (
	"io"
	"kconsole/device/color"
	"kconsole/kernel/klog"
)

const escByte = 0x1b

var (
	escReset = []byte{escByte, '[', '0', 'm'}

	// levelColors maps each log level to the color used for rendering it.
	levelColors = [...]color.Color{
		klog.LevelError: color.Red,
		klog.LevelWarn:  color.Yellow,
		klog.LevelInfo:  color.Blue,
		klog.LevelDebug: color.LightRed,
		klog.LevelTrace: color.DarkGray,
	}

	// consoleCodes maps each palette entry to its (intensity, base) ANSI
	// console code.
	consoleCodes = [color.Count][2]uint8{
		color.Black:      {0, 0},
		color.Blue:       {0, 4},
		color.Green:      {0, 2},
		color.Cyan:       {0, 6},
		color.Red:        {0, 1},
		color.Magenta:    {0, 5},
		color.Brown:      {0, 3},
		color.LightGray:  {1, 7},
		color.DarkGray:   {0, 7},
		color.LightBlue:  {1, 4},
		color.LightGreen: {1, 2},
		color.LightCyan:  {1, 6},
		color.LightRed:   {1, 1},
		color.Pink:       {1, 5},
		color.Yellow:     {1, 3},
		color.White:      {1, 0},
	}
)

// LevelColor returns the color used for rendering records with the supplied
// level. Unknown levels are rendered using color.LightGray.
func LevelColor(level klog.Level) color.Color {
	if level < klog.LevelError || level > klog.LevelTrace {
		return color.LightGray
	}
	return levelColors[level]
}

// ConsoleCode returns the intensity (0 or 1) and base color (0-7) of the ANSI
// escape sequence that selects c as the foreground color. Values outside the
// palette yield the code for color.DarkGray.
func ConsoleCode(c color.Color) (intensity, base uint8) {
	if int(c) >= color.Count {
		c = color.DarkGray
	}
	return consoleCodes[c][0], consoleCodes[c][1]
}

// FprintColored writes msg to w wrapped in the escape sequences that select
// c as the foreground color and then reset all attributes:
//
//	ESC [ intensity ; base+30 m msg ESC [ 0 m
//
// Like Fprintf, this function does not allocate memory.
func FprintColored(w io.Writer, c color.Color, msg string) {
	writeColorStart(w, c)
	fmtString(w, msg, 0)
	doWrite(w, escReset)
}

// FprintfColored behaves like FprintColored but renders the message using
// Fprintf.
func FprintfColored(w io.Writer, c color.Color, format string, args ...interface{}) {
	writeColorStart(w, c)
	Fprintf(w, format, args...)
	doWrite(w, escReset)
}

func writeColorStart(w io.Writer, c color.Color) {
	intensity, base := ConsoleCode(c)

	singleByte[0] = escByte
	doWrite(w, singleByte)
	singleByte[0] = '['
	doWrite(w, singleByte)
	fmtInt(w, intensity, 10, 0)
	singleByte[0] = ';'
	doWrite(w, singleByte)
	fmtInt(w, base+30, 10, 0)
	singleByte[0] = 'm'
	doWrite(w, singleByte)
}

// FprintRecord renders a log record with the color assigned to level. The
// formatted message and a trailing line feed are both placed inside the
// color escape sequences.
func FprintRecord(w io.Writer, level klog.Level, format string, args ...interface{}) {
	writeColorStart(w, LevelColor(level))
	Fprintf(w, format, args...)
	singleByte[0] = '\n'
	doWrite(w, singleByte)
	doWrite(w, escReset)
}
