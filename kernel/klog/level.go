package klog

// Level describes the severity of a log record. Lower values are more
// severe.
type Level uint8

// The supported log levels.
const (
	LevelError Level = iota + 1
	LevelWarn
	LevelInfo
	LevelDebug
	LevelTrace
)

// Levels lists all supported levels ordered from most to least severe.
var Levels = [...]Level{LevelError, LevelWarn, LevelInfo, LevelDebug, LevelTrace}

var levelNames = [...]string{
	LevelError: "error",
	LevelWarn:  "warn",
	LevelInfo:  "info",
	LevelDebug: "debug",
	LevelTrace: "trace",
}

// String returns the lower-case name of the level.
func (l Level) String() string {
	if l < LevelError || l > LevelTrace {
		return "unknown"
	}
	return levelNames[l]
}

// ParseLevel returns the level whose name matches s. The second return value
// is false if s does not name a level.
func ParseLevel(s string) (Level, bool) {
	for _, l := range Levels {
		if levelNames[l] == s {
			return l, true
		}
	}

	return 0, false
}
