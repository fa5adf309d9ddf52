package logger

import (
	"bytes"
	"io"
	"strings"
)

// Level is the minimum severity written to the log.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel maps DEBUG|INFO|WARN|ERROR (any case) to a Level. Unknown values mean INFO.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	}
	return LevelInfo
}

// levelFilter drops log lines below min. The level of a line is taken from its
// marker ("DEBUG:", "WARN:", "Warning:", "ERROR:", "CRITICAL:"); unmarked lines are INFO.
type levelFilter struct {
	w   io.Writer
	min Level
}

func (f *levelFilter) Write(p []byte) (int, error) {
	if lineLevel(p) < f.min {
		return len(p), nil
	}
	return f.w.Write(p)
}

var markers = []struct {
	tag   []byte
	level Level
}{
	{[]byte("DEBUG:"), LevelDebug},
	{[]byte("WARN:"), LevelWarn},
	{[]byte("Warning:"), LevelWarn},
	{[]byte("ERROR:"), LevelError},
	{[]byte("CRITICAL:"), LevelError},
}

func lineLevel(p []byte) Level {
	for _, m := range markers {
		if bytes.Contains(p, m.tag) {
			return m.level
		}
	}
	return LevelInfo
}
