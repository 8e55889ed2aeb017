package logger

import (
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

// callerHook repoints entry.Caller at the real call site. Because every log
// call goes through the Entry wrappers in this package, logrus's own caller
// detection always reports logger.go; this hook walks past those frames.
type callerHook struct{}

func (h *callerHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *callerHook) Fire(entry *logrus.Entry) error {
	// Skip runtime.Callers, Fire itself and the logrus hook machinery.
	pcs := make([]uintptr, 16)
	n := runtime.Callers(6, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if !wrapperFrame(frame.Function) {
			entry.Caller = &frame
			return nil
		}
		if !more {
			return nil
		}
	}
}

// wrapperFrame reports whether a function belongs to logrus or to the
// wrappers in this package, neither of which is a useful call site.
func wrapperFrame(fn string) bool {
	return strings.Contains(fn, "sirupsen/logrus") || strings.Contains(fn, "arbflow/logger")
}
