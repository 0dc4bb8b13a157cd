package physics

import (
	"strings"
	"sync"
	"testing"
)

type debugCapture struct {
	mu    sync.Mutex
	lines []string
}

func (l *debugCapture) DebugEnabled() bool            { return true }
func (l *debugCapture) SetDebug(bool)                 {}
func (l *debugCapture) Infof(string, ...any)          {}
func (l *debugCapture) Warnf(string, ...any)          {}
func (l *debugCapture) Errorf(string, ...any)         {}
func (l *debugCapture) Debugf(format string, args ...any) {
	l.mu.Lock()
	l.lines = append(l.lines, format)
	l.mu.Unlock()
}

func TestStopwatchDisabledIsSilent(t *testing.T) {
	log := &debugCapture{}
	sw := startSpan(log, false, newTrace(false), "broad_phase")
	sw.end()
	if len(log.lines) != 0 {
		t.Errorf("disabled stopwatch should not log, got %v", log.lines)
	}
}

func TestStopwatchLogsSpan(t *testing.T) {
	log := &debugCapture{}
	trace := newTrace(true)
	if len(trace) != 8 {
		t.Errorf("trace id should be 8 chars, got %q", trace)
	}
	sw := startSpan(log, true, trace, "narrow_phase")
	sw.end()
	if len(log.lines) != 1 || !strings.Contains(log.lines[0], "took") {
		t.Errorf("expected one span log line, got %v", log.lines)
	}
}
