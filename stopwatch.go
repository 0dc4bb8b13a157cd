package physics

import (
	"time"

	"github.com/google/uuid"
)

// stopwatch measures a named span of a tick and logs its duration when the
// world's DebugTime flag is on. Spans of one tick share a short trace id so
// logs from worlds stepped in parallel can be told apart.
type stopwatch struct {
	log     Logger
	trace   string
	name    string
	start   time.Time
	enabled bool
}

// newTrace returns the trace id for one tick's spans.
func newTrace(enabled bool) string {
	if !enabled {
		return ""
	}
	return uuid.NewString()[:8]
}

func startSpan(log Logger, enabled bool, trace, name string) *stopwatch {
	if !enabled {
		return &stopwatch{}
	}
	return &stopwatch{
		log:     log,
		trace:   trace,
		name:    name,
		start:   time.Now(),
		enabled: true,
	}
}

func (sw *stopwatch) end() {
	if !sw.enabled {
		return
	}
	sw.log.Debugf("[%s] %s took %s", sw.trace, sw.name, time.Since(sw.start))
}
