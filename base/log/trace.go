package log

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// ContextTracerKey is the key used for the context key/value storage.
type ContextTracerKey struct{}

// ContextTracer is attached to a context in order bind logs to a context.
// Lines are collected and only written out on Submit, as a single entry.
type ContextTracer struct {
	sync.Mutex
	logs []*traceLine
}

type traceLine struct {
	level     Severity
	timestamp time.Time
	msg       string
}

// AddTracer adds a ContextTracer to the returned Context. Will return a nil
// ContextTracer if logging level is not set to trace. Will return a nil
// ContextTracer if one already exists. Will return a nil ContextTracer in
// case of an error. Will return a nil context if nil.
func AddTracer(ctx context.Context) (context.Context, *ContextTracer) {
	if ctx != nil && fastcheck(TraceLevel) {
		// check pkg levels
		// if not, check for existing tracer
		_, ok := ctx.Value(ContextTracerKey{}).(*ContextTracer)
		if !ok {
			// add and return new tracer
			tracer := &ContextTracer{}
			return context.WithValue(ctx, ContextTracerKey{}, tracer), tracer
		}
	}
	return ctx, nil
}

// Tracer returns the ContextTracer previously added to the given Context.
func Tracer(ctx context.Context) *ContextTracer {
	if ctx != nil {
		tracer, ok := ctx.Value(ContextTracerKey{}).(*ContextTracer)
		if ok {
			return tracer
		}
	}
	return nil
}

// Submit collected logs on the context for further processing/outputting.
// Does nothing if called on a nil ContextTracer.
func (tracer *ContextTracer) Submit() {
	if tracer == nil {
		return
	}

	tracer.Lock()
	defer tracer.Unlock()
	if len(tracer.logs) == 0 {
		return
	}

	// Use the highest collected severity and the last message as the entry.
	var highest Severity
	for _, l := range tracer.logs {
		if l.level > highest {
			highest = l.level
		}
	}
	last := tracer.logs[len(tracer.logs)-1]

	if fastcheck(highest) {
		var b strings.Builder
		start := tracer.logs[0].timestamp
		for _, l := range tracer.logs[:len(tracer.logs)-1] {
			fmt.Fprintf(&b, "\n  %s %s %s", l.timestamp.Sub(start).Round(time.Microsecond), l.level.Name(), l.msg)
		}
		if b.Len() > 0 {
			log(highest, last.msg, slog.String("trace", b.String()))
		} else {
			log(highest, last.msg)
		}
	}

	tracer.logs = nil
}

func (tracer *ContextTracer) add(level Severity, msg string) {
	tracer.Lock()
	defer tracer.Unlock()
	tracer.logs = append(tracer.logs, &traceLine{
		level:     level,
		timestamp: time.Now(),
		msg:       msg,
	})
}

// Trace is used to log tiny steps. Log traces to context if you can!
func (tracer *ContextTracer) Trace(msg string) {
	switch {
	case tracer != nil:
		tracer.add(TraceLevel, msg)
	case fastcheck(TraceLevel):
		log(TraceLevel, msg)
	}
}

// Tracef is used to log tiny steps. Log traces to context if you can!
func (tracer *ContextTracer) Tracef(format string, things ...interface{}) {
	switch {
	case tracer != nil:
		tracer.add(TraceLevel, fmt.Sprintf(format, things...))
	case fastcheck(TraceLevel):
		log(TraceLevel, fmt.Sprintf(format, things...))
	}
}

// Debug is used to log minor errors or unexpected events.
func (tracer *ContextTracer) Debug(msg string) {
	switch {
	case tracer != nil:
		tracer.add(DebugLevel, msg)
	case fastcheck(DebugLevel):
		log(DebugLevel, msg)
	}
}

// Debugf is used to log minor errors or unexpected events.
func (tracer *ContextTracer) Debugf(format string, things ...interface{}) {
	switch {
	case tracer != nil:
		tracer.add(DebugLevel, fmt.Sprintf(format, things...))
	case fastcheck(DebugLevel):
		log(DebugLevel, fmt.Sprintf(format, things...))
	}
}

// Info is used to log mildly significant events.
func (tracer *ContextTracer) Info(msg string) {
	switch {
	case tracer != nil:
		tracer.add(InfoLevel, msg)
	case fastcheck(InfoLevel):
		log(InfoLevel, msg)
	}
}

// Infof is used to log mildly significant events.
func (tracer *ContextTracer) Infof(format string, things ...interface{}) {
	switch {
	case tracer != nil:
		tracer.add(InfoLevel, fmt.Sprintf(format, things...))
	case fastcheck(InfoLevel):
		log(InfoLevel, fmt.Sprintf(format, things...))
	}
}

// Warning is used to log (potentially) bad events, but nothing broken.
func (tracer *ContextTracer) Warning(msg string) {
	switch {
	case tracer != nil:
		tracer.add(WarningLevel, msg)
	case fastcheck(WarningLevel):
		log(WarningLevel, msg)
	}
}

// Warningf is used to log (potentially) bad events, but nothing broken.
func (tracer *ContextTracer) Warningf(format string, things ...interface{}) {
	switch {
	case tracer != nil:
		tracer.add(WarningLevel, fmt.Sprintf(format, things...))
	case fastcheck(WarningLevel):
		log(WarningLevel, fmt.Sprintf(format, things...))
	}
}

// Error is used to log errors that break or impair functionality.
func (tracer *ContextTracer) Error(msg string) {
	switch {
	case tracer != nil:
		tracer.add(ErrorLevel, msg)
	case fastcheck(ErrorLevel):
		log(ErrorLevel, msg)
	}
}

// Errorf is used to log errors that break or impair functionality.
func (tracer *ContextTracer) Errorf(format string, things ...interface{}) {
	switch {
	case tracer != nil:
		tracer.add(ErrorLevel, fmt.Sprintf(format, things...))
	case fastcheck(ErrorLevel):
		log(ErrorLevel, fmt.Sprintf(format, things...))
	}
}
