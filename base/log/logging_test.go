package log

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, TraceLevel, ParseLevel("trace"))
	assert.Equal(t, WarningLevel, ParseLevel("WARN"))
	assert.Equal(t, CriticalLevel, ParseLevel("critical"))
	assert.Equal(t, Severity(0), ParseLevel("loud"))
	assert.Equal(t, "warning", WarningLevel.Name())
	assert.Equal(t, "none", Severity(0).Name())
}

// TestLogging runs sequentially as it changes the global logger.
func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	assert.NoError(t, Start("trace", &buf))
	assert.Equal(t, TraceLevel, GetLogLevel())

	Tracef("udns: probing %s", "node")
	Infof("udns: mDNS up")
	assert.Contains(t, buf.String(), "udns: probing node")
	assert.Contains(t, buf.String(), "udns: mDNS up")
	assert.Contains(t, buf.String(), "TRC")
	assert.Contains(t, buf.String(), "logging_test.go")

	before := TotalWarningLogLines()
	Warning("udns: dropped packet")
	assert.Equal(t, before+1, TotalWarningLogLines())

	// Filtered lines are not written.
	SetLogLevel(ErrorLevel)
	buf.Reset()
	Info("udns: should not show")
	assert.Empty(t, buf.String())

	// Tracers are only added at trace level.
	_, tracer := AddTracer(context.Background())
	assert.Nil(t, tracer)
	tracer.Trace("nil tracer is safe")
	tracer.Submit()

	SetLogLevel(TraceLevel)
	buf.Reset()
	ctx, tracer := AddTracer(context.Background())
	assert.NotNil(t, tracer)
	assert.Same(t, tracer, Tracer(ctx))
	_, again := AddTracer(ctx)
	assert.Nil(t, again)

	tracer.Trace("udns: query sent")
	tracer.Warningf("udns: retry %d", 2)
	tracer.Debug("udns: resolved")
	assert.Empty(t, buf.String(), "tracer lines are held until submit")
	tracer.Submit()

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "udns: resolved"))
	assert.Contains(t, out, "udns: query sent")
	assert.Contains(t, out, "udns: retry 2")
	assert.Contains(t, out, "WRN")

	SetLogLevel(InfoLevel)
}
