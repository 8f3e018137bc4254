package log

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

const timeFormat = "060102 15:04:05.000"

// output is where log lines are written to.
var output io.Writer = os.Stderr

func (s Severity) toSLogLevel() slog.Level {
	switch s {
	case TraceLevel:
		return slog.LevelDebug - 4
	case DebugLevel:
		return slog.LevelDebug
	case InfoLevel:
		return slog.LevelInfo
	case WarningLevel:
		return slog.LevelWarn
	case ErrorLevel:
		return slog.LevelError
	case CriticalLevel:
		return slog.LevelError + 4
	}
	// Failed to convert, return default log level
	return slog.LevelWarn
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func setupSLog(level Severity) {
	handlerLogLevel := level.toSLogLevel()

	logHandler := tint.NewHandler(output, &tint.Options{
		AddSource:  true,
		Level:      handlerLogLevel,
		TimeFormat: timeFormat,
		NoColor:    !isTerminal(output),
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			// Shorten source to file:line.
			if a.Key == slog.SourceKey {
				if src, ok := a.Value.Any().(*slog.Source); ok {
					return slog.String(slog.SourceKey, filepath.Base(src.File)+":"+strconv.Itoa(src.Line))
				}
			}
			// Write all levels with short names.
			if a.Key == slog.LevelKey && a.Value.Kind() == slog.KindAny {
				if lvl, ok := a.Value.Any().(slog.Level); ok {
					return slog.String(slog.LevelKey, levelShortName(lvl))
				}
			}
			return a
		},
	})

	// Set as default logger.
	slog.SetDefault(slog.New(logHandler))
	// Set actual log level.
	slog.SetLogLoggerLevel(handlerLogLevel)
}

func levelShortName(lvl slog.Level) string {
	switch {
	case lvl < slog.LevelDebug:
		return "TRC"
	case lvl < slog.LevelInfo:
		return "DBG"
	case lvl < slog.LevelWarn:
		return "INF"
	case lvl < slog.LevelError:
		return "WRN"
	case lvl < CriticalLevel.toSLogLevel():
		return "ERR"
	default:
		return "CRT"
	}
}
