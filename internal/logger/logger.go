package logger

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// Logger is a leveled printf-style logger backed by logrus.
// Console output is suppressed while a progress bar is active (unless verbose),
// and every entry, debug included, is mirrored to the log file when one is set.
type Logger struct {
	entry *logrus.Entry
	sink  *sink
}

type sink struct {
	mu      sync.Mutex
	verbose bool
	hasBar  bool
	out     io.Writer
	errOut  io.Writer
	fileLog *os.File
}

// New creates a new Logger instance
func New(verbose bool) *Logger {
	return newLogger(&sink{verbose: verbose, out: os.Stdout, errOut: os.Stderr})
}

// Discard returns a Logger that writes nowhere.
func Discard() *Logger {
	return newLogger(&sink{out: io.Discard, errOut: io.Discard})
}

func newLogger(s *sink) *Logger {
	base := logrus.New()
	base.SetOutput(io.Discard)
	base.SetLevel(logrus.DebugLevel)
	base.AddHook(&consoleHook{sink: s, formatter: consoleFormatter{}})
	base.AddHook(&fileHook{sink: s, formatter: &logrus.TextFormatter{FullTimestamp: true, DisableColors: true}})
	return &Logger{entry: logrus.NewEntry(base), sink: s}
}

// WithField returns a child logger that tags every entry with key=value.
// The child shares output settings with its parent.
func (l *Logger) WithField(key string, value any) *Logger {
	return &Logger{entry: l.entry.WithField(key, value), sink: l.sink}
}

// Verbose reports whether debug output goes to the console.
func (l *Logger) Verbose() bool {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	return l.sink.verbose
}

// SetOutput redirects console output. Errors go to errOut.
func (l *Logger) SetOutput(out, errOut io.Writer) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.out = out
	l.sink.errOut = errOut
}

// SetFileLog enables logging to a file
func (l *Logger) SetFileLog(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	if l.sink.fileLog != nil {
		l.sink.fileLog.Close()
	}
	l.sink.fileLog = f
	return nil
}

// SetProgressBar indicates that a progress bar is active
func (l *Logger) SetProgressBar(active bool) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.hasBar = active
}

// Close closes the log file if open
func (l *Logger) Close() error {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()

	if l.sink.fileLog != nil {
		err := l.sink.fileLog.Close()
		l.sink.fileLog = nil
		return err
	}
	return nil
}

// Info logs informational messages
func (l *Logger) Info(format string, args ...any) {
	l.entry.Infof(format, args...)
}

// Debug logs detailed messages; they reach the console only in verbose mode
func (l *Logger) Debug(format string, args ...any) {
	l.entry.Debugf(format, args...)
}

// Warn logs warning messages
func (l *Logger) Warn(format string, args ...any) {
	l.entry.Warnf(format, args...)
}

// Error logs error messages to stderr
func (l *Logger) Error(format string, args ...any) {
	l.entry.Errorf(format, args...)
}

type consoleHook struct {
	sink      *sink
	formatter logrus.Formatter
}

func (h *consoleHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *consoleHook) Fire(e *logrus.Entry) error {
	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()

	w := h.sink.out
	switch {
	case e.Level <= logrus.ErrorLevel:
		w = h.sink.errOut
	case e.Level == logrus.DebugLevel && !h.sink.verbose:
		return nil
	case h.sink.hasBar && !h.sink.verbose:
		return nil
	}

	b, err := h.formatter.Format(e)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

type fileHook struct {
	sink      *sink
	formatter logrus.Formatter
}

func (h *fileHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *fileHook) Fire(e *logrus.Entry) error {
	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()

	if h.sink.fileLog == nil {
		return nil
	}
	b, err := h.formatter.Format(e)
	if err != nil {
		return err
	}
	_, err = h.sink.fileLog.Write(b)
	return err
}

// consoleFormatter prints info messages bare and everything else as "[LEVEL] msg",
// followed by any fields in key order.
type consoleFormatter struct{}

func (consoleFormatter) Format(e *logrus.Entry) ([]byte, error) {
	var buf bytes.Buffer
	if e.Level != logrus.InfoLevel {
		level := "WARN"
		switch e.Level {
		case logrus.DebugLevel, logrus.TraceLevel:
			level = "DEBUG"
		case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
			level = "ERROR"
		}
		buf.WriteString("[" + level + "] ")
	}
	buf.WriteString(e.Message)

	keys := make([]string, 0, len(e.Data))
	for k := range e.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&buf, " %s=%v", k, e.Data[k])
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
