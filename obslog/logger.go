// Package obslog is the asynchronous logging sink named in spec.md §1
// as an external collaborator the core writes to but never depends on
// for correctness. Ported from original_source/src/log/log.h/.cpp and
// default_formatter.h: a batched background writer thread, a minimum
// level, and a default line formatter. The original is a singleton
// (get_instance); per §9's design note, this is constructed explicitly
// and passed by reference instead.
package obslog

import (
	"fmt"
	"io"
	"runtime"
	"sync"
	"time"
)

// Level mirrors the original's Level enum.
type Level int

const (
	Trace Level = iota
	Debug
	Info
	Warn
	Error
	Fatal
)

func (l Level) String() string {
	switch l {
	case Trace:
		return "TRACE"
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warn:
		return "WARN"
	case Error:
		return "ERROR"
	case Fatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// record is one formatted log line plus the metadata default Formatter
// needs, queued for the writer goroutine.
type record struct {
	level   Level
	content string
	goid    int64
	caller  string
	at      time.Time
}

// Formatter renders one record to its final line; swap it out with
// Logger.SetFormatter before Start for a different layout.
type Formatter func(level Level, content string, caller string, at time.Time) string

// DefaultFormatter matches the shape of the original's default
// formatter: "[LEVEL] 2006-01-02T15:04:05.000Z07:00 caller: content".
func DefaultFormatter(level Level, content string, caller string, at time.Time) string {
	return fmt.Sprintf("[%s] %s %s: %s\n", level, at.Format("2006-01-02T15:04:05.000Z07:00"), caller, content)
}

// Logger is a non-singleton, explicitly constructed async log sink: a
// background goroutine drains a channel of records and writes them to
// the configured io.Writer in batches of writeSize.
type Logger struct {
	mu        sync.Mutex
	writer    io.Writer
	level     Level
	writeSize int
	formatter Formatter

	ch      chan record
	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// New returns a stopped Logger writing to w at or above level, batching
// writeSize records per flush (a writeSize below 1 uses 8).
func New(w io.Writer, level Level, writeSize int) *Logger {
	if writeSize < 1 {
		writeSize = 8
	}
	return &Logger{
		writer:    w,
		level:     level,
		writeSize: writeSize,
		formatter: DefaultFormatter,
		ch:        make(chan record, writeSize*4),
	}
}

// SetLevel changes the minimum level logged from this point on.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	l.level = level
	l.mu.Unlock()
}

// SetFormatter overrides the line formatter. Must be called before
// Start.
func (l *Logger) SetFormatter(f Formatter) {
	l.mu.Lock()
	l.formatter = f
	l.mu.Unlock()
}

// Start launches the writer goroutine. Returns false if already running.
func (l *Logger) Start() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return false
	}
	l.running = true
	l.stopCh = make(chan struct{})
	l.doneCh = make(chan struct{})
	go l.run(l.stopCh, l.doneCh)
	return true
}

// Stop flushes any buffered records and joins the writer goroutine.
// Returns false if not running.
func (l *Logger) Stop() bool {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return false
	}
	l.running = false
	stopCh, doneCh := l.stopCh, l.doneCh
	l.mu.Unlock()

	close(stopCh)
	<-doneCh
	return true
}

func (l *Logger) run(stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	batch := make([]record, 0, l.writeSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		var buf []byte
		for _, r := range batch {
			buf = append(buf, l.formatter(r.level, r.content, r.caller, r.at)...)
		}
		l.writer.Write(buf)
		batch = batch[:0]
	}

	for {
		select {
		case r := <-l.ch:
			batch = append(batch, r)
			if len(batch) >= l.writeSize {
				flush()
			}
		case <-stopCh:
			for {
				select {
				case r := <-l.ch:
					batch = append(batch, r)
				default:
					flush()
					return
				}
			}
		}
	}
}

func (l *Logger) log(level Level, content string) {
	l.mu.Lock()
	min := l.level
	running := l.running
	l.mu.Unlock()
	if level < min || !running {
		return
	}

	_, file, line, ok := runtime.Caller(2)
	caller := "???"
	if ok {
		caller = fmt.Sprintf("%s:%d", file, line)
	}

	select {
	case l.ch <- record{level: level, content: content, caller: caller, at: time.Now()}:
	default:
		// channel full: drop rather than block the caller, since the
		// original's writer thread contract never backpressures callers.
	}
}

func (l *Logger) Tracef(format string, args ...any) { l.log(Trace, fmt.Sprintf(format, args...)) }
func (l *Logger) Debugf(format string, args ...any) { l.log(Debug, fmt.Sprintf(format, args...)) }
func (l *Logger) Infof(format string, args ...any)  { l.log(Info, fmt.Sprintf(format, args...)) }
func (l *Logger) Warnf(format string, args ...any)  { l.log(Warn, fmt.Sprintf(format, args...)) }
func (l *Logger) Errorf(format string, args ...any) { l.log(Error, fmt.Sprintf(format, args...)) }
func (l *Logger) Fatalf(format string, args ...any) { l.log(Fatal, fmt.Sprintf(format, args...)) }
