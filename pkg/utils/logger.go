package utils

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LoggerConfig configures a Logger: it satisfies both the "tracing sink"
// contract and the ambient structured-logging stack.
type LoggerConfig struct {
	// Component names the subsystem emitting log lines, e.g. "pkg.rebase"
	// or "pkg.nextedit".
	Component string
	// Filename is the rotating log file path; defaults to
	// ".nextedit/engine.log" when empty.
	Filename string
	// JSONMode emits one JSON object per line instead of plain text.
	JSONMode bool
	// CorrelationID tags every line, letting one rebase-then-lookup
	// sequence be reassembled from the log.
	CorrelationID string
}

// Logger is the ambient structured logger used throughout nextedit. It
// implements the rebase.Tracer / nextedit tracing-sink contract (a single
// Trace(message string) method that never affects behavior) in addition to
// leveled logging, backed by a lumberjack rotating log file.
type Logger struct {
	mu            sync.Mutex
	out           *log.Logger
	file          *lumberjack.Logger
	jsonMode      bool
	correlationID string
	component     string
}

// NewLogger builds a Logger writing to a rotating file under cfg.Filename
// (or the default path). Safe to construct once per component; cheap
// enough to construct per test.
func NewLogger(cfg LoggerConfig) *Logger {
	filename := cfg.Filename
	if filename == "" {
		filename = ".nextedit/engine.log"
	}
	file := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    15, // megabytes
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}
	if os.Getenv("NEXTEDIT_JSON_LOGS") == "1" {
		cfg.JSONMode = true
	}
	if cid := os.Getenv("NEXTEDIT_CORRELATION_ID"); cid != "" && cfg.CorrelationID == "" {
		cfg.CorrelationID = cid
	}
	return &Logger{
		out:           log.New(file, "", log.LstdFlags),
		file:          file,
		jsonMode:      cfg.JSONMode,
		correlationID: cfg.CorrelationID,
		component:     cfg.Component,
	}
}

// Close releases the underlying rotating file handle.
func (l *Logger) Close() error {
	return l.file.Close()
}

func (l *Logger) write(level, message string, kv []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.jsonMode {
		rec := map[string]any{"level": level, "msg": message, "cid": l.correlationID, "component": l.component}
		for i := 0; i+1 < len(kv); i += 2 {
			if key, ok := kv[i].(string); ok {
				rec[key] = kv[i+1]
			}
		}
		_ = json.NewEncoder(l.file).Encode(rec)
		return
	}
	line := message
	if len(kv) > 0 {
		pairs := make([]string, 0, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			pairs = append(pairs, fmt.Sprintf("%v=%v", kv[i], kv[i+1]))
		}
		line = fmt.Sprintf("%s %s", message, strings.Join(pairs, " "))
	}
	if l.component != "" {
		line = fmt.Sprintf("[%s] %s", l.component, line)
	}
	l.out.Print(line)
}

// Log writes a plain message to the log file at info level, with no
// key/value pairs (teacher parity: the general-purpose line).
func (l *Logger) Log(message string) {
	l.write("info", message, nil)
}

// Info logs an informational message with structured key/value pairs.
func (l *Logger) Info(message string, kv ...any) {
	l.write("info", message, kv)
}

// Warn logs a warning.
func (l *Logger) Warn(message string, kv ...any) {
	l.write("warn", message, kv)
}

// LogError logs a Go error, unwrapping StructuredError context when present.
func (l *Logger) LogError(err error) {
	if se, ok := err.(*StructuredError); ok {
		l.write("error", FormatError(se), nil)
		return
	}
	l.write("error", err.Error(), nil)
}

// Trace implements the rebase/nextedit tracing-sink contract: a single
// diagnostic method that never influences behavior.
func (l *Logger) Trace(message string) {
	l.write("trace", message, nil)
}
