package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger writes run events as NDJSON (verbose mode and log file) and as
// short human readable lines otherwise.
type Logger struct {
	mu    sync.Mutex
	human io.Writer
	z     *zap.Logger
}

type Event struct {
	TS         string
	Level      string
	Event      string
	Input      string
	RunID      string
	Row        int
	ModelNo    string
	Provider   string
	Model      string
	Attempt    int
	Count      int
	WaitMS     int64
	LatencyMS  int64
	Tokens     int
	OutputFile string
	Error      string
}

func New(stdout io.Writer, logFile string, verbose bool) (*Logger, io.Closer, error) {
	var (
		cores  []zapcore.Core
		closer io.Closer
	)
	if verbose {
		cores = append(cores, ndjsonCore(stdout))
	}
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, err
		}
		cores = append(cores, ndjsonCore(f))
		closer = f
	}
	l := &Logger{z: zap.NewNop()}
	if len(cores) > 0 {
		l.z = zap.New(zapcore.NewTee(cores...))
	}
	if !verbose {
		l.human = stdout
	}
	return l, closer, nil
}

func ndjsonCore(w io.Writer) zapcore.Core {
	enc := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		MessageKey:     "event",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.RFC3339NanoTimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
	}
	return zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.AddSync(w), zapcore.DebugLevel)
}

func (l *Logger) Emit(ev Event) {
	if l == nil {
		return
	}
	if ev.Level == "" {
		ev.Level = "info"
	}
	if ce := l.z.Check(zapLevel(ev.Level), ev.Event); ce != nil {
		ce.Time = eventTime(ev.TS)
		ce.Write(fields(ev)...)
	}
	if l.human == nil {
		return
	}
	line := l.formatHuman(ev)
	if line == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = fmt.Fprintln(l.human, line)
}

func (l *Logger) Sync() {
	if l == nil {
		return
	}
	_ = l.z.Sync()
}

func zapLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "debug":
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}

func eventTime(ts string) time.Time {
	if ts != "" {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			return t
		}
	}
	return time.Now()
}

func fields(ev Event) []zap.Field {
	out := make([]zap.Field, 0, 8)
	str := func(k, v string) {
		if v != "" {
			out = append(out, zap.String(k, v))
		}
	}
	num := func(k string, v int64) {
		if v != 0 {
			out = append(out, zap.Int64(k, v))
		}
	}
	str("input", ev.Input)
	str("run_id", ev.RunID)
	num("row", int64(ev.Row))
	str("modellnr", ev.ModelNo)
	str("provider", ev.Provider)
	str("model", ev.Model)
	num("attempt", int64(ev.Attempt))
	num("count", int64(ev.Count))
	num("wait_ms", ev.WaitMS)
	num("latency_ms", ev.LatencyMS)
	num("tokens", int64(ev.Tokens))
	str("output_file", ev.OutputFile)
	str("error", ev.Error)
	return out
}

func (l *Logger) formatHuman(ev Event) string {
	switch ev.Event {
	case "startup":
		return fmt.Sprintf("Start: %s / %s", fallback(ev.Provider, "-"), fallback(ev.Model, "-"))
	case "input_loaded":
		return fmt.Sprintf("Datei geladen: %s (%d Zeilen)", ev.Input, ev.Count)
	case "rows_selected":
		return fmt.Sprintf("Zu generieren: %d Zeilen", ev.Count)
	case "rows_skipped":
		return fmt.Sprintf("Übersprungen (Produkttext vorhanden): %d Zeilen", ev.Count)
	case "rows_invalid":
		return fmt.Sprintf("Übersprungen (ohne Modellnr): %d Zeilen", ev.Count)
	case "session_reset":
		return fmt.Sprintf("Neue Datei erkannt: %s, vorherige Generierung wird nicht mehr angeboten", ev.Input)
	case "api_response":
		return fmt.Sprintf("[%d] %s fertig (%s, %d Tokens)", ev.Row, ev.ModelNo, formatHumanDurationMS(ev.LatencyMS), ev.Tokens)
	case "retry_backoff":
		return fmt.Sprintf("[%d] %s erneuter Versuch %d in %s: %s", ev.Row, ev.ModelNo, ev.Attempt+1, formatHumanDurationMS(ev.WaitMS), ev.Error)
	case "row_failed":
		return fmt.Sprintf("[%d] %s fehlgeschlagen: %s", ev.Row, ev.ModelNo, ev.Error)
	case "run_completed":
		return fmt.Sprintf("Generierung abgeschlossen: %d Texte", ev.Count)
	case "run_failed":
		return fmt.Sprintf("Generierung abgebrochen: %s", ev.Error)
	case "export_ok":
		return fmt.Sprintf("Export: %s", ev.OutputFile)
	}
	if ev.Level == "warn" || ev.Level == "error" {
		return fmt.Sprintf("%s: %s", ev.Event, fallback(ev.Error, "-"))
	}
	return ""
}

func formatHumanDurationMS(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	if ms < 60_000 {
		return fmt.Sprintf("%.2fs", float64(ms)/1000.0)
	}
	minutes := ms / 60_000
	remainMS := ms % 60_000
	if remainMS == 0 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dm%.1fs", minutes, float64(remainMS)/1000.0)
}

func fallback(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
