package diag

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// 级别定义
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "debug"
	case Info:
		return "info"
	case Warn:
		return "warn"
	case Error:
		return "error"
	default:
		return "info"
	}
}

// Logger 为最小结构化日志器：单行 JSON；默认写 stderr，可选按目录轮转落盘。
type Logger struct {
	corrID string
	level  Level
	sink   *RotatingFile
	mu     sync.Mutex
}

// NewLogger 通过配置的 level 初始化。
// logDir 非空时将日志写入该目录（10 MiB 轮转）；为空时写 stderr。
func NewLogger(corrID, level, logDir string) *Logger {
	lvl := parseLevel(strings.TrimSpace(level))
	var sink *RotatingFile
	if strings.TrimSpace(logDir) != "" {
		sink = NewRotatingFile(logDir, 10*1024*1024)
	}
	return &Logger{corrID: corrID, level: lvl, sink: sink}
}

func parseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return Debug
	case "warn":
		return Warn
	case "error":
		return Error
	default:
		return Info
	}
}

// Event 为标准事件结构。
// stage 为流水线阶段，phase 为阶段内生命周期（start|finish|error）。
type Event struct {
	Level   string            `json:"level"`
	TS      string            `json:"ts"`
	CorrID  string            `json:"corr_id"`
	Stage   string            `json:"stage"`
	Phase   string            `json:"phase"` // start|finish|error
	ErrCode string            `json:"err_code,omitempty"`
	DurMS   int64             `json:"dur_ms,omitempty"`
	Count   int64             `json:"count,omitempty"`
	File    string            `json:"file,omitempty"`
	Stave   int               `json:"stave,omitempty"`
	Msg     string            `json:"msg"`
	KV      map[string]string `json:"kv,omitempty"`
}

// log 以最小开销写出事件，遵循级别过滤。
func (l *Logger) log(lv Level, ev Event) {
	if lv < l.level {
		return
	}
	// error 永不过滤
	ev.Level = lv.String()
	ev.TS = NowUTC()
	ev.CorrID = l.corrID
	b, _ := json.Marshal(ev)
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sink == nil {
		// 默认：写 stderr
		_, _ = os.Stderr.Write(append(b, '\n'))
		return
	}
	if err := l.sink.WriteLine(b); err != nil {
		fmt.Fprintf(os.Stderr, "logger sink error: %v\n", err)
		_, _ = os.Stderr.Write(append(b, '\n'))
	}
}

// Start 记录 start 事件；返回计时器用于 Finish。
func (l *Logger) Start(stage Stage, msg string) *Timer {
	l.log(Info, Event{Stage: string(stage), Phase: "start", Msg: msg})
	return &Timer{l: l, stage: stage, t0: time.Now()}
}

// StartWith 记录带 file/stave 的 start（stave 为 1 基序号，0 表示无）。
func (l *Logger) StartWith(stage Stage, msg, file string, stave int) *Timer {
	l.log(Info, Event{Stage: string(stage), Phase: "start", File: file, Stave: stave, Msg: msg})
	return &Timer{l: l, stage: stage, file: file, stave: stave, t0: time.Now()}
}

// StartWithKV 记录带 file/stave 与键值的 start。
func (l *Logger) StartWithKV(stage Stage, msg, file string, stave int, kv map[string]string) *Timer {
	l.log(Info, Event{Stage: string(stage), Phase: "start", File: file, Stave: stave, Msg: msg, KV: kv})
	return &Timer{l: l, stage: stage, file: file, stave: stave, t0: time.Now()}
}

// Error 记录 error 事件（不过滤）。
func (l *Logger) Error(stage Stage, code Code, msg string, durSince *time.Time) {
	var dur int64
	if durSince != nil {
		dur = time.Since(*durSince).Milliseconds()
	}
	l.log(Error, Event{Stage: string(stage), Phase: "error", ErrCode: string(code), DurMS: dur, Msg: msg})
}

// ErrorWith 支持 file/stave。
func (l *Logger) ErrorWith(stage Stage, code Code, msg string, durSince *time.Time, file string, stave int) {
	var dur int64
	if durSince != nil {
		dur = time.Since(*durSince).Milliseconds()
	}
	l.log(Error, Event{Stage: string(stage), Phase: "error", ErrCode: string(code), DurMS: dur, Msg: msg, File: file, Stave: stave})
}

// ErrorWithKV 支持附带键值对（例如渲染器名、符号片段）。
func (l *Logger) ErrorWithKV(stage Stage, code Code, msg string, durSince *time.Time, file string, stave int, kv map[string]string) {
	var dur int64
	if durSince != nil {
		dur = time.Since(*durSince).Milliseconds()
	}
	l.log(Error, Event{Stage: string(stage), Phase: "error", ErrCode: string(code), DurMS: dur, Msg: msg, File: file, Stave: stave, KV: kv})
}

// InfoFinish 在已有起点的情况下记录 finish。
func (l *Logger) InfoFinish(stage Stage, msg string, start time.Time, count int64) {
	l.log(Info, Event{Stage: string(stage), Phase: "finish", DurMS: time.Since(start).Milliseconds(), Count: count, Msg: msg})
}

// Timer 用于 start→finish 计时。
type Timer struct {
	l     *Logger
	stage Stage
	file  string
	stave int
	t0    time.Time
}

// Finish 记录 finish；可选 count。
func (t *Timer) Finish(msg string, count int64) {
	if t == nil || t.l == nil {
		return
	}
	// 带上 file/stave
	t.l.log(Info, Event{Stage: string(t.stage), Phase: "finish", DurMS: time.Since(t.t0).Milliseconds(), Count: count, File: t.file, Stave: t.stave, Msg: msg})
}

// DebugStart 输出调试级别的“start”类事件（仅在 level=debug 时生效）。
func (l *Logger) DebugStart(stage Stage, msg, file string, stave int, kv map[string]string) {
	l.log(Debug, Event{Stage: string(stage), Phase: "start", File: file, Stave: stave, Msg: msg, KV: kv})
}
