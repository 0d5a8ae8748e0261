package diag

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// 轮转日志命名：固定 current 名 + 带纳秒时间戳的归档名。
const (
	logCurrentName  = "stavetext-current.txt"
	logStampLayout  = "20060102-150405.000000000"
	logKeepArchives = 5
)

// RotatingFile: 按大小轮转的行式日志落盘。
// 约束：
// 1) 追加写入 dir/stavetext-current.txt，按行（含换行）计大小；
// 2) 写入前预判 size+line 超限即先轮转；
// 3) 轮转 = current 重命名为 stavetext-<时间戳>.txt 后重开 current；
// 4) 归档只保留最近 logKeepArchives 个，更旧的静默删除；
// 5) 并发安全；Close 后再次写入会自动重开。
type RotatingFile struct {
	dir      string
	maxBytes int64

	mu   sync.Mutex
	f    *os.File
	size int64
}

func NewRotatingFile(dir string, maxBytes int64) *RotatingFile {
	if maxBytes <= 0 {
		maxBytes = 10 * 1024 * 1024
	}
	return &RotatingFile{dir: dir, maxBytes: maxBytes}
}

// WriteLine 追加一行（自动补换行），必要时先轮转再写。
func (w *RotatingFile) WriteLine(b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.open(); err != nil {
		return err
	}
	if w.size+int64(len(b))+1 > w.maxBytes {
		if err := w.rotate(); err != nil {
			return err
		}
	}
	n, err := w.f.Write(append(b, '\n'))
	w.size += int64(n)
	return err
}

// open 惰性打开 current 并定位到末尾取当前大小。
func (w *RotatingFile) open() error {
	if w.f != nil {
		return nil
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(w.dir, logCurrentName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	end, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		end = 0
	}
	w.f = f
	w.size = end
	return nil
}

// rotate 将 current 归档为时间戳文件并重开。纳秒精度避免同秒覆盖。
func (w *RotatingFile) rotate() error {
	if w.f == nil {
		return w.open()
	}
	cur := w.f.Name()
	_ = w.f.Close()
	w.f = nil
	w.size = 0
	stamp := time.Now().UTC().Format(logStampLayout)
	archived := filepath.Join(w.dir, fmt.Sprintf("stavetext-%s.txt", stamp))
	if err := os.Rename(cur, archived); err != nil {
		return fmt.Errorf("rotate log: %w", err)
	}
	w.prune()
	return w.open()
}

// prune 删除最旧的归档直至只剩 logKeepArchives 个；失败忽略。
// 时间戳命名保证字典序即时间序。
func (w *RotatingFile) prune() {
	ents, err := os.ReadDir(w.dir)
	if err != nil {
		return
	}
	var archived []string
	for _, e := range ents {
		name := e.Name()
		if e.IsDir() || name == logCurrentName {
			continue
		}
		if strings.HasPrefix(name, "stavetext-") && strings.HasSuffix(name, ".txt") {
			archived = append(archived, name)
		}
	}
	if len(archived) <= logKeepArchives {
		return
	}
	sort.Strings(archived)
	for _, name := range archived[:len(archived)-logKeepArchives] {
		_ = os.Remove(filepath.Join(w.dir, name))
	}
}

func (w *RotatingFile) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	return err
}
