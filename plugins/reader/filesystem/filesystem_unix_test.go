//go:build !windows

package filesystem

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"stavetext/pkg/contract"
)

// collectIDs 遍历 roots 并收集 FileID（Unix 场景共用）。
func collectIDs(t *testing.T, r *FileSystem, roots []string) ([]string, error) {
	t.Helper()
	var ids []string
	err := r.Iterate(context.Background(), roots, func(id contract.FileID, rc io.ReadCloser) error {
		ids = append(ids, string(id))
		return rc.Close()
	})
	return ids, err
}

// TestUnixSpecialFiles 非常规文件与符号链接的取舍。
func TestUnixSpecialFiles(t *testing.T) {
	t.Run("fifo_in_dir_skipped", func(t *testing.T) {
		root := t.TempDir()
		if err := syscall.Mkfifo(filepath.Join(root, "fifo.st"), 0o644); err != nil {
			t.Fatalf("mkfifo: %v", err)
		}
		ids, err := collectIDs(t, New(nil), []string{root})
		if err != nil {
			t.Fatalf("遍历失败: %v", err)
		}
		if len(ids) != 0 {
			t.Fatalf("fifo 应被跳过: %#v", ids)
		}
	})
	t.Run("fifo_as_root_skipped", func(t *testing.T) {
		root := t.TempDir()
		fifo := filepath.Join(root, "pipe.st")
		if err := syscall.Mkfifo(fifo, 0o644); err != nil {
			t.Fatalf("mkfifo: %v", err)
		}
		ids, err := collectIDs(t, New(nil), []string{fifo})
		if err != nil {
			t.Fatalf("遍历失败: %v", err)
		}
		if len(ids) != 0 {
			t.Fatalf("显式 fifo 根也应跳过: %#v", ids)
		}
	})
	t.Run("symlink_to_file_followed", func(t *testing.T) {
		dir := t.TempDir()
		target := filepath.Join(dir, "t.st")
		if err := os.WriteFile(target, []byte("1 2 3 |"), 0o644); err != nil {
			t.Fatalf("写目标失败: %v", err)
		}
		link := filepath.Join(dir, "l.st")
		if err := os.Symlink(target, link); err != nil {
			t.Fatalf("symlink: %v", err)
		}
		ids, err := collectIDs(t, New(nil), []string{link})
		if err != nil {
			t.Fatalf("遍历失败: %v", err)
		}
		if len(ids) != 1 || filepath.Base(ids[0]) != "l.st" {
			t.Fatalf("应以链接名访问目标: %#v", ids)
		}
	})
	t.Run("symlink_to_dir_root_ignored", func(t *testing.T) {
		root := t.TempDir()
		realDir := filepath.Join(root, "real")
		if err := os.Mkdir(realDir, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(filepath.Join(realDir, "a.st"), []byte("x"), 0o644); err != nil {
			t.Fatalf("写文件失败: %v", err)
		}
		link := filepath.Join(root, "ln")
		if err := os.Symlink(realDir, link); err != nil {
			t.Fatalf("symlink: %v", err)
		}
		ids, err := collectIDs(t, New(nil), []string{link})
		if err != nil {
			t.Fatalf("遍历失败: %v", err)
		}
		if len(ids) != 0 {
			t.Fatalf("目录符号链接不应展开: %#v", ids)
		}
	})
	t.Run("symlink_to_dir_in_walk_ignored", func(t *testing.T) {
		root := t.TempDir()
		sub := filepath.Join(root, "sub")
		if err := os.Mkdir(sub, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(filepath.Join(sub, "ok.st"), []byte("o"), 0o644); err != nil {
			t.Fatalf("写文件失败: %v", err)
		}
		// 带手稿扩展名的目录符号链接同样不展开
		if err := os.Symlink(sub, filepath.Join(root, "subref.st")); err != nil {
			t.Fatalf("symlink: %v", err)
		}
		ids, err := collectIDs(t, New(nil), []string{root})
		if err != nil {
			t.Fatalf("遍历失败: %v", err)
		}
		if len(ids) != 1 || filepath.Base(ids[0]) != "ok.st" {
			t.Fatalf("仅应命中 sub/ok.st: %#v", ids)
		}
	})
	t.Run("dangling_symlink_errors", func(t *testing.T) {
		dir := t.TempDir()
		link := filepath.Join(dir, "dangling.st")
		if err := os.Symlink(filepath.Join(dir, "gone.st"), link); err != nil {
			t.Fatalf("symlink: %v", err)
		}
		if _, err := collectIDs(t, New(nil), []string{link}); err == nil {
			t.Fatalf("悬空链接应报错")
		}
	})
}
