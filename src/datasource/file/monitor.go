// monitor.go
package file

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileMonitor 监控单个数据文件，文件变化时回调
// 监听的是所在目录，这样文件被替换(rename/create)时也能收到事件
type FileMonitor struct {
	watchDir string
	target   string
	watcher  *fsnotify.Watcher
	lastMod  time.Time
	mu       sync.Mutex
}

func NewFileMonitor(filePath string) (*FileMonitor, error) {
	abs, err := filepath.Abs(filePath)
	if err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(abs)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	return &FileMonitor{
		watchDir: dir,
		target:   abs,
		watcher:  watcher,
	}, nil
}

// Target 被监控文件的绝对路径
func (m *FileMonitor) Target() string { return m.target }

// Watch 阻塞直到 ctx 结束或 watcher 关闭
// 写入事件只有在修改时间前进时才回调，删除/重命名总是回调
func (m *FileMonitor) Watch(ctx context.Context, handler func(string)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-m.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != m.target {
				continue
			}
			if m.changed(event) {
				handler(m.target)
			}
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}

func (m *FileMonitor) changed(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		m.mu.Lock()
		m.lastMod = time.Time{}
		m.mu.Unlock()
		return true
	}
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return false
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if info.ModTime().After(m.lastMod) || event.Op&fsnotify.Create != 0 {
		m.lastMod = info.ModTime()
		return true
	}
	return false
}

func (m *FileMonitor) Close() error {
	return m.watcher.Close()
}
