// monitor.go
package file

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileMonitor 监听目录中新写入的CSV/xlsx文件
type FileMonitor struct {
	watchDir string
	watcher  *fsnotify.Watcher
	lastMod  map[string]time.Time
	mu       sync.Mutex
}

func NewFileMonitor(dir string) (*FileMonitor, error) {
	if err := EnsureDir(dir); err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	return &FileMonitor{
		watchDir: dir,
		watcher:  watcher,
		lastMod:  make(map[string]time.Time),
	}, nil
}

func (m *FileMonitor) Dir() string { return m.watchDir }

func (m *FileMonitor) Close() error { return m.watcher.Close() }

// Watch 阻塞直到ctx取消. 同一文件只有修改时间变化才会再次触发handler,
// handler在当前goroutine中依次执行.
func (m *FileMonitor) Watch(ctx context.Context, handler func(path string)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-m.watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !Supported(event.Name) {
				continue
			}
			if m.isNewFile(event.Name) {
				handler(event.Name)
			}
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}

func (m *FileMonitor) isNewFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.lastMod[path]; ok && !info.ModTime().After(prev) {
		return false
	}
	m.lastMod[path] = info.ModTime()
	return true
}
