// 配置文件变更监听器实现。
//
// 基于 mtime 轮询触发重载回调，用于 UA 白名单等可热更新的配置段。
package config

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// FileOp represents file operation types
type FileOp int

const (
	// FileOpCreate 表示文件已创建
	FileOpCreate FileOp = iota
	// FileOpWrite 指示文件已被修改
	FileOpWrite
	// FileOpRemove 表示文件已被删除
	FileOpRemove
)

// String returns the string representation of FileOp
func (op FileOp) String() string {
	switch op {
	case FileOpCreate:
		return "CREATE"
	case FileOpWrite:
		return "WRITE"
	case FileOpRemove:
		return "REMOVE"
	default:
		return "UNKNOWN"
	}
}

// FileEvent represents a file change event
type FileEvent struct {
	Path      string    `json:"path"`
	Op        FileOp    `json:"op"`
	Timestamp time.Time `json:"timestamp"`
}

// WatcherOption configures the FileWatcher
type WatcherOption func(*FileWatcher)

// WithPollInterval sets how often the file is stat'ed.
func WithPollInterval(d time.Duration) WatcherOption {
	return func(w *FileWatcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithWatcherLogger sets the logger for the watcher
func WithWatcherLogger(logger *zap.Logger) WatcherOption {
	return func(w *FileWatcher) {
		w.logger = logger
	}
}

// FileWatcher polls a single config file for modification.
type FileWatcher struct {
	mu sync.Mutex

	path     string
	interval time.Duration

	running   bool
	stopChan  chan struct{}
	callbacks []func(FileEvent)

	lastMod time.Time
	exists  bool

	logger *zap.Logger
}

// NewFileWatcher creates a watcher for path. A missing file is not an error;
// its later creation is reported as FileOpCreate.
func NewFileWatcher(path string, opts ...WatcherOption) (*FileWatcher, error) {
	w := &FileWatcher{
		path:     path,
		interval: 2 * time.Second,
		stopChan: make(chan struct{}),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}

	info, err := os.Stat(path)
	switch {
	case err == nil:
		w.lastMod = info.ModTime()
		w.exists = true
	case os.IsNotExist(err):
		w.logger.Warn("config file does not exist, will watch for creation", zap.String("path", path))
	default:
		return nil, fmt.Errorf("failed to stat path %s: %w", path, err)
	}
	return w, nil
}

// OnChange registers a callback for file change events
func (w *FileWatcher) OnChange(callback func(FileEvent)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Start begins polling in a background goroutine.
func (w *FileWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return fmt.Errorf("watcher already running")
	}
	w.running = true

	go w.pollLoop(ctx)

	w.logger.Info("config watcher started",
		zap.String("path", w.path),
		zap.Duration("interval", w.interval))
	return nil
}

// Stop stops the file watcher
func (w *FileWatcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	close(w.stopChan)
	w.running = false
}

func (w *FileWatcher) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case <-ticker.C:
			if ev, ok := w.check(); ok {
				w.dispatch(ev)
			}
		}
	}
}

// check compares the file's mtime against the last observation.
func (w *FileWatcher) check() (FileEvent, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	info, err := os.Stat(w.path)
	if err != nil {
		if os.IsNotExist(err) && w.exists {
			w.exists = false
			return FileEvent{Path: w.path, Op: FileOpRemove, Timestamp: now}, true
		}
		return FileEvent{}, false
	}

	if !w.exists {
		w.exists = true
		w.lastMod = info.ModTime()
		return FileEvent{Path: w.path, Op: FileOpCreate, Timestamp: now}, true
	}
	if info.ModTime().After(w.lastMod) {
		w.lastMod = info.ModTime()
		return FileEvent{Path: w.path, Op: FileOpWrite, Timestamp: now}, true
	}
	return FileEvent{}, false
}

func (w *FileWatcher) dispatch(ev FileEvent) {
	w.mu.Lock()
	callbacks := make([]func(FileEvent), len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.Unlock()

	w.logger.Debug("dispatching config file event",
		zap.String("path", ev.Path),
		zap.String("op", ev.Op.String()))
	for _, cb := range callbacks {
		cb(ev)
	}
}

// IsRunning returns whether the watcher is running
func (w *FileWatcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}
