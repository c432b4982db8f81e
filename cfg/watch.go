package cfg

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
)

// Watcher 监听配置文件变更，文件被写入或重建时触发回调
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	handlers []func() error
	errors   chan error

	mu        sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

func NewWatcher(path string) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrapf(err, "filepath.Abs %s failed", path)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "fsnotify.NewWatcher failed")
	}
	// 监听目录，编辑器保存文件时常常是删除后重建
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, errors.Wrapf(err, "watch %s failed", filepath.Dir(abs))
	}
	return &Watcher{
		path:    abs,
		watcher: w,
		errors:  make(chan error, 16),
		done:    make(chan struct{}),
	}, nil
}

func (w *Watcher) OnChange(fn func() error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers = append(w.handlers, fn)
}

// Errors 回调和监听过程中的错误，缓冲满时丢弃
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

func (w *Watcher) Start() {
	go w.loop()
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.mu.Lock()
			handlers := append([]func() error(nil), w.handlers...)
			w.mu.Unlock()
			for _, fn := range handlers {
				if err := fn(); err != nil {
					w.report(errors.WithMessagef(err, "handle change of %s failed", w.path))
				}
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.report(errors.Wrap(err, "watcher error"))
		}
	}
}

func (w *Watcher) report(err error) {
	select {
	case w.errors <- err:
	default:
	}
}

func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.watcher.Close()
	})
	return err
}
