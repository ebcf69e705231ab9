package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ErrProviderClosed is returned by reloads that race with Close.
var ErrProviderClosed = errors.New("config provider closed")

// FileProvider keeps the manifest at a path loaded and notifies subscribers
// whenever the file changes and still validates.
type FileProvider struct {
	path        string
	logger      *slog.Logger
	mu          sync.RWMutex
	config      *Config
	subscribers []chan *Config
	closed      bool
	watcher     *fsnotify.Watcher
	cancel      context.CancelFunc
	done        chan struct{}
}

// NewFileProvider loads path and starts watching it. The initial load must
// succeed; later failed reloads keep the previous manifest.
func NewFileProvider(path string, logger *slog.Logger) (*FileProvider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	cfg, err := Load(absPath)
	if err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch directory: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &FileProvider{
		path:    absPath,
		logger:  logger,
		config:  cfg,
		watcher: watcher,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go p.watchLoop(ctx)

	return p, nil
}

// Current returns the most recently loaded manifest.
func (p *FileProvider) Current() *Config {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.config
}

// Subscribe returns a channel that receives every successfully reloaded
// manifest. The current manifest is sent immediately. The channel is closed
// by Close.
func (p *FileProvider) Subscribe() <-chan *Config {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch := make(chan *Config, 1)
	ch <- p.config
	if p.closed {
		close(ch)
		return ch
	}
	p.subscribers = append(p.subscribers, ch)
	return ch
}

// Close stops the watcher and closes every subscriber channel. No reload is
// published after Close returns.
func (p *FileProvider) Close() error {
	p.cancel()
	err := p.watcher.Close()
	<-p.done

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	for _, ch := range p.subscribers {
		close(ch)
	}
	p.subscribers = nil
	return err
}

func (p *FileProvider) watchLoop(ctx context.Context) {
	defer close(p.done)

	var debounceTimer *time.Timer
	debounceDuration := 100 * time.Millisecond
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}

			if filepath.Clean(event.Name) != p.path {
				continue
			}

			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Chmod) {
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(debounceDuration, func() {
					err := p.reload()
					switch {
					case errors.Is(err, ErrProviderClosed):
					case err != nil:
						p.logger.Error("Error reloading manifest", "path", p.path, "error", err)
					default:
						p.logger.Info("Manifest reloaded", "path", p.path)
					}
				})
			}
		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			p.logger.Warn("Watcher error", "error", err)
		}
	}
}

func (p *FileProvider) reload() error {
	cfg, err := Load(p.path)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrProviderClosed
	}
	if err != nil {
		return err
	}
	p.config = cfg

	// Sends never block, so they are safe under the lock that Close takes
	// before closing the channels.
	for _, ch := range p.subscribers {
		select {
		case ch <- cfg:
		default:
			// Drain the stale value so the subscriber sees the newest manifest.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- cfg:
			default:
			}
		}
	}
	return nil
}
