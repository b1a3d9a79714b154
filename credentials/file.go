package credentials

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// FileToken is a bearer token read from a file. Watch keeps it in sync with
// the file so rotated secrets are picked up without restarting.
type FileToken struct {
	path   string
	logger *slog.Logger

	mu    sync.RWMutex
	token string
}

// NewFileToken reads the token at path. Surrounding whitespace is trimmed.
func NewFileToken(logger *slog.Logger, path string) (*FileToken, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	f := &FileToken{path: path, logger: logger}
	if err := f.Reload(); err != nil {
		return nil, err
	}

	return f, nil
}

func (f *FileToken) Token() string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return f.token
}

// Reload reads the file again. An empty file is an error and keeps the old token.
func (f *FileToken) Reload() error {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return fmt.Errorf("cannot read token file: %w", err)
	}

	token := strings.TrimSpace(string(data))
	if token == "" {
		return errors.New("token file is empty")
	}

	f.mu.Lock()
	f.token = token
	f.mu.Unlock()

	return nil
}

// Watch reloads the token whenever the file is written, created or replaced
// until ctx is done. The parent directory is watched, not the file itself.
func (f *FileToken) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("cannot create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(f.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("cannot add token directory to watcher: %w", err)
	}

	target := filepath.Clean(f.path)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				f.logger.Debug("fsnotify watcher channel is closed.")
				return nil
			}

			if filepath.Clean(event.Name) != target {
				continue
			}

			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				f.logger.Debug("ignoring token file event.", "event", event.String())
				continue
			}

			if err := f.Reload(); err != nil {
				// A rename or truncate may leave the file briefly missing or empty.
				f.logger.Warn("cannot reload token file.", "path", f.path, "error", err)
				continue
			}

			f.logger.Info("reloaded token file.", "path", f.path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}
