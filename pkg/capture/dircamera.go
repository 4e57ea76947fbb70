package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// DirCamera is a Camera fed by image files dropped into a directory. The most
// recently written JPEG or PNG is the current frame. It lets the client run
// against a frame grabber or a recorded clip without a native video device.
type DirCamera struct {
	dir    string
	logger *slog.Logger

	mu      sync.Mutex
	current image.Image
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewDirCamera creates a camera watching dir.
func NewDirCamera(dir string, logger *slog.Logger) *DirCamera {
	if logger == nil {
		logger = slog.Default()
	}
	return &DirCamera{dir: dir, logger: logger}
}

// Acquire starts watching the directory and loads the newest image in it.
func (c *DirCamera) Acquire(ctx context.Context) error {
	info, err := os.Stat(c.dir)
	if err != nil {
		return classifyFSError(err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrDeviceNotFound, c.dir)
	}

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return classifyFSError(err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(c.dir); err != nil {
		watcher.Close()
		return classifyFSError(err)
	}

	if err := ctx.Err(); err != nil {
		watcher.Close()
		return err
	}

	c.mu.Lock()
	c.watcher = watcher
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()

	if latest := newestImage(c.dir, entries); latest != "" {
		c.load(latest)
	}

	go c.watch(watcher, done)

	c.logger.Info("Watching camera directory", slog.String("path", c.dir))
	return nil
}

// Release stops watching and forgets the current frame.
func (c *DirCamera) Release() error {
	c.mu.Lock()
	watcher, done := c.watcher, c.done
	c.watcher, c.done = nil, nil
	c.current = nil
	c.mu.Unlock()

	if watcher == nil {
		return nil
	}
	err := watcher.Close()
	<-done
	if err != nil {
		return fmt.Errorf("failed to close file watcher: %w", err)
	}
	return nil
}

// Frame returns the newest decoded image.
func (c *DirCamera) Frame() (image.Image, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current, c.current != nil
}

func (c *DirCamera) watch(watcher *fsnotify.Watcher, done chan struct{}) {
	defer close(done)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if isImage(event.Name) {
				c.load(event.Name)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			c.logger.Warn("Camera directory watcher error", slog.String("error", err.Error()))
		}
	}
}

func (c *DirCamera) load(path string) {
	f, err := os.Open(path)
	if err != nil {
		c.logger.Debug("Cannot open frame", slog.String("path", path), slog.String("error", err.Error()))
		return
	}
	defer f.Close()

	// Partially written files fail to decode; the following write event
	// delivers the complete image.
	img, _, err := image.Decode(f)
	if err != nil {
		c.logger.Debug("Cannot decode frame", slog.String("path", path), slog.String("error", err.Error()))
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.watcher != nil {
		c.current = img
	}
}

func classifyFSError(err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %v", ErrDeviceNotFound, err)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	default:
		return err
	}
}

func isImage(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}

func newestImage(dir string, entries []os.DirEntry) string {
	var newest string
	var newestMod int64
	for _, e := range entries {
		if e.IsDir() || !isImage(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if mod := info.ModTime().UnixNano(); newest == "" || mod > newestMod {
			newest = filepath.Join(dir, e.Name())
			newestMod = mod
		}
	}
	return newest
}
