package playback

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/clickrtraining/clickrtraining/internal/protocol"
)

//go:embed sounds/click.wav
var defaultClick []byte

var ErrSoundNotFound = errors.New("sound not found")

// Extensions are tried in order when resolving a named sound.
var Extensions = []string{".ogg", ".wav", ".mp3"}

// Library maps sound references to playable files. Named sounds live in a
// directory that is indexed on open and kept current by a watcher.
type Library struct {
	dir         string
	defaultPath string
	logger      *slog.Logger

	mu    sync.RWMutex
	index map[string]string

	watcher   *fsnotify.Watcher
	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// OpenLibrary materialises the built-in click and indexes dir. A missing
// dir is not an error: only the default sound is available then.
func OpenLibrary(dir string, logger *slog.Logger) (*Library, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	defaultPath, err := writeTemp(defaultClick)
	if err != nil {
		return nil, err
	}

	l := &Library{
		dir:         dir,
		defaultPath: defaultPath,
		logger:      logger,
		index:       make(map[string]string),
		closed:      make(chan struct{}),
	}

	info, err := os.Stat(dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.Debug("Sound directory does not exist, only the default click is available", "dir", dir)
		return l, nil
	case err != nil:
		l.Close()
		return nil, fmt.Errorf("stat sound directory: %w", err)
	case !info.IsDir():
		l.Close()
		return nil, fmt.Errorf("sound directory %s is not a directory", dir)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		l.Close()
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		l.Close()
		return nil, fmt.Errorf("watch sound directory: %w", err)
	}
	l.watcher = watcher

	if err := l.scan(); err != nil {
		l.Close()
		return nil, err
	}

	l.wg.Add(1)
	go l.watchLoop()
	return l, nil
}

func writeTemp(data []byte) (string, error) {
	f, err := os.CreateTemp("", "clickrtraining-click-*.wav")
	if err != nil {
		return "", fmt.Errorf("create temp file for default click: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write default click: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("close default click: %w", err)
	}
	return f.Name(), nil
}

// Resolve returns the file to play for ref.
func (l *Library) Resolve(ref protocol.SoundReference) (string, error) {
	if ref.IsDefault() {
		return l.defaultPath, nil
	}

	name := protocol.SanitizeSoundName(ref.Name)
	l.mu.RLock()
	path, ok := l.index[name]
	l.mu.RUnlock()
	if ok {
		return path, nil
	}
	return "", fmt.Errorf("%w: %s in %s", ErrSoundNotFound, name, l.dir)
}

// Names lists the indexed custom sounds.
func (l *Library) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := make([]string, 0, len(l.index))
	for name := range l.index {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (l *Library) scan() error {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return fmt.Errorf("read sound directory: %w", err)
	}
	seen := make(map[string]struct{})
	for _, e := range entries {
		if name, ok := soundName(e.Name()); ok {
			seen[name] = struct{}{}
		}
	}
	for name := range seen {
		l.refresh(name)
	}
	l.logger.Debug("Indexed sound directory", "dir", l.dir, "sounds", len(l.index))
	return nil
}

// refresh re-resolves name against the directory, honouring extension order.
func (l *Library) refresh(name string) {
	var found string
	for _, ext := range Extensions {
		candidate := filepath.Join(l.dir, name+ext)
		if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
			found = candidate
			break
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if found == "" {
		delete(l.index, name)
		return
	}
	l.index[name] = found
}

func (l *Library) watchLoop() {
	defer l.wg.Done()
	for {
		select {
		case <-l.closed:
			return
		case event, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			name, ok := soundName(filepath.Base(event.Name))
			if !ok {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				l.refresh(name)
				l.logger.Debug("Sound directory changed", "sound", name, "op", event.Op.String())
			}
		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			l.logger.Warn("Sound directory watcher error", "error", err)
		}
	}
}

// Close stops watching and removes the materialised default click.
func (l *Library) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.closed)
		if l.watcher != nil {
			err = l.watcher.Close()
		}
		l.wg.Wait()
		if rmErr := os.Remove(l.defaultPath); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) && err == nil {
			err = rmErr
		}
	})
	return err
}

func soundName(file string) (string, bool) {
	ext := filepath.Ext(file)
	for _, e := range Extensions {
		if ext == e {
			return strings.TrimSuffix(file, ext), true
		}
	}
	return "", false
}
