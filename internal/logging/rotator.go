package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// FileRotator appends to Config.FilePath and starts a new file once a write
// would push it past Config.MaxSize megabytes. The old file is renamed to
// <name>-<timestamp><ext> and only the newest Config.MaxBackups are kept.
type FileRotator struct {
	path       string
	maxBytes   int64
	maxBackups int
	now        func() time.Time

	mu   sync.Mutex
	file *os.File
	size int64
}

// NewFileRotator opens cfg.FilePath, creating its directory.
func NewFileRotator(cfg *Config) (*FileRotator, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0750); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	r := &FileRotator{
		path:       cfg.FilePath,
		maxBytes:   cfg.MaxSize << 20,
		maxBackups: cfg.MaxBackups,
		now:        time.Now,
	}
	if err := r.open(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *FileRotator) open() error {
	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0640)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	r.file, r.size = f, info.Size()
	return nil
}

func (r *FileRotator) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		if err := r.open(); err != nil {
			return 0, err
		}
	}
	if r.maxBytes > 0 && r.size > 0 && r.size+int64(len(p)) > r.maxBytes {
		if err := r.rotate(); err != nil {
			return 0, fmt.Errorf("rotate log: %w", err)
		}
	}
	n, err := r.file.Write(p)
	r.size += int64(n)
	return n, err
}

func (r *FileRotator) rotate() error {
	err := r.file.Close()
	r.file = nil
	if err != nil {
		return fmt.Errorf("close current log: %w", err)
	}

	stem, ext := r.stem()
	backup := fmt.Sprintf("%s-%s%s", stem, r.now().Format("20060102-150405.000"), ext)
	if err := os.Rename(r.path, backup); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("rename log file: %w", err)
	}
	if err := r.open(); err != nil {
		return err
	}

	if r.maxBackups > 0 {
		old, _ := r.backups()
		for len(old) > r.maxBackups {
			os.Remove(old[0])
			old = old[1:]
		}
	}
	return nil
}

// stem splits the log path into everything before the extension and the
// extension itself.
func (r *FileRotator) stem() (string, string) {
	ext := filepath.Ext(r.path)
	return strings.TrimSuffix(r.path, ext), ext
}

// backups lists rotated files, oldest first.
func (r *FileRotator) backups() ([]string, error) {
	stem, ext := r.stem()
	matches, err := filepath.Glob(stem + "-*" + ext)
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

// Close closes the current file. A later Write reopens it.
func (r *FileRotator) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}
