// Package logger routes the standard logger to stdout and a size-rotated file.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

// Rotator is an io.Writer that starts a new file once MaxSize bytes are written.
// Up to MaxBackups old files are kept as Filename.1 (newest) .. Filename.N.
type Rotator struct {
	Filename   string
	MaxSize    int64 // bytes, 0 disables rotation
	MaxBackups int

	mu   sync.Mutex
	file *os.File
	size int64
}

// Setup sends log output to stdout and filename, dropping lines below level.
// If the file cannot be opened the bot still logs to stdout.
func Setup(filename string, maxSizeMB int64, maxBackups int, level string) {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	filter := &levelFilter{w: os.Stdout, min: ParseLevel(level)}
	log.SetOutput(filter)

	r := &Rotator{Filename: filename, MaxSize: maxSizeMB << 20, MaxBackups: maxBackups}
	if err := r.open(); err != nil {
		log.Printf("ERROR: log file %s unavailable, logging to stdout only: %v", filename, err)
		return
	}
	filter.w = io.MultiWriter(os.Stdout, r)
}

// open appends to Filename, creating it if needed.
func (r *Rotator) open() error {
	f, err := os.OpenFile(r.Filename, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	r.file, r.size = f, info.Size()
	return nil
}

func (r *Rotator) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		if err := r.open(); err != nil {
			return 0, err
		}
	}
	if r.MaxSize > 0 && r.size > 0 && r.size+int64(len(p)) > r.MaxSize {
		if err := r.rotate(); err != nil {
			fmt.Fprintf(os.Stderr, "log rotation failed, appending to current file: %v\n", err)
		}
	}

	n, err := r.file.Write(p)
	r.size += int64(n)
	return n, err
}

// Close releases the current file.
func (r *Rotator) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

func (r *Rotator) backup(i int) string {
	return fmt.Sprintf("%s.%d", r.Filename, i)
}

// rotate shifts Filename.i to Filename.i+1, drops whatever falls past MaxBackups
// and reopens an empty Filename.
func (r *Rotator) rotate() error {
	if err := r.file.Close(); err != nil {
		return err
	}
	r.file = nil

	if r.MaxBackups <= 0 {
		if err := os.Remove(r.Filename); err != nil && !os.IsNotExist(err) {
			return err
		}
		return r.open()
	}

	os.Remove(r.backup(r.MaxBackups))
	for i := r.MaxBackups - 1; i >= 1; i-- {
		if err := os.Rename(r.backup(i), r.backup(i+1)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	if err := os.Rename(r.Filename, r.backup(1)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return r.open()
}
