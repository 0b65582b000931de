package slogutil

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

var sizePattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*(B|KB|MB|GB)?$`)

var sizeUnits = map[string]float64{
	"":   1,
	"B":  1,
	"KB": 1 << 10,
	"MB": 1 << 20,
	"GB": 1 << 30,
}

// RotatingFile appends to a log file and shifts it to .1, .2, ... when a
// write would push it past limit bytes. At most keep shifted copies survive.
type RotatingFile struct {
	mu      sync.Mutex
	name    string
	limit   int64
	keep    int
	f       *os.File
	written int64
}

// OpenRotatingFile opens path for appending, creating parent directories.
// maxSize 0 never rotates; maxBackups 0 truncates on rotation.
func OpenRotatingFile(path string, maxSize int64, maxBackups int) (*RotatingFile, error) {
	rf := &RotatingFile{name: path, limit: maxSize, keep: maxBackups}
	if err := rf.reopen(); err != nil {
		return nil, err
	}
	return rf, nil
}

func (rf *RotatingFile) reopen() error {
	if err := os.MkdirAll(filepath.Dir(rf.name), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(rf.name, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return err
	}
	rf.f, rf.written = f, st.Size()
	return nil
}

// Write appends p, rotating beforehand if p would not fit.
func (rf *RotatingFile) Write(p []byte) (int, error) {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if rf.needsRotation(len(p)) {
		// On failure keep writing to whatever file is still open.
		_ = rf.shift()
	}
	if rf.f == nil {
		return 0, os.ErrClosed
	}
	n, err := rf.f.Write(p)
	rf.written += int64(n)
	return n, err
}

func (rf *RotatingFile) needsRotation(n int) bool {
	return rf.limit > 0 && rf.written > 0 && rf.written+int64(n) > rf.limit
}

func (rf *RotatingFile) Close() error {
	rf.mu.Lock()
	defer rf.mu.Unlock()
	return rf.closeFile()
}

func (rf *RotatingFile) closeFile() error {
	if rf.f == nil {
		return nil
	}
	err := rf.f.Close()
	rf.f = nil
	return err
}

// shift renames name.(k-1) to name.k down to name -> name.1, dropping the
// oldest copy, then reopens an empty file.
func (rf *RotatingFile) shift() error {
	if err := rf.closeFile(); err != nil {
		return err
	}
	if rf.keep == 0 {
		_ = os.Remove(rf.name)
	} else {
		_ = os.Remove(rf.copyName(rf.keep))
		for k := rf.keep; k > 1; k-- {
			if _, err := os.Stat(rf.copyName(k - 1)); err == nil {
				_ = os.Rename(rf.copyName(k-1), rf.copyName(k))
			}
		}
		_ = os.Rename(rf.name, rf.copyName(1))
	}
	rf.written = 0
	return rf.reopen()
}

func (rf *RotatingFile) copyName(k int) string {
	return fmt.Sprintf("%s.%d", rf.name, k)
}

// ParseSize reads "750KB", "10mb", "1.5GB" or a bare byte count. Anything
// it cannot read is 0.
func ParseSize(s string) int64 {
	m := sizePattern.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(s)))
	if m == nil {
		return 0
	}
	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	return int64(n * sizeUnits[m[2]])
}

// NewFileLoggerWithRotation is NewFileLogger with size-based rotation.
// A maxSize that ParseSize reads as 0 disables rotation.
func NewFileLoggerWithRotation(path string, level slog.Level, maxSize string, maxBackups int) (*slog.Logger, io.Closer, error) {
	limit := ParseSize(maxSize)
	if limit <= 0 {
		return NewFileLogger(path, level)
	}
	rf, err := OpenRotatingFile(path, limit, maxBackups)
	if err != nil {
		return nil, nil, err
	}
	return NewLogger(rf, level), rf, nil
}
