/*
 * Copyright (c) Huawei Technologies Co., Ltd. 2025-2026. All rights reserved.
 */

package log

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"
)

const (
	backupTimeFormat = "20060102T150405.000"
	compressSuffix   = ".gz"
	defaultLogPath   = "/var/log/hmp-core"

	fileModeArchiveLog = 0440
	fileModeWritingLog = 0640
	dirModeLogDir      = 0750
	hoursPerDay        = 24
)

var _ io.WriteCloser = (*FileLogger)(nil)

// currentTime is a variable so tests can substitute it without waiting on
// the wall clock.
var (
	currentTime = time.Now
	megabyte    = 1024 * 1024
)

// FileLogger writes log entries to a size-bounded file. When the active file
// would exceed maxSize MB the file is renamed with a timestamp, compressed,
// and a fresh file is opened. maxBackups and maxAge bound how many archived
// files are kept; if both are zero nothing is ever deleted.
type FileLogger struct {
	fileName   string
	maxSize    int
	maxBackups int
	maxAge     int

	writtenLen int64
	file       *os.File
	mutex      sync.Mutex

	staleCh      chan struct{}
	staleLoopSet sync.Once
}

// Write implements io.Writer.
func (l *FileLogger) Write(p []byte) (int, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	entryLen := int64(len(p))
	if entryLen > l.sizeLimit() {
		return 0, fmt.Errorf("write length %d exceeds maximum file size %d", entryLen, l.sizeLimit())
	}

	if l.file == nil {
		if err := l.openExistingOrNew(len(p)); err != nil {
			return 0, err
		}
	}

	if l.writtenLen+entryLen >= l.sizeLimit() {
		if err := l.rotate(); err != nil {
			return 0, err
		}
	}

	n, err := l.file.Write(p)
	l.writtenLen += int64(n)
	return n, err
}

// Close implements io.Closer, and closes the current logfile.
func (l *FileLogger) Close() error {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.close()
}

func (l *FileLogger) close() error {
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// Rotate closes the existing log file and immediately creates a new one.
func (l *FileLogger) Rotate() error {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.rotate()
}

func (l *FileLogger) rotate() error {
	if err := l.close(); err != nil {
		return err
	}
	if err := l.openNew(); err != nil {
		return err
	}
	l.kickStaleLoop()
	return nil
}

// openNew archives any existing log file under a timestamped name and opens
// a fresh one. Assumes the previous file is already closed.
func (l *FileLogger) openNew() error {
	if err := os.MkdirAll(l.dir(), dirModeLogDir); err != nil {
		return fmt.Errorf("can't make directories for new logfile: %v", err)
	}

	name := l.filename()
	if info, err := os.Stat(name); err == nil {
		archived := backupName(name)
		if err := os.Rename(name, archived); err != nil {
			return fmt.Errorf("can't rename log file: %v", err)
		}
		if err := os.Chmod(archived, os.FileMode(fileModeArchiveLog)); err != nil {
			return fmt.Errorf("can't chmod log file: %v", err)
		}
		if err := recreateAsOwner(name, info); err != nil {
			return err
		}
	}

	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(fileModeWritingLog))
	if err != nil {
		return fmt.Errorf("can't open new logfile: %v", err)
	}
	l.file = f
	l.writtenLen = 0
	return nil
}

// backupName inserts a UTC timestamp between the file name and extension.
func backupName(name string) string {
	dir := filepath.Dir(name)
	base := filepath.Base(name)
	ext := filepath.Ext(base)
	prefix := base[:len(base)-len(ext)]
	ts := currentTime().UTC().Format(backupTimeFormat)
	return filepath.Join(dir, fmt.Sprintf("%s-%s%s", prefix, ts, ext))
}

// openExistingOrNew appends to the current log file when the pending write
// still fits, otherwise rotates first.
func (l *FileLogger) openExistingOrNew(writeLen int) error {
	l.kickStaleLoop()
	name := l.filename()
	info, err := os.Stat(name)
	if os.IsNotExist(err) {
		return l.openNew()
	}
	if err != nil {
		return fmt.Errorf("error getting log file info: %v", err)
	}

	if info.Size()+int64(writeLen) >= l.sizeLimit() {
		return l.rotate()
	}

	file, err := os.OpenFile(name, os.O_APPEND|os.O_WRONLY, os.FileMode(fileModeWritingLog))
	if err != nil {
		// the old file is unusable, start over with a new one
		return l.openNew()
	}
	l.file = file
	l.writtenLen = info.Size()
	return nil
}

// filename resolves relative names under the default log directory.
func (l *FileLogger) filename() string {
	l.fileName = filepath.Clean(l.fileName)
	if !filepath.IsAbs(l.fileName) {
		l.fileName = filepath.Join(defaultLogPath, filepath.Base(l.fileName))
	}
	return l.fileName
}

// cleanupOnce compresses fresh archives and removes those beyond maxBackups
// or older than maxAge days.
func (l *FileLogger) cleanupOnce() error {
	if l.maxBackups == 0 && l.maxAge == 0 {
		return nil
	}

	files, err := l.oldLogFiles()
	if err != nil {
		return err
	}

	preserved := make(map[string]bool)
	cutoff := currentTime().Add(-time.Duration(l.maxAge) * hoursPerDay * time.Hour)
	var toCompress, toRemove []logInfo
	for _, f := range files {
		baseName := strings.TrimSuffix(f.Name(), compressSuffix)
		expired := l.maxAge != 0 && f.timestamp.Before(cutoff)
		if (l.maxBackups != 0 && len(preserved) >= l.maxBackups) || expired {
			toRemove = append(toRemove, f)
			continue
		}
		preserved[baseName] = true
		if !strings.HasSuffix(f.Name(), compressSuffix) {
			toCompress = append(toCompress, f)
		}
	}

	for _, f := range toRemove {
		if errRemove := os.Remove(filepath.Join(l.dir(), f.Name())); errRemove != nil {
			err = errRemove
		}
	}
	for _, f := range toCompress {
		fn := filepath.Join(l.dir(), f.Name())
		if errCompress := compressLogFile(fn, fn+compressSuffix); errCompress != nil {
			err = errCompress
		}
	}
	return err
}

func (l *FileLogger) staleLoop() {
	for range l.staleCh {
		if err := l.cleanupOnce(); err != nil {
			fmt.Fprintf(os.Stderr, "clean stale log err: %v\n", err)
		}
	}
}

// kickStaleLoop schedules a cleanup pass; passes already pending are merged.
func (l *FileLogger) kickStaleLoop() {
	l.staleLoopSet.Do(func() {
		l.staleCh = make(chan struct{}, 1)
		go l.staleLoop()
	})
	select {
	case l.staleCh <- struct{}{}:
	default:
	}
}

// oldLogFiles lists archived log files next to the active one, newest first.
func (l *FileLogger) oldLogFiles() ([]logInfo, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	entries, err := os.ReadDir(l.dir())
	if err != nil {
		return nil, fmt.Errorf("can't read log file directory: %v", err)
	}

	prefix, ext := l.prefixAndExt()
	var files []logInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if t, err := timeFromName(e.Name(), prefix, ext); err == nil {
			files = append(files, logInfo{t, info})
		} else if t, err := timeFromName(e.Name(), prefix, ext+compressSuffix); err == nil {
			files = append(files, logInfo{t, info})
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].timestamp.After(files[j].timestamp) })
	return files, nil
}

// timeFromName extracts the archive timestamp when both prefix and
// extension match.
func timeFromName(filename, prefix, ext string) (time.Time, error) {
	if !strings.HasPrefix(filename, prefix) {
		return time.Time{}, errors.New("mismatched prefix")
	}
	if !strings.HasSuffix(filename, ext) {
		return time.Time{}, errors.New("mismatched extension")
	}
	ts := filename[len(prefix) : len(filename)-len(ext)]
	return time.Parse(backupTimeFormat, ts)
}

func (l *FileLogger) sizeLimit() int64 {
	if l.maxSize == 0 {
		return int64(defaultMaxSize * megabyte)
	}
	return int64(l.maxSize) * int64(megabyte)
}

func (l *FileLogger) dir() string {
	return filepath.Dir(l.filename())
}

func (l *FileLogger) prefixAndExt() (prefix, ext string) {
	base := filepath.Base(l.filename())
	ext = filepath.Ext(base)
	prefix = base[:len(base)-len(ext)] + "-"
	return prefix, ext
}

// recreateAsOwner creates an empty file carrying over mode and ownership of
// the archived one.
func recreateAsOwner(name string, info os.FileInfo) error {
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return chownLike(name, info)
}

// chownLike gives name the same owner as info when that can be determined.
func chownLike(name string, info os.FileInfo) error {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return fmt.Errorf("file info does not contain syscall.Stat_t")
	}
	return os.Chown(name, int(stat.Uid), int(stat.Gid))
}

// compressLogFile gzips src into dst and removes src on success.
func compressLogFile(src, dst string) (err error) {
	srcFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open log file failed: %v", err)
	}
	defer srcFile.Close()

	srcInfo, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat log file failed: %v", err)
	}

	dstFile, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, srcInfo.Mode())
	if err != nil {
		return fmt.Errorf("open compressed log file failed: %v", err)
	}
	defer dstFile.Close()
	if err := chownLike(dst, srcInfo); err != nil {
		return fmt.Errorf("chown compressed log file failed: %v", err)
	}

	defer func() {
		if err != nil {
			os.Remove(dst)
			err = fmt.Errorf("compress log file failed: %v", err)
		}
	}()

	gz := gzip.NewWriter(dstFile)
	if _, err := io.Copy(gz, srcFile); err != nil {
		return err
	}
	if err := gz.Close(); err != nil {
		return err
	}
	if err := dstFile.Close(); err != nil {
		return err
	}
	if err := srcFile.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}

// logInfo pairs an archived file with the timestamp embedded in its name.
type logInfo struct {
	timestamp time.Time
	os.FileInfo
}
