// Package lockfile guards a ShopAssist state directory against concurrent servers.
//
// Two servers sharing one SQLite history file would interleave writes from
// unrelated sessions, so the server takes an exclusive flock on the directory
// before opening the store. The kernel drops the lock when the process exits.
package lockfile

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// LockFileName is the name of the lock file created in the state directory.
const LockFileName = "shopassist.lock"

// Info is the holder description written into the lock file.
type Info struct {
	PID   int
	Owner string // e.g. the API listen address
}

func (i Info) String() string {
	var parts []string
	if i.PID > 0 {
		state := "not running, stale lock"
		if isProcessRunning(i.PID) {
			state = "running"
		}
		parts = append(parts, fmt.Sprintf("PID %d (%s)", i.PID, state))
	}
	if i.Owner != "" {
		parts = append(parts, "owner "+i.Owner)
	}
	if len(parts) == 0 {
		return "no holder information"
	}
	return strings.Join(parts, ", ")
}

// Lock is an acquired state directory lock.
type Lock struct {
	file *os.File
	path string
}

// AcquireLock takes an exclusive lock on stateDir, creating the directory if needed.
// owner is recorded in the lock file so a conflicting start can report who holds it.
func AcquireLock(stateDir, owner string) (*Lock, error) {
	lockPath := filepath.Join(stateDir, LockFileName)
	slog.Debug("AcquireLock", "lock_path", lockPath, "owner", owner)

	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory %s: %w", stateDir, err)
	}

	// O_TRUNC is deliberately absent: a losing contender must not wipe the holder's info.
	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file %s: %w", lockPath, err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		file.Close()
		holder := ReadInfo(lockPath)
		slog.Error("State directory is locked by another ShopAssist server", "lock_path", lockPath, "holder", holder.String())
		return nil, &LockError{LockPath: lockPath, Holder: holder, Cause: err}
	}

	if err := writeInfo(file, Info{PID: os.Getpid(), Owner: owner}); err != nil {
		syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
		file.Close()
		return nil, fmt.Errorf("failed to write lock information to %s: %w", lockPath, err)
	}

	slog.Info("Acquired state directory lock", "lock_path", lockPath, "pid", os.Getpid())
	return &Lock{file: file, path: lockPath}, nil
}

func writeInfo(file *os.File, info Info) error {
	if err := file.Truncate(0); err != nil {
		return err
	}
	if _, err := file.WriteAt([]byte(fmt.Sprintf("pid=%d\nowner=%s\n", info.PID, info.Owner)), 0); err != nil {
		return err
	}
	if err := file.Sync(); err != nil {
		slog.Warn("Failed to sync lock file", "error", err, "lock_path", file.Name())
	}
	return nil
}

// Release drops the lock and removes the lock file. Safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN); err != nil {
		slog.Error("Failed to release flock", "error", err, "lock_path", l.path)
	}
	if err := l.file.Close(); err != nil {
		slog.Error("Failed to close lock file", "error", err, "lock_path", l.path)
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		slog.Error("Failed to remove lock file", "error", err, "lock_path", l.path)
	}
	l.file = nil
	slog.Info("Released state directory lock", "lock_path", l.path)
	return nil
}

// LockError reports that another server holds the state directory.
type LockError struct {
	LockPath string
	Holder   Info
	Cause    error
}

func (e *LockError) Error() string {
	return fmt.Sprintf("another ShopAssist server is using this state directory (lock file %s, holder: %s); "+
		"if no other server is running, remove the lock file and start again", e.LockPath, e.Holder)
}

func (e *LockError) Unwrap() error {
	return e.Cause
}

// ReadInfo parses the holder information of a lock file. Missing or malformed
// fields are left zero.
func ReadInfo(lockPath string) Info {
	var info Info
	f, err := os.Open(lockPath)
	if err != nil {
		return info
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), "=")
		if !ok {
			continue
		}
		switch key {
		case "pid":
			if pid, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
				info.PID = pid
			}
		case "owner":
			info.Owner = strings.TrimSpace(value)
		}
	}
	return info
}

// isProcessRunning sends signal 0, which checks for existence without delivering anything.
func isProcessRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
