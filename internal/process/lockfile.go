//go:build !windows
// +build !windows

package process

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	constants "contmon/config"
	"contmon/internal/logger"
)

// ErrAlreadyRunning is returned by Acquire when another collector holds the lock.
var ErrAlreadyRunning = errors.New("another contmon instance is already running")

// LockFile represents an exclusive lock on a PID file
type LockFile struct {
	path string
	fd   int
}

// getPIDFilePath returns the PID file location.
// Variable (not function) to allow override in tests
var getPIDFilePath = func() string {
	if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
		return filepath.Join(runtimeDir, constants.PID_FILE_NAME)
	}
	if os.Geteuid() == 0 {
		return filepath.Join("/run", constants.PID_FILE_NAME)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, constants.CONFIG_DIR_NAME, constants.PID_FILE_NAME)
	}
	return fmt.Sprintf("/tmp/contmon-%d.pid", os.Getuid())
}

// PIDFilePath returns where the lock lives.
func PIDFilePath() string {
	return getPIDFilePath()
}

// Acquire creates and locks the PID file.
// Returns ErrAlreadyRunning if another instance holds it
func Acquire() (*LockFile, error) {
	pidFile := getPIDFilePath()

	if err := os.MkdirAll(filepath.Dir(pidFile), 0755); err != nil {
		return nil, fmt.Errorf("failed to create PID directory: %w", err)
	}

	// Open without truncating; the current holder's PID must survive a failed attempt.
	fd, err := syscall.Open(pidFile, syscall.O_RDWR|syscall.O_CREAT, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open PID file: %w", err)
	}

	if err := syscall.Flock(fd, syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		syscall.Close(fd)
		return nil, ErrAlreadyRunning
	}

	if err := syscall.Ftruncate(fd, 0); err != nil {
		unlock(fd)
		return nil, fmt.Errorf("failed to truncate PID file: %w", err)
	}
	if _, err := syscall.Write(fd, []byte(fmt.Sprintf("%d\n", os.Getpid()))); err != nil {
		unlock(fd)
		return nil, fmt.Errorf("failed to write PID: %w", err)
	}

	logger.Debug("Acquired PID file lock: %s (PID: %d)", pidFile, os.Getpid())

	// Keep fd open to maintain lock
	return &LockFile{path: pidFile, fd: fd}, nil
}

func unlock(fd int) {
	syscall.Flock(fd, syscall.LOCK_UN)
	syscall.Close(fd)
}

// Release releases the lock and removes the PID file. Safe to call twice.
func (lf *LockFile) Release() error {
	if lf == nil || lf.fd <= 0 {
		return nil
	}

	logger.Debug("Releasing PID file lock: %s", lf.path)

	// Remove while still holding the lock so nobody locks a file we then delete.
	os.Remove(lf.path)
	unlock(lf.fd)

	lf.fd = 0
	return nil
}

// Check reports whether some process holds the lock and, if so, its PID.
func Check() (bool, int, error) {
	fd, err := syscall.Open(getPIDFilePath(), syscall.O_RDONLY, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return false, 0, nil
		}
		return false, 0, fmt.Errorf("failed to open PID file: %w", err)
	}
	defer syscall.Close(fd)

	if err := syscall.Flock(fd, syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		return true, readPIDFromFd(fd), nil
	}

	// Nobody holds it: stale file.
	syscall.Flock(fd, syscall.LOCK_UN)
	return false, 0, nil
}

// readPIDFromFd reads PID from file descriptor
func readPIDFromFd(fd int) int {
	buf := make([]byte, 32)
	n, err := syscall.Read(fd, buf)
	if err != nil || n == 0 {
		return 0
	}

	var pid int
	fmt.Sscanf(strings.TrimSpace(string(buf[:n])), "%d", &pid)
	return pid
}

// IsCollectorProcess verifies that pid runs the contmon daemon loop.
// This prevents false positives from PID reuse. Linux only; elsewhere it
// trusts the lock.
func IsCollectorProcess(pid int) bool {
	if pid <= 0 {
		return false
	}

	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/cmdline", pid))
	if err != nil {
		return !os.IsNotExist(err) && !isLinux()
	}
	cmdline := strings.ToLower(strings.ReplaceAll(string(data), "\x00", " "))
	return strings.Contains(cmdline, constants.SERVICE_NAME) && strings.Contains(cmdline, " run")
}

func isLinux() bool {
	_, err := os.Stat("/proc/self")
	return err == nil
}

// CleanupStale removes a PID file that no live collector holds.
func CleanupStale() error {
	pidFile := getPIDFilePath()

	running, pid, err := Check()
	if err != nil {
		return err
	}
	if !running {
		if err := os.Remove(pidFile); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}

	return fmt.Errorf("contmon is running (PID %d)", pid)
}
