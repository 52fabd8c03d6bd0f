// Package status persists the last cycle report so that `contmon status`
// can inspect a running daemon.
package status

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"go.uber.org/zap"

	"contmon/internal/collector"
)

// ErrNoStatus is returned by Read when no report has been written yet.
var ErrNoStatus = errors.New("no status file")

var fileMu sync.RWMutex

// Snapshot is the on-disk record.
type Snapshot struct {
	Report    *collector.Report `json:"report"`
	WrittenAt time.Time         `json:"written_at"`
	PID       int               `json:"pid"`
}

// Age returns how long ago the snapshot was written.
func (s *Snapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.WrittenAt)
}

// Stale reports whether the daemon missed at least two intervals.
func (s *Snapshot) Stale(now time.Time, interval time.Duration) bool {
	return interval > 0 && s.Age(now) > 2*interval
}

// Write stores r at path. The file is replaced atomically.
func Write(path string, r *collector.Report) error {
	data, err := cbor.Marshal(Snapshot{Report: r, WrittenAt: time.Now(), PID: os.Getpid()})
	if err != nil {
		return fmt.Errorf("encode status: %w", err)
	}

	fileMu.Lock()
	defer fileMu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create status directory: %w", err)
	}

	// Write to temp file first, then rename
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write status: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write status: %w", err)
	}
	return nil
}

// Read loads the snapshot stored at path.
func Read(path string) (*Snapshot, error) {
	fileMu.RLock()
	data, err := os.ReadFile(path)
	fileMu.RUnlock()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoStatus
		}
		return nil, fmt.Errorf("read status: %w", err)
	}

	var s Snapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode status %s: %w", path, err)
	}
	if s.Report == nil {
		return nil, fmt.Errorf("decode status %s: missing report", path)
	}
	return &s, nil
}

// Writer is a collector.Observer that persists every finished cycle.
type Writer struct {
	path string
	log  *zap.Logger
}

// NewWriter returns an observer writing to path.
func NewWriter(path string, log *zap.Logger) *Writer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Writer{path: path, log: log}
}

// ObserveCycle implements collector.Observer. Failures are logged and
// never interrupt the loop.
func (w *Writer) ObserveCycle(r *collector.Report) {
	if err := Write(w.path, r); err != nil {
		w.log.Warn("status file not updated", zap.String("path", w.path), zap.Error(err))
	}
}
