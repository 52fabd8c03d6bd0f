//go:build !windows
// +build !windows

package service

import (
	"fmt"
	"os"
	"runtime"

	"github.com/okzk/sdnotify"
	"github.com/takama/daemon"

	constants "contmon/config"
	"contmon/internal/collector"
	"contmon/internal/logger"
)

const serviceDescription = "contmon container resource collector"

// RunArgs are the arguments the installed unit starts the binary with.
var RunArgs = []string{"run"}

// Service wraps takama/daemon for systemd/launchd management
type Service struct {
	daemon daemon.Daemon
}

// Kind picks a system daemon for root and a user agent otherwise.
func Kind() daemon.Kind {
	if os.Geteuid() == 0 {
		return daemon.SystemDaemon
	}
	return daemon.UserAgent
}

// New creates a new Service instance
func New() (*Service, error) {
	d, err := daemon.New(constants.SERVICE_NAME, serviceDescription, Kind())
	if err != nil {
		return nil, fmt.Errorf("failed to create daemon: %w", err)
	}
	return &Service{daemon: d}, nil
}

// Install writes the unit. takama/daemon resolves the executable path itself.
func (s *Service) Install(extra ...string) (string, error) {
	args := append(append([]string{}, RunArgs...), extra...)
	status, err := s.daemon.Install(args...)
	if err != nil {
		return status, err
	}

	logger.Info("Service installed: %s", status)
	return status, nil
}

// Remove removes the service
func (s *Service) Remove() (string, error) {
	status, err := s.daemon.Remove()
	if err != nil {
		return status, err
	}

	logger.Info("Service removed: %s", status)
	return status, nil
}

// Start starts the service
func (s *Service) Start() (string, error) {
	status, err := s.daemon.Start()
	if err != nil {
		return status, err
	}

	logger.Info("Service started: %s", status)
	return status, nil
}

// Stop stops the service
func (s *Service) Stop() (string, error) {
	status, err := s.daemon.Stop()
	if err != nil {
		return status, err
	}

	logger.Info("Service stopped: %s", status)
	return status, nil
}

// Status returns the service status
func (s *Service) Status() (string, error) {
	return s.daemon.Status()
}

// NotifyReady notifies systemd that service is ready (Type=notify)
func NotifyReady() {
	if runtime.GOOS == "linux" {
		sdnotify.Ready()
		logger.Debug("Sent READY notification to systemd")
	}
}

// NotifyStopping notifies systemd that service is stopping
func NotifyStopping() {
	if runtime.GOOS == "linux" {
		sdnotify.Stopping()
		logger.Debug("Sent STOPPING notification to systemd")
	}
}

// NotifyWatchdog sends watchdog ping to systemd
func NotifyWatchdog() {
	if runtime.GOOS == "linux" {
		sdnotify.Watchdog()
	}
}

// NotifyStatus sends status message to systemd
func NotifyStatus(status string) {
	if runtime.GOOS == "linux" {
		sdnotify.Status(status)
	}
}

// Notifier is a collector.Observer that reports each cycle to systemd.
type Notifier struct{}

// ObserveCycle pings the watchdog and publishes a one-line status.
func (Notifier) ObserveCycle(r *collector.Report) {
	NotifyWatchdog()
	NotifyStatus(StatusLine(r))
}

// StatusLine summarizes a cycle for systemd.
func StatusLine(r *collector.Report) string {
	if r.Failed() {
		return fmt.Sprintf("cycle %d failed: %s", r.Cycle, r.Error)
	}
	return fmt.Sprintf("cycle %d: %d in scope, %d running, %d fetch errors",
		r.Cycle, r.InScope, r.Running, r.FetchErrors)
}
