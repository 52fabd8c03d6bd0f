//go:build !windows
// +build !windows

package service

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/takama/daemon"

	"contmon/internal/collector"
)

func TestStatusLine(t *testing.T) {
	assert.Equal(t, "cycle 3: 2 in scope, 1 running, 0 fetch errors",
		StatusLine(&collector.Report{Cycle: 3, InScope: 2, Running: 1}))
	assert.Equal(t, "cycle 4 failed: inventory listing failed: refused",
		StatusLine(&collector.Report{Cycle: 4, Error: "inventory listing failed: refused"}))
}

func TestKind(t *testing.T) {
	if os.Geteuid() == 0 {
		assert.Equal(t, daemon.SystemDaemon, Kind())
	} else {
		assert.Equal(t, daemon.UserAgent, Kind())
	}
}
