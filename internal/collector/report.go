package collector

import (
	"time"

	"contmon/internal/stats"
)

// Report summarizes one cycle. It is what the status file stores; CBOR
// encoding picks up the json tags.
type Report struct {
	Cycle     uint64        `json:"cycle"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"`

	Listed      int `json:"listed"`
	InScope     int `json:"in_scope"`
	Running     int `json:"running"`
	NotRunning  int `json:"not_running"`
	FetchErrors int `json:"fetch_errors"`
	Pruned      int `json:"pruned"`
	Tracked     int `json:"tracked"`

	Containers []ContainerReport `json:"containers,omitempty"`
}

// Failed reports whether the cycle aborted.
func (r *Report) Failed() bool {
	return r.Error != ""
}

// ContainerReport is the processed reading of one container in a cycle.
type ContainerReport struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image"`

	Usage stats.Usage `json:"usage"`

	NetRxDelta      uint64 `json:"net_rx_delta"`
	NetTxDelta      uint64 `json:"net_tx_delta"`
	BlockReadDelta  uint64 `json:"block_read_delta"`
	BlockWriteDelta uint64 `json:"block_write_delta"`
}
