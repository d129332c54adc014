package resolver

import (
	"sync/atomic"
	"time"

	"github.com/SaudiLinux/urlget/internal/core"
)

// Stats holds the process-wide query counters. Every query lands in exactly
// one of spoofed, forwarded or errors.
type Stats struct {
	requests  atomic.Uint64
	spoofed   atomic.Uint64
	forwarded atomic.Uint64
	errors    atomic.Uint64
	started   time.Time
}

// NewStats creates zeroed counters stamped with the current time.
func NewStats() *Stats {
	return &Stats{started: time.Now()}
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Requests  uint64    `json:"requests"`
	Spoofed   uint64    `json:"spoofed"`
	Forwarded uint64    `json:"forwarded"`
	Errors    uint64    `json:"errors"`
	StartTime time.Time `json:"start_time"`
}

func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Requests:  s.requests.Load(),
		Spoofed:   s.spoofed.Load(),
		Forwarded: s.forwarded.Load(),
		Errors:    s.errors.Load(),
		StartTime: s.started,
	}
}

// Dashboard converts the snapshot for the console table.
func (s StatsSnapshot) Dashboard() core.DashboardStats {
	return core.DashboardStats{
		Requests:  s.Requests,
		Spoofed:   s.Spoofed,
		Forwarded: s.Forwarded,
		Errors:    s.Errors,
		StartTime: s.StartTime,
	}
}
