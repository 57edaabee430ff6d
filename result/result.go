package result

import (
	"net/netip"
	"sync/atomic"
	"time"

	"github.com/sweepnet/sweep/fieldset"
)

type (
	// Record is one validated response, ready for output.
	Record struct {
		Responder  netip.Addr         `json:"responder"`
		ReceivedAt time.Time          `json:"received_at"`
		Fields     *fieldset.FieldSet `json:"fields"`
	}

	// Run describes a whole scan run.
	Run struct {
		ID         string        `json:"run_id"`
		Module     string        `json:"module"`
		StartedAt  time.Time     `json:"started_at"`
		FinishedAt time.Time     `json:"finished_at"`
		Stats      StatsSnapshot `json:"stats"`
	}

	// StatsSnapshot is a point-in-time copy of scan counters.
	StatsSnapshot struct {
		Sent       uint64 `json:"sent"`
		Received   uint64 `json:"received"`
		Valid      uint64 `json:"valid"`
		Invalid    uint64 `json:"invalid"`
		Duplicates uint64 `json:"duplicates"`
	}
)

// Stats counts scan progress. Send workers and the receive loop update it
// concurrently.
type Stats struct {
	sent       atomic.Uint64
	received   atomic.Uint64
	valid      atomic.Uint64
	invalid    atomic.Uint64
	duplicates atomic.Uint64
}

func (s *Stats) AddSent(n uint64) { s.sent.Add(n) }
func (s *Stats) AddReceived()     { s.received.Add(1) }
func (s *Stats) AddValid()        { s.valid.Add(1) }
func (s *Stats) AddInvalid()      { s.invalid.Add(1) }
func (s *Stats) AddDuplicate()    { s.duplicates.Add(1) }

// Snapshot returns a consistent-enough copy for reporting.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Sent:       s.sent.Load(),
		Received:   s.received.Load(),
		Valid:      s.valid.Load(),
		Invalid:    s.invalid.Load(),
		Duplicates: s.duplicates.Load(),
	}
}

// NewRun starts run metadata for the named probe module.
func NewRun(module string) *Run {
	return &Run{
		ID:        newRunID(),
		Module:    module,
		StartedAt: time.Now().UTC(),
	}
}

// Finish stamps the end of the run and freezes the counters into the run
// metadata.
func (r *Run) Finish(stats *Stats) {
	r.FinishedAt = time.Now().UTC()
	r.Stats = stats.Snapshot()
}
