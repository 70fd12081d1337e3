package stats

import (
	"math"
	"math/bits"
	"time"
)

// Counters holds one counter per outcome category.
type Counters struct {
	Informational uint64
	Successful    uint64
	Redirection   uint64
	ClientError   uint64
	ServerError   uint64
	OtherError    uint64
	Timeouts      uint64
}

func (c *Counters) counter(o Outcome) *uint64 {
	switch o {
	case Informational:
		return &c.Informational
	case Success:
		return &c.Successful
	case Redirection:
		return &c.Redirection
	case ClientError:
		return &c.ClientError
	case ServerError:
		return &c.ServerError
	case OtherError:
		return &c.OtherError
	case Timeout:
		return &c.Timeouts
	}
	panic("stats: unknown outcome " + o.String())
}

// Get returns the counter for the given outcome.
func (c Counters) Get(o Outcome) uint64 {
	return *c.counter(o)
}

// Total is the number of results counted across all categories.
func (c Counters) Total() uint64 {
	var total uint64
	for _, o := range Outcomes {
		total = checkedAdd(total, c.Get(o))
	}
	return total
}

// NonSuccess is the number of results that were not a 2xx response.
func (c Counters) NonSuccess() uint64 {
	return c.Total() - c.Successful
}

func (c *Counters) add(o Outcome) {
	p := c.counter(o)
	if *p == math.MaxUint64 {
		panic("stats: " + o.String() + " counter overflow")
	}
	*p++
}

// Merge adds other into c, panicking on overflow.
func (c *Counters) Merge(other Counters) {
	for _, o := range Outcomes {
		p := c.counter(o)
		*p = checkedAdd(*p, other.Get(o))
	}
}

func checkedAdd(a, b uint64) uint64 {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		panic("stats: counter overflow")
	}
	return sum
}

// Accumulator is a worker's running tally. It is owned by a single
// goroutine and does no locking.
type Accumulator struct {
	Counters

	SuccessLatencies    []time.Duration
	NonSuccessLatencies []time.Duration
}

// NewAccumulator preallocates the success list for the expected number of results.
func NewAccumulator(expected int) *Accumulator {
	return &Accumulator{
		SuccessLatencies: make([]time.Duration, 0, expected),
	}
}

// Add folds one result into the counters and the matching latency list.
func (a *Accumulator) Add(r Result) {
	a.Counters.add(r.Outcome)
	if r.Outcome == Success {
		a.SuccessLatencies = append(a.SuccessLatencies, r.Elapsed)
	} else {
		a.NonSuccessLatencies = append(a.NonSuccessLatencies, r.Elapsed)
	}
}

// Merge sums the counters of other into a and appends its latencies.
func (a *Accumulator) Merge(other *Accumulator) {
	a.Counters.Merge(other.Counters)
	a.SuccessLatencies = append(a.SuccessLatencies, other.SuccessLatencies...)
	a.NonSuccessLatencies = append(a.NonSuccessLatencies, other.NonSuccessLatencies...)
}

// WorkerStats is a point-in-time copy of a worker's progress.
type WorkerStats struct {
	Timestamp    time.Time
	ID           int
	Elapsed      time.Duration
	RequestsSent uint64
	InFlight     uint64

	Counters
}

// Snapshot copies the current counters into a WorkerStats record.
func (a *Accumulator) Snapshot(id int, elapsed time.Duration, sent, inFlight uint64) WorkerStats {
	return WorkerStats{
		Timestamp:    time.Now(),
		ID:           id,
		Elapsed:      elapsed,
		RequestsSent: sent,
		InFlight:     inFlight,
		Counters:     a.Counters,
	}
}
