package runner

import "time"

// interval fires at first, first+period, first+2*period... A tick that
// could not be delivered on time is skipped rather than delivered late in
// a burst: after a late receive the next tick is the next multiple of
// period that is still in the future.
type interval struct {
	period time.Duration
	next   time.Time
	timer  *time.Timer
}

func newInterval(first time.Time, period time.Duration) *interval {
	return &interval{
		period: period,
		next:   first,
		timer:  time.NewTimer(time.Until(first)),
	}
}

func (iv *interval) C() <-chan time.Time {
	return iv.timer.C
}

// fired must be called after every receive from C. It returns the scheduled
// instant of the tick just received and arms the timer for the next one.
func (iv *interval) fired(now time.Time) time.Time {
	tick := iv.next

	next := tick.Add(iv.period)
	if !next.After(now) {
		missed := now.Sub(tick) / iv.period
		next = tick.Add((missed + 1) * iv.period)
	}

	iv.next = next
	iv.timer.Reset(time.Until(next))
	return tick
}

func (iv *interval) stop() {
	iv.timer.Stop()
}
