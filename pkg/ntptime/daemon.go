package ntptime

import (
	"context"
	"sync"
	"time"
)

// Status is a snapshot of a Daemon.
type Status struct {
	Server     string
	Requesting bool
	Retries    uint
	RetryLimit uint

	LastResult int64     // Unix seconds, 0 before the first success
	LastSync   time.Time // local time LastResult arrived
	LastOffset time.Duration
	Stepped    bool // LastResult was written to the system clock

	Successes int
	Failures  int
}

// Daemon asks for the time every Poll and keeps the outcome in a Status.
// It owns its Requester: nothing else may call into it while Run is going.
type Daemon struct {
	requester *Requester
	config    Config

	setClock func(int64) error
	now      func() time.Time

	lock   sync.Mutex
	status Status
}

func NewDaemon(config Config, requester *Requester) *Daemon {
	if config.Poll <= 0 {
		config.Poll = DefaultPoll
	}
	if config.Pump <= 0 {
		config.Pump = DefaultPump
	}
	if config.RetryInterval <= 0 {
		config.RetryInterval = DefaultRetryInterval
	}
	return &Daemon{
		requester: requester,
		config:    config,
		setClock:  SetSystemClock,
		now:       time.Now,
		status:    Status{Server: config.Server, RetryLimit: config.Retries},
	}
}

// Run requests the time immediately and then once per poll period until ctx
// is done. A request that cannot even be sent is tried again after a delay
// that doubles from the retry interval up to the poll period.
func (d *Daemon) Run(ctx context.Context) error {
	if d == nil || d.requester == nil {
		return ErrNilRequester
	}

	ticker := time.NewTicker(d.config.Pump)
	defer ticker.Stop()

	var nextPoll time.Time
	var backoff time.Duration
	for {
		select {
		case <-ctx.Done():
			d.requester.abandon()
			d.update(func(status *Status) { status.Requesting = false })
			return ctx.Err()
		case <-ticker.C:
		}

		now := d.now()
		if !d.requester.Requesting() && !now.Before(nextPoll) {
			if d.requester.BeginRequest(d.config.Retries, d.config.RetryInterval, d.complete) {
				nextPoll = now.Add(d.config.Poll)
				backoff = 0
			} else {
				backoff = nextBackoff(backoff, d.config.RetryInterval, d.config.Poll)
				nextPoll = now.Add(backoff)
				info("could not send request, trying again in", backoff)
				d.update(func(status *Status) { status.Failures++ })
			}
		}

		d.requester.Update()
		d.update(func(status *Status) {
			status.Requesting = d.requester.Requesting()
			status.Retries = d.requester.Retries()
		})
	}
}

// complete runs inside Requester.Update.
func (d *Daemon) complete() {
	if !d.requester.RequestReceived() {
		info("no response from", d.config.Server)
		d.update(func(status *Status) { status.Failures++ })
		return
	}

	result := d.requester.RequestResult()
	now := d.now()
	offset := clockOffset(result, now)

	stepped := false
	if d.config.SetClock && (offset >= StepThreshold || offset <= -StepThreshold) {
		if err := d.setClock(result); err != nil {
			info("SETTIMEOFDAY ERROR:", err)
		} else {
			stepped = true
		}
	}

	d.update(func(status *Status) {
		status.LastResult = result
		status.LastSync = now
		status.LastOffset = offset
		status.Stepped = stepped
		status.Successes++
	})
}

func (d *Daemon) update(fn func(*Status)) {
	d.lock.Lock()
	defer d.lock.Unlock()
	fn(&d.status)
}

// Status may be called from any goroutine.
func (d *Daemon) Status() Status {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.status
}

// nextBackoff doubles from the retry interval up to the poll period.
func nextBackoff(previous, initial, ceiling time.Duration) time.Duration {
	if previous <= 0 {
		return initial
	}
	next := previous * 2
	if next > ceiling {
		return ceiling
	}
	return next
}
