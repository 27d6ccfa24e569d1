package ntptime

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNilRequester = errors.New("nil requester")
	ErrSendFailed   = errors.New("request could not be sent")
	ErrNoResponse   = errors.New("server did not respond")
)

type QueryOptions struct {
	Retries       uint          // re-sends after the first request, 0 for no limit
	RetryInterval time.Duration // time between sends
	Pump          time.Duration // time between Update calls
}

const (
	DefaultRetries       = 3
	DefaultRetryInterval = time.Second
	DefaultPump          = 10 * time.Millisecond
)

// Query runs one request to completion, calling Update every opts.Pump. It
// returns the server's Unix time in seconds.
func Query(ctx context.Context, requester *Requester, opts QueryOptions) (int64, error) {
	if requester == nil {
		return 0, ErrNilRequester
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = DefaultRetryInterval
	}
	if opts.Pump <= 0 {
		opts.Pump = DefaultPump
	}

	done := false
	var result int64
	var received bool
	callback := func() {
		done = true
		received = requester.RequestReceived()
		result = requester.RequestResult()
	}

	if !requester.BeginRequest(opts.Retries, opts.RetryInterval, callback) {
		return 0, ErrSendFailed
	}

	ticker := time.NewTicker(opts.Pump)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			requester.abandon()
			return 0, ctx.Err()
		case <-ticker.C:
			requester.Update()
			if !done {
				continue
			}
			if !received {
				return 0, ErrNoResponse
			}
			return result, nil
		}
	}
}
