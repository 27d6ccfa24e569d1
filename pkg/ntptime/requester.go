package ntptime

import (
	"errors"
	"net"
	"time"

	"github.com/AndrewLester/ntptime/internal/ntp"
)

// Callback is invoked once when a request finishes, either with a result
// (RequestReceived reports true) or because its retries ran out.
type Callback func()

// Requester asks one NTP server for the time. It is driven entirely by the
// caller: BeginRequest starts a request, Update must then be called
// repeatedly from the caller's loop. Update never blocks.
//
// A Requester is not safe for concurrent use.
type Requester struct {
	transport Transport
	clock     Clock

	requesting bool
	received   bool
	result     int64

	retryLimit    uint
	retryInterval uint64 // ms
	retryDeadline uint64 // clock ticks
	retries       uint

	callback Callback

	// Holds the request until a response overwrites it.
	packet [ntp.PacketSize]byte
	open   bool
}

func NewRequester(transport Transport, clock Clock) *Requester {
	if clock == nil {
		clock = MonotonicClock{}
	}
	return &Requester{
		transport: transport,
		clock:     clock,
	}
}

// BeginRequest sends a request and arms the retry timer. retryLimit is the
// number of re-sends allowed after the first one; 0 retries forever.
//
// It returns false, with nothing in flight, if the first send fails; the
// caller decides when to try again. A request already in flight is
// abandoned and its callback will not run. A negative retryInterval is
// treated as zero.
func (r *Requester) BeginRequest(retryLimit uint, retryInterval time.Duration, callback Callback) bool {
	ntp.EncodeRequest(&r.packet)
	if retryInterval < 0 {
		retryInterval = 0
	}

	r.requesting = false
	r.received = false
	r.result = 0
	r.retries = 0
	r.retryLimit = retryLimit
	r.retryInterval = uint64(retryInterval / time.Millisecond)
	r.callback = callback

	if !r.send() {
		return false
	}
	r.retryDeadline = r.clock.Ticks() + r.retryInterval
	r.requesting = true
	return true
}

// Update advances the request. The result of a completed request is only
// visible until the next call to Update.
//
// It returns false when polling again cannot complete anything: the retries
// were just exhausted, a re-send failed, or nothing is in flight. A true
// return does not mean the request finished; check RequestReceived.
func (r *Requester) Update() bool {
	r.received = false
	r.result = 0

	if r.requesting {
		now := r.clock.Ticks()
		if now >= r.retryDeadline {
			r.retries++
			if r.retryLimit > 0 && r.retries > r.retryLimit {
				info("no response after", r.retryLimit, "retries")
				r.finish()
				r.notify()
				return false
			}
			r.retryDeadline = now + r.retryInterval
			debug("retry", r.retries, "of", r.retryLimit)
			if !r.send() {
				return false
			}
		}
	}

	if !r.open {
		return false
	}

	n, err := r.transport.Receive(r.packet[:])
	if err != nil && !errors.Is(err, net.ErrClosed) {
		debug("receive:", err)
	}
	if n > 0 {
		r.result = ntp.SecondsToUnix(ntp.TransmitSeconds(&r.packet))
		r.received = true
		info("received response, unix time", r.result)
		r.finish()
		r.notify()
	}

	return true
}

// finish returns to idle. Everything is reset before the callback runs so
// the callback may begin the next request.
func (r *Requester) finish() {
	r.requesting = false
	r.retries = 0
	r.retryDeadline = 0
	r.closeTransport()
}

// abandon drops the request in flight without calling back.
func (r *Requester) abandon() {
	r.callback = nil
	r.finish()
}

func (r *Requester) notify() {
	if r.callback != nil {
		r.callback()
	}
}

func (r *Requester) send() bool {
	if err := r.transport.Send(r.packet[:]); err != nil {
		r.open = false
		return false
	}
	r.open = true
	return true
}

func (r *Requester) closeTransport() {
	r.open = false
	if err := r.transport.Close(); err != nil {
		debug("close:", err)
	}
}

// RequestReceived reports whether the last Update completed a request with
// a result.
func (r *Requester) RequestReceived() bool {
	return r.received
}

// RequestResult is the Unix time in seconds from the last Update, or 0.
func (r *Requester) RequestResult() int64 {
	return r.result
}

func (r *Requester) Requesting() bool {
	return r.requesting
}

// Retries is the number of re-sends so far in the current request.
func (r *Requester) Retries() uint {
	return r.retries
}

func (r *Requester) RetryLimit() uint {
	return r.retryLimit
}

// Response is a copy of the datagram behind RequestResult, or nil when
// RequestReceived is false.
func (r *Requester) Response() []byte {
	if !r.received {
		return nil
	}
	return append([]byte(nil), r.packet[:]...)
}
