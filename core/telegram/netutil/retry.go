// Package netutil decides which Bot API failures are worth another attempt and how long to wait.
package netutil

import (
	"context"
	"errors"
	"io"
	"net"
	"net/url"
	"regexp"
	"strconv"
	"syscall"
	"time"

	tele "gopkg.in/telebot.v4"
)

// apiCodeRe matches the "(502)" suffix telebot puts on API errors it has no type for.
var apiCodeRe = regexp.MustCompile(`\((\d{3})\)$`)

// ShouldRetry reports whether err is transient: a dial or timeout failure, a connection
// reset while uploading media, a flood-control answer, or a 5xx from the Bot API.
func ShouldRetry(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if RetryAfter(err) > 0 {
		return true
	}
	if code := APICode(err); code != 0 {
		return code >= 500
	}
	return networkTransient(err)
}

// RetryAfter returns the wait the Bot API asked for with a 429 answer, or zero.
func RetryAfter(err error) time.Duration {
	var flood tele.FloodError
	if errors.As(err, &flood) && flood.RetryAfter > 0 {
		return time.Duration(flood.RetryAfter) * time.Second
	}
	var floodPtr *tele.FloodError
	if errors.As(err, &floodPtr) && floodPtr != nil && floodPtr.RetryAfter > 0 {
		return time.Duration(floodPtr.RetryAfter) * time.Second
	}
	return 0
}

// APICode extracts the HTTP-style code of a Bot API error, or zero for transport errors.
func APICode(err error) int {
	var apiErr *tele.Error
	if errors.As(err, &apiErr) && apiErr != nil {
		return apiErr.Code
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		return 0
	}
	if m := apiCodeRe.FindStringSubmatch(err.Error()); m != nil {
		code, _ := strconv.Atoi(m[1])
		return code
	}
	return 0
}

// Delay is the wait before attempt+1: the server's retry_after when given, else linear backoff.
func Delay(attempt int, backoff time.Duration, err error) time.Duration {
	if d := RetryAfter(err); d > 0 {
		return d
	}
	return backoff * time.Duration(attempt)
}

// Policy bounds Do.
type Policy struct {
	Attempts int
	Backoff  time.Duration
	// MaxDelay gives up instead of sleeping longer than this; zero means no cap.
	MaxDelay time.Duration
}

// Do runs fn until it succeeds, fails permanently, runs out of attempts or ctx ends.
func Do(ctx context.Context, p Policy, fn func() error) error {
	attempts := max(p.Attempts, 1)
	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(); err == nil || attempt >= attempts || !ShouldRetry(err) {
			return err
		}
		delay := Delay(attempt, p.Backoff, err)
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			return err
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
}

func networkTransient(err error) bool {
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && (dnsErr.IsTimeout || dnsErr.IsTemporary) {
		return true
	}
	return false
}
