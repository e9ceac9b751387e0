package netutil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	tele "gopkg.in/telebot.v4"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestShouldRetry(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"timeout", &url.Error{Op: "Post", URL: "https://api.telegram.org", Err: timeoutErr{}}, true},
		{"dial", &net.OpError{Op: "dial", Err: errors.New("refused")}, true},
		{"upload reset", &url.Error{Op: "Post", URL: "sendMediaGroup", Err: syscall.ECONNRESET}, true},
		{"upload broken pipe", fmt.Errorf("telebot: %w", syscall.EPIPE), true},
		{"truncated body", io.ErrUnexpectedEOF, true},
		{"flood", tele.FloodError{RetryAfter: 3}, true},
		{"internal", tele.ErrInternal, true},
		{"bad gateway", errors.New("telegram: Bad Gateway (502)"), true},
		{"blocked", tele.ErrBlockedByUser, false},
		{"wrong file id", tele.ErrWrongFileID, false},
		{"bad request", errors.New("telegram: Bad Request: wrong type of the web page content (400)"), false},
		{"plain", errors.New("boom"), false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ShouldRetry(tc.err), tc.name)
	}
}

func TestDelayHonorsRetryAfter(t *testing.T) {
	assert.Equal(t, 3*time.Second, Delay(1, time.Millisecond, tele.FloodError{RetryAfter: 3}))
	assert.Equal(t, 20*time.Millisecond, Delay(2, 10*time.Millisecond, io.ErrUnexpectedEOF))
}

func TestDoRetriesTransientFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{Attempts: 3, Backoff: time.Millisecond}, func() error {
		calls++
		if calls < 3 {
			return syscall.ECONNRESET
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnPermanentOrLongFlood(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{Attempts: 5, Backoff: time.Millisecond}, func() error {
		calls++
		return tele.ErrBlockedByUser
	})
	assert.ErrorIs(t, err, tele.ErrBlockedByUser)
	assert.Equal(t, 1, calls)

	calls = 0
	err = Do(context.Background(), Policy{Attempts: 5, Backoff: time.Millisecond, MaxDelay: time.Second}, func() error {
		calls++
		return tele.FloodError{RetryAfter: 30}
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}
