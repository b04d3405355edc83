package netutil

import (
	"bytes"
	"errors"
	"io"
	"net"
	"net/http"
	"testing"
	"time"
)

type fakeRoundTripper struct {
	failures int
	err      error
	calls    int
}

func (f *fakeRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	f.calls++
	if req.Body != nil {
		_, _ = io.Copy(io.Discard, req.Body)
		req.Body.Close()
	}
	if f.calls <= f.failures {
		return nil, f.err
	}
	return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody}, nil
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestRetryTransportRecoversFromTransientError(t *testing.T) {
	rt := &fakeRoundTripper{failures: 2, err: timeoutErr{}}
	tr := &RetryTransport{Base: rt, MaxRetries: 3, Backoff: time.Millisecond}

	req, _ := http.NewRequest(http.MethodGet, "http://gw.local/content/product", nil)
	resp, err := tr.RoundTrip(req)
	if err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}
	resp.Body.Close()
	if rt.calls != 3 {
		t.Errorf("calls: got %d, want 3", rt.calls)
	}
}

func TestRetryTransportGivesUpOnPermanentError(t *testing.T) {
	permanent := errors.New("no such host")
	rt := &fakeRoundTripper{failures: 10, err: permanent}
	tr := &RetryTransport{Base: rt, MaxRetries: 3, Backoff: time.Millisecond}

	req, _ := http.NewRequest(http.MethodGet, "http://gw.local/content/product", nil)
	if _, err := tr.RoundTrip(req); !errors.Is(err, permanent) {
		t.Fatalf("got %v, want the permanent error", err)
	}
	if rt.calls != 1 {
		t.Errorf("calls: got %d, want 1", rt.calls)
	}
}

func TestRetryTransportReplaysBody(t *testing.T) {
	rt := &fakeRoundTripper{failures: 1, err: timeoutErr{}}
	tr := &RetryTransport{Base: rt, MaxRetries: 2, Backoff: time.Millisecond}

	req, _ := http.NewRequest(http.MethodPost, "http://gw.local/purchase", bytes.NewReader([]byte(`{}`)))
	resp, err := tr.RoundTrip(req)
	if err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}
	resp.Body.Close()
	if rt.calls != 2 {
		t.Errorf("calls: got %d, want 2", rt.calls)
	}
}

func TestShouldRetry(t *testing.T) {
	if ShouldRetry(nil) {
		t.Error("nil error must not retry")
	}
	if !ShouldRetry(timeoutErr{}) {
		t.Error("timeout must retry")
	}
	dial := &net.OpError{Op: "dial", Err: errors.New("connection refused")}
	if !ShouldRetry(dial) {
		t.Error("dial failure must retry")
	}
	if ShouldRetry(errors.New("http 500")) {
		t.Error("plain error must not retry")
	}
}
