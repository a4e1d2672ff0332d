// ABOUTME: Tests for callback delivery
// ABOUTME: Golden payloads, signature headers, retry classification and give-up behaviour

package callback

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clementeaf/ai-assistants/internal/store"
	"github.com/clementeaf/ai-assistants/internal/trace"
)

func succeededJob() *store.JobRecord {
	return &store.JobRecord{
		JobID:          "job_1",
		Status:         store.JobSucceeded,
		ConversationID: "whatsapp:+5491112345678",
		MessageID:      "m1",
		ResponseText:   "TRACK-9002: estado en camino, transportista Andreani (pedido ORDER-1002).",
	}
}

func TestPayload_Golden(t *testing.T) {
	g := goldie.New(t, goldie.WithFixtureDir("testdata"), goldie.WithNameSuffix(".golden"))

	body, err := Payload(succeededJob())
	require.NoError(t, err)
	g.Assert(t, "payload_succeeded", body)

	body, err = Payload(&store.JobRecord{
		JobID:          "job_2",
		Status:         store.JobFailed,
		ConversationID: "web:1",
		ErrorText:      "database is locked",
	})
	require.NoError(t, err)
	g.Assert(t, "payload_failed", body)
}

func TestSignAndVerify(t *testing.T) {
	secret := []byte("s3cret")
	body := []byte(`{"job_id":"job_1"}`)

	sig := Sign(secret, "1700000000", body)
	assert.Regexp(t, `^sha256=[0-9a-f]{64}$`, sig)
	assert.True(t, Verify(secret, "1700000000", body, sig))
	assert.False(t, Verify(secret, "1700000001", body, sig))
	assert.False(t, Verify([]byte("other"), "1700000000", body, sig))
}

type received struct {
	headers http.Header
	body    []byte
}

func newServer(t *testing.T, statuses ...int) (*httptest.Server, *atomic.Int32, chan received) {
	t.Helper()
	var calls atomic.Int32
	got := make(chan received, 16)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(calls.Add(1))
		body, _ := io.ReadAll(r.Body)
		got <- received{headers: r.Header.Clone(), body: body}
		status := http.StatusOK
		if n <= len(statuses) {
			status = statuses[n-1]
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls, got
}

func TestNotify_SignsAndForwardsCorrelation(t *testing.T) {
	srv, calls, got := newServer(t)
	s := New(Config{URL: srv.URL, Secret: "s3cret", BaseBackoff: time.Millisecond})
	s.now = func() time.Time { return time.Unix(1700000000, 0) }

	ctx := trace.WithProjectID(trace.WithRequestID(context.Background(), "req_42"), "acme")
	s.Notify(ctx, succeededJob())

	require.Equal(t, int32(1), calls.Load())
	r := <-got
	want, err := Payload(succeededJob())
	require.NoError(t, err)
	assert.Equal(t, want, r.body)
	assert.Equal(t, "application/json", r.headers.Get("Content-Type"))
	assert.Equal(t, "1700000000", r.headers.Get(HeaderTimestamp))
	assert.Equal(t, Sign([]byte("s3cret"), "1700000000", r.body), r.headers.Get(HeaderSignature))
	assert.Equal(t, "req_42", r.headers.Get(HeaderRequestID))
	assert.Equal(t, "acme", r.headers.Get(HeaderProjectID))
}

func TestNotify_NoSecretNoSignature(t *testing.T) {
	srv, _, got := newServer(t)
	New(Config{URL: srv.URL}).Notify(context.Background(), succeededJob())

	r := <-got
	assert.Empty(t, r.headers.Get(HeaderSignature))
	_, err := strconv.ParseInt(r.headers.Get(HeaderTimestamp), 10, 64)
	assert.NoError(t, err)
	assert.Empty(t, r.headers.Get(HeaderRequestID))
}

func TestNotify_Retries(t *testing.T) {
	tests := []struct {
		name       string
		statuses   []int
		maxRetries int
		wantCalls  int32
	}{
		{"server error then success", []int{500, 200}, 3, 2},
		{"client error is final", []int{400}, 3, 1},
		{"gives up after budget", []int{503, 503, 503, 503, 503}, 2, 3},
		{"no retries configured", []int{502}, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, calls, _ := newServer(t, tt.statuses...)
			s := New(Config{URL: srv.URL, MaxRetries: tt.maxRetries, BaseBackoff: time.Millisecond})
			s.Notify(context.Background(), succeededJob())
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}

func TestNotify_RetriesTimeouts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := New(Config{URL: srv.URL, MaxRetries: 1, Timeout: 50 * time.Millisecond, BaseBackoff: time.Millisecond})
	s.Notify(context.Background(), succeededJob())
	assert.Equal(t, int32(2), calls.Load())
}

func TestNotify_UnreachableDoesNotPanic(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	s := New(Config{URL: url, MaxRetries: 1, BaseBackoff: time.Millisecond})
	s.Notify(context.Background(), succeededJob())
}

func TestNotify_Disabled(t *testing.T) {
	s := New(Config{})
	assert.False(t, s.Enabled())
	s.Notify(context.Background(), succeededJob())
}
