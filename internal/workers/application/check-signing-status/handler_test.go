// internal/workers/application/check-signing-status/handler_test.go
package checksigningstatus

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loan-intake/internal/common/logger"
	"loan-intake/internal/common/staffapi"
)

// ==========================
// Test Helper Functions
// ==========================

// signingServer answers with bodies in order, repeating the last one.
func signingServer(t *testing.T, bodies ...string) (*staffapi.Client, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(atomic.AddInt32(&calls, 1)) - 1
		if n >= len(bodies) {
			n = len(bodies) - 1
		}
		assert.Equal(t, "/api/public/applications/app-123/signature-status", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(bodies[n]))
	}))
	t.Cleanup(srv.Close)

	client, err := staffapi.NewClient(staffapi.Config{BaseURL: srv.URL, HTTPClient: srv.Client()})
	require.NoError(t, err)
	return client, &calls
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func testConfig(attempts int) *Config {
	cfg := LoadConfig()
	cfg.Timeout = 5 * time.Second
	cfg.PollInterval = 5 * time.Millisecond
	cfg.MaxAttempts = attempts
	return cfg
}

const pending = `{"status":"pending","signUrl":"https://sign.example.com/s/abc"}`

type stubSigner struct {
	status *staffapi.SigningStatus
	err    error
}

func (s *stubSigner) WaitForSignature(ctx context.Context, applicationID string, opts staffapi.PollOptions) (*staffapi.SigningStatus, error) {
	if opts.OnPoll != nil {
		opts.OnPoll(1, s.status, s.err)
	}
	return s.status, s.err
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_SignedAfterPolling(t *testing.T) {
	client, calls := signingServer(t, pending, pending, `{"status":"signed"}`)
	handler := NewHandler(testConfig(5), client, nil, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{ApplicationID: "app-123"})
	require.NoError(t, err)

	assert.Equal(t, "signed", output.Status)
	assert.True(t, output.Signed)
	assert.False(t, output.Overridden)
	assert.Equal(t, 3, output.Attempts)
	assert.Equal(t, int32(3), atomic.LoadInt32(calls))
}

func TestHandler_Execute_Override(t *testing.T) {
	_, rdb := newRedis(t)
	require.NoError(t, SetOverride(context.Background(), rdb, "signing:override:", "app-123", time.Hour))

	client, calls := signingServer(t, pending)
	handler := NewHandler(testConfig(5), client, rdb, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{ApplicationID: "app-123"})
	require.NoError(t, err)

	assert.True(t, output.Overridden)
	assert.True(t, output.Signed)
	assert.Equal(t, "completed", output.Status)
	assert.Equal(t, int32(0), atomic.LoadInt32(calls))
}

func TestHandler_Execute_OverrideSetWhilePolling(t *testing.T) {
	mr, rdb := newRedis(t)
	client, _ := signingServer(t, pending)

	cfg := testConfig(50)
	handler := NewHandler(cfg, client, rdb, logger.NewTestLogger(t))
	handler.config.PollInterval = 20 * time.Millisecond

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = mr.Set(OverrideKey(cfg.OverrideKeyPrefix, "app-123"), "ops")
	}()

	output, err := handler.Execute(context.Background(), &Input{ApplicationID: "app-123"})
	require.NoError(t, err)

	assert.True(t, output.Overridden)
	assert.Equal(t, "https://sign.example.com/s/abc", output.SignURL)
}

func TestHandler_Execute_OverrideStoreUnavailable(t *testing.T) {
	tests := []struct {
		name       string
		bodies     []string
		wantStatus string
		wantSigned bool
		wantCalls  int32
	}{
		{
			name:       "keeps polling until signed",
			bodies:     []string{pending, `{"status":"signed"}`},
			wantStatus: "signed",
			wantSigned: true,
			wantCalls:  2,
		},
		{
			name:       "completed on first poll",
			bodies:     []string{`{"status":"completed"}`},
			wantStatus: "completed",
			wantSigned: true,
			wantCalls:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mr, rdb := newRedis(t)
			mr.SetError("LOADING redis is loading the dataset in memory")

			client, calls := signingServer(t, tt.bodies...)
			handler := NewHandler(testConfig(5), client, rdb, logger.NewTestLogger(t))

			output, err := handler.Execute(context.Background(), &Input{ApplicationID: "app-123"})
			require.NoError(t, err)

			assert.Equal(t, tt.wantStatus, output.Status)
			assert.Equal(t, tt.wantSigned, output.Signed)
			assert.False(t, output.Overridden)
			assert.Equal(t, tt.wantCalls, atomic.LoadInt32(calls))
		})
	}
}

// ==========================
// Error Handling Tests
// ==========================

func TestHandler_Execute_Timeout(t *testing.T) {
	client, _ := signingServer(t, pending)
	handler := NewHandler(testConfig(3), client, nil, logger.NewTestLogger(t))

	_, err := handler.Execute(context.Background(), &Input{ApplicationID: "app-123"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSigningTimeout))

	stdErr := mapError(err)
	assert.Equal(t, "SIGNING_TIMEOUT", string(stdErr.Code))
	assert.False(t, stdErr.Retryable)
	assert.Equal(t, "pending", stdErr.Metadata["lastStatus"])
	assert.Equal(t, "https://sign.example.com/s/abc", stdErr.Metadata["signUrl"])
}

func TestHandler_Execute_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"not found", &staffapi.APIError{StatusCode: 404}, "SIGNING_STATUS_FAILED"},
		{"deadline", context.DeadlineExceeded, "TIMEOUT_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHandler(testConfig(1), &stubSigner{err: tt.err}, nil, logger.NewTestLogger(t))
			_, err := handler.Execute(context.Background(), &Input{ApplicationID: "app-123"})
			require.Error(t, err)
			assert.Equal(t, tt.code, string(mapError(err).Code))
		})
	}
}

func TestHandler_Execute_MissingApplication(t *testing.T) {
	handler := NewHandler(testConfig(1), &stubSigner{}, nil, logger.NewTestLogger(t))

	_, err := handler.Execute(context.Background(), &Input{})
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestOverrideHelpers(t *testing.T) {
	mr, rdb := newRedis(t)
	ctx := context.Background()

	require.NoError(t, SetOverride(ctx, rdb, "p:", "app-1", time.Minute))
	assert.True(t, mr.Exists("p:app-1"))
	assert.Equal(t, time.Minute, mr.TTL("p:app-1"))

	ok, err := overrideCheck(rdb, "p:app-1", logger.NewTestLogger(t))(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, ClearOverride(ctx, rdb, "p:", "app-1"))
	ok, err = overrideCheck(rdb, "p:app-1", logger.NewTestLogger(t))(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Error(t, SetOverride(ctx, rdb, "p:", "", time.Minute))

	mr.SetError("ERR server unavailable")
	ok, err = overrideCheck(rdb, "p:app-1", logger.NewTestLogger(t))(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	mr.SetError("")

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = overrideCheck(rdb, "p:app-1", logger.NewTestLogger(t))(cancelled)
	assert.ErrorIs(t, err, context.Canceled)
}
