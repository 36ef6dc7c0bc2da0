package middlewareinternal

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observedLogger() (*zap.SugaredLogger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core).Sugar(), logs
}

func TestLoggingMiddleware(t *testing.T) {
	logger, logs := observedLogger()

	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("created"))
	})
	handler := LoggingMiddleware(logger)(nextHandler)

	req := httptest.NewRequest(http.MethodPost, "/hawkular/metrics/gauges/raw", nil)
	req.Header.Set(TenantHeader, "ops")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, int64(http.StatusCreated), fields["status"])
	assert.Equal(t, int64(len("created")), fields["size"])
	assert.Equal(t, "ops", fields["tenant"])
	assert.Equal(t, http.MethodPost, fields["method"])
}

func TestLoggingResponseWriter_ImplicitOK(t *testing.T) {
	rec := httptest.NewRecorder()
	responseData := &responseData{}
	lw := loggingResponseWriter{ResponseWriter: rec, responseData: responseData}

	data := []byte("Hello, World!")
	size, err := lw.Write(data)

	assert.NoError(t, err)
	assert.Equal(t, len(data), size)
	assert.Equal(t, len(data), responseData.size)
	assert.Equal(t, http.StatusOK, responseData.status)
}

func TestLoggingResponseWriter_WriteHeader(t *testing.T) {
	rec := httptest.NewRecorder()
	responseData := &responseData{}
	lw := loggingResponseWriter{ResponseWriter: rec, responseData: responseData}

	lw.WriteHeader(http.StatusNotFound)

	assert.Equal(t, http.StatusNotFound, responseData.status)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func captureTransport(captured **http.Request) http.RoundTripper {
	return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
		*captured = r
		return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody, Request: r}, nil
	})
}

func TestAuthTransport(t *testing.T) {
	tests := []struct {
		name       string
		creds      Credentials
		wantHeader string
		wantUser   string
		wantPass   string
	}{
		{
			name:       "token",
			creds:      Credentials{Token: "secret", Username: "ignored", Password: "ignored"},
			wantHeader: "Bearer secret",
		},
		{
			name:     "basic",
			creds:    Credentials{Username: "jdoe", Password: "pw"},
			wantUser: "jdoe",
			wantPass: "pw",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sent *http.Request
			transport := AuthTransport("ops", tt.creds, captureTransport(&sent))

			req := httptest.NewRequest(http.MethodGet, "http://hawkular/status", nil)
			resp, err := transport.RoundTrip(req)
			require.NoError(t, err)
			resp.Body.Close()

			require.NotNil(t, sent)
			assert.Equal(t, "ops", sent.Header.Get(TenantHeader))
			if tt.wantHeader != "" {
				assert.Equal(t, tt.wantHeader, sent.Header.Get("Authorization"))
			} else {
				user, pass, ok := sent.BasicAuth()
				require.True(t, ok)
				assert.Equal(t, tt.wantUser, user)
				assert.Equal(t, tt.wantPass, pass)
			}

			// the caller's request is left untouched
			assert.Empty(t, req.Header.Get(TenantHeader))
		})
	}
}

func TestLoggingTransport(t *testing.T) {
	logger, logs := observedLogger()

	var sent *http.Request
	transport := LoggingTransport(logger, captureTransport(&sent))
	resp, err := transport.RoundTrip(httptest.NewRequest(http.MethodGet, "http://hawkular/status", nil))
	require.NoError(t, err)
	resp.Body.Close()

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, int64(http.StatusOK), logs.All()[0].ContextMap()["status"])

	failing := LoggingTransport(logger, RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	}))
	_, err = failing.RoundTrip(httptest.NewRequest(http.MethodGet, "http://hawkular/status", nil))
	assert.Error(t, err)
	assert.Equal(t, 1, logs.FilterMessage("request failed").Len())
}
