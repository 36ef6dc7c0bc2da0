// Package middlewareinternal provides HTTP middleware for both sides of the
// Hawkular REST API.
//
// Client side, RoundTrippers attach tenant and credentials to every request
// and log each exchange. Server side, LoggingMiddleware logs requests handled
// by the in-memory Hawkular server.
package middlewareinternal

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// TenantHeader carries the Hawkular tenant of a request.
const TenantHeader = "Hawkular-Tenant"

type (
	responseData struct {
		status int
		size   int
	}

	loggingResponseWriter struct {
		http.ResponseWriter
		responseData *responseData
	}
)

func (r *loggingResponseWriter) Write(b []byte) (int, error) {
	if r.responseData.status == 0 {
		r.responseData.status = http.StatusOK
	}
	size, err := r.ResponseWriter.Write(b)
	r.responseData.size += size
	return size, err
}

func (r *loggingResponseWriter) WriteHeader(statusCode int) {
	r.ResponseWriter.WriteHeader(statusCode)
	r.responseData.status = statusCode
}

// LoggingMiddleware creates a middleware that logs HTTP requests and responses.
func LoggingMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {

	return func(next http.Handler) http.Handler {
		logFn := func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			responseData := &responseData{}
			lw := loggingResponseWriter{
				ResponseWriter: w,
				responseData:   responseData,
			}

			next.ServeHTTP(&lw, r)

			logger.Debugw("served request",
				"uri", r.RequestURI,
				"method", r.Method,
				"tenant", r.Header.Get(TenantHeader),
				"status", responseData.status,
				"duration", time.Since(start),
				"size", responseData.size,
			)
		}
		return http.HandlerFunc(logFn)
	}
}

// RoundTripperFunc adapts a function to http.RoundTripper.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

// Credentials authenticate requests to Hawkular. A token takes precedence
// over username and password.
type Credentials struct {
	Token    string
	Username string
	Password string
}

// AuthTransport sets the tenant header and the Authorization header on every
// request before handing it to next.
func AuthTransport(tenant string, creds Credentials, next http.RoundTripper) http.RoundTripper {
	return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
		r = r.Clone(r.Context())
		r.Header.Set(TenantHeader, tenant)
		switch {
		case creds.Token != "":
			r.Header.Set("Authorization", "Bearer "+creds.Token)
		case creds.Username != "":
			r.SetBasicAuth(creds.Username, creds.Password)
		}
		return next.RoundTrip(r)
	})
}

// LoggingTransport logs every request sent through next.
func LoggingTransport(logger *zap.SugaredLogger, next http.RoundTripper) http.RoundTripper {
	return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
		start := time.Now()
		response, err := next.RoundTrip(r)
		if err != nil {
			logger.Debugw("request failed",
				"url", r.URL.String(),
				"method", r.Method,
				"duration", time.Since(start),
				"error", err,
			)
			return nil, err
		}
		logger.Debugw("request",
			"url", r.URL.String(),
			"method", r.Method,
			"status", response.StatusCode,
			"duration", time.Since(start),
		)
		return response, nil
	})
}
