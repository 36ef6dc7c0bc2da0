// Package hawkular implements a client for the Hawkular Metrics and Hawkular
// Alerts REST APIs.
package hawkular

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	internalerrors "github.com/Schera-ole/hawkular-client-cli/internal/errors"
	middlewareinternal "github.com/Schera-ole/hawkular-client-cli/internal/middleware"
	models "github.com/Schera-ole/hawkular-client-cli/internal/model"
	"github.com/Schera-ole/hawkular-client-cli/internal/repository"
)

var (
	_ repository.Repository    = (*Client)(nil)
	_ repository.TriggerLister = (*AlertsClient)(nil)
)

const (
	metricsPath = "/hawkular/metrics"
	alertsPath  = "/hawkular/alerts"
)

// Parameters configure a client.
type Parameters struct {
	URL      string
	Tenant   string
	Token    string
	Username string
	Password string
	Insecure bool

	// Timeout bounds each request; zero means no timeout.
	Timeout time.Duration

	// Transport overrides the base transport, mostly for tests.
	Transport http.RoundTripper

	Logger *zap.SugaredLogger
}

// StatusError is returned when the server answers with a non-2xx status.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: server returned error status %d: %s", e.Method, e.URL, e.Code, e.Body)
}

// restClient is the transport shared by the metrics and alerts clients.
type restClient struct {
	http   *http.Client
	base   *url.URL
	logger *zap.SugaredLogger
}

func newRESTClient(p Parameters, root string) (*restClient, error) {
	base, err := url.Parse(p.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid url %q: %w", internalerrors.ErrConnection, p.URL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported url scheme %q", internalerrors.ErrConnection, base.Scheme)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("%w: url %q has no host", internalerrors.ErrConnection, p.URL)
	}
	base.Path = strings.TrimSuffix(base.Path, "/") + root

	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	transport := p.Transport
	if transport == nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		if p.Insecure {
			t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		}
		transport = t
	}
	transport = middlewareinternal.AuthTransport(p.Tenant, middlewareinternal.Credentials{
		Token:    p.Token,
		Username: p.Username,
		Password: p.Password,
	}, middlewareinternal.LoggingTransport(logger, transport))

	return &restClient{
		http:   &http.Client{Transport: transport, Timeout: p.Timeout},
		base:   base,
		logger: logger,
	}, nil
}

func (c *restClient) endpoint(query url.Values, segments ...string) string {
	u := *c.base
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	u.RawPath = u.EscapedPath() + "/" + strings.Join(escaped, "/")
	u.Path = u.Path + "/" + strings.Join(segments, "/")
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// do sends a request and decodes a JSON response into out when out is not nil.
// A 204 response leaves out untouched. Numbers decoded into interface values
// are json.Number.
func (c *restClient) do(ctx context.Context, method, endpoint string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("error creating json: %w", err)
		}
		body = bytes.NewReader(data)
	}

	request, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("error creating request for %s: %w", endpoint, err)
	}
	request.Header.Set("Accept", "application/json")
	if in != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	response, err := c.http.Do(request)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", internalerrors.ErrConnection, method, endpoint, err)
	}
	defer response.Body.Close()

	data, err := io.ReadAll(response.Body)
	if err != nil {
		return fmt.Errorf("error reading response body: %w", err)
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return &StatusError{
			Method: method,
			URL:    endpoint,
			Code:   response.StatusCode,
			Body:   strings.TrimSpace(string(data)),
		}
	}
	if out == nil || response.StatusCode == http.StatusNoContent || len(data) == 0 {
		return nil
	}
	// numbers in untyped fields stay json.Number so large counters keep every digit
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("error decoding response of %s %s: %w", method, endpoint, err)
	}
	return nil
}

func (c *restClient) close() {
	c.http.CloseIdleConnections()
}

// Client talks to the Hawkular Metrics API of one tenant.
type Client struct {
	rest *restClient
	now  func() time.Time
}

// NewClient validates p and builds a client. No request is sent.
func NewClient(p Parameters) (*Client, error) {
	rest, err := newRESTClient(p, metricsPath)
	if err != nil {
		return nil, err
	}
	return &Client{rest: rest, now: time.Now}, nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.rest.close()
}

// Push appends value to metric id, stamped with the current time.
func (c *Client) Push(ctx context.Context, typ models.MetricType, id string, value string) error {
	converted, err := models.ConvertValue(typ, value)
	if err != nil {
		return err
	}
	body := []models.MetricsDTO{{
		ID:   id,
		Data: []models.Datapoint{{Timestamp: c.now().UnixMilli(), Value: converted}},
	}}
	return c.rest.do(ctx, http.MethodPost, c.rest.endpoint(nil, typ.Path(), "raw"), body, nil)
}

func rangeQuery(q models.Query) url.Values {
	query := url.Values{}
	if !q.Start.IsZero() {
		query.Set("start", strconv.FormatInt(q.Start.UnixMilli(), 10))
	}
	if !q.End.IsZero() {
		query.Set("end", strconv.FormatInt(q.End.UnixMilli(), 10))
	}
	if q.Limit > 0 {
		query.Set("limit", strconv.Itoa(q.Limit))
	}
	return query
}

// QueryMetric reads raw datapoints of metric id.
func (c *Client) QueryMetric(ctx context.Context, typ models.MetricType, id string, q models.Query) ([]models.Datapoint, error) {
	var points []models.Datapoint
	err := c.rest.do(ctx, http.MethodGet, c.rest.endpoint(rangeQuery(q), typ.Path(), id, "raw"), nil, &points)
	if err != nil {
		return nil, err
	}
	return points, nil
}

// QueryMetricStats reads statistics of metric id in buckets of q.BucketDuration.
func (c *Client) QueryMetricStats(ctx context.Context, typ models.MetricType, id string, q models.Query) ([]models.Bucketpoint, error) {
	query := rangeQuery(q)
	query.Set("bucketDuration", fmt.Sprintf("%ds", int64(q.BucketDuration/time.Second)))

	var buckets []models.Bucketpoint
	err := c.rest.do(ctx, http.MethodGet, c.rest.endpoint(query, typ.Path(), id, "stats"), nil, &buckets)
	if err != nil {
		return nil, err
	}
	return buckets, nil
}

// QueryMetricDefinitions lists metric definitions of typ carrying all of tags.
func (c *Client) QueryMetricDefinitions(ctx context.Context, typ models.MetricType, tags map[string]string) ([]models.MetricDefinition, error) {
	query := url.Values{}
	query.Set("type", string(typ))
	if len(tags) > 0 {
		query.Set("tags", models.FormatTags(tags))
	}

	var definitions []models.MetricDefinition
	if err := c.rest.do(ctx, http.MethodGet, c.rest.endpoint(query, "metrics"), nil, &definitions); err != nil {
		return nil, err
	}
	return definitions, nil
}

// UpdateMetricTags adds or replaces tags on metric id.
func (c *Client) UpdateMetricTags(ctx context.Context, typ models.MetricType, id string, tags map[string]string) error {
	return c.rest.do(ctx, http.MethodPut, c.rest.endpoint(nil, typ.Path(), id, "tags"), tags, nil)
}

// Status returns the metrics service status document.
func (c *Client) Status(ctx context.Context) (map[string]string, error) {
	var raw map[string]any
	if err := c.rest.do(ctx, http.MethodGet, c.rest.endpoint(nil, "status"), nil, &raw); err != nil {
		return nil, err
	}
	status := make(map[string]string, len(raw))
	for k, v := range raw {
		status[k] = fmt.Sprint(v)
	}
	return status, nil
}

// AlertsClient talks to the Hawkular Alerts API of one tenant.
type AlertsClient struct {
	rest *restClient
}

// NewAlertsClient validates p and builds an alerts client. No request is sent.
func NewAlertsClient(p Parameters) (*AlertsClient, error) {
	rest, err := newRESTClient(p, alertsPath)
	if err != nil {
		return nil, err
	}
	return &AlertsClient{rest: rest}, nil
}

// Close releases idle connections.
func (c *AlertsClient) Close() {
	c.rest.close()
}

// ListTriggers returns all alert triggers of the tenant.
func (c *AlertsClient) ListTriggers(ctx context.Context) ([]models.Trigger, error) {
	var triggers []models.Trigger
	if err := c.rest.do(ctx, http.MethodGet, c.rest.endpoint(nil, "triggers"), nil, &triggers); err != nil {
		return nil, err
	}
	return triggers, nil
}
