package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Schera-ole/hawkular-client-cli/internal/handler"
	"github.com/Schera-ole/hawkular-client-cli/internal/hawkular/hawkulartest"
	models "github.com/Schera-ole/hawkular-client-cli/internal/model"
)

const rulesConfig = `
hawkular:
  tenant: ops
  token: secret
rules:
  - regex: 'cpu\.'
    tags:
      type: cpu
  - regex: 'cpu\.load'
    tags:
      unit: pct
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func noEnv(string) string { return "" }

type result struct {
	code   int
	stdout string
	stderr string
}

func runCLI(t *testing.T, getenv func(string) string, args ...string) result {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr, getenv)
	return result{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func newServer(t *testing.T) *hawkulartest.Server {
	t.Helper()
	srv := hawkulartest.NewServer(handler.AuthConfig{Tenant: "ops", Token: "secret"})
	t.Cleanup(srv.Close)
	return srv
}

func TestRun_Version(t *testing.T) {
	res := runCLI(t, noEnv, "--version")
	assert.Equal(t, 1, res.code)
	assert.Equal(t, "hawkular-client-cli v"+version+"\n", res.stdout)
}

func TestRun_MissingSettings(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		field string
	}{
		{name: "no url", args: nil, field: "url"},
		{name: "no tenant", args: []string{"-U", "http://localhost:8080"}, field: "tenant"},
		{name: "no username", args: []string{"-U", "http://localhost:8080", "-t", "ops"}, field: "username"},
		{name: "no password", args: []string{"-U", "http://localhost:8080", "-t", "ops", "-u", "jdoe"}, field: "password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"-c", filepath.Join(t.TempDir(), "absent.yaml"), "--status"}, tt.args...)
			res := runCLI(t, noEnv, args...)
			assert.Equal(t, 1, res.code)
			assert.Contains(t, res.stderr, "Error: missing "+tt.field+"\n")
			assert.Contains(t, res.stderr, "Usage:")
			assert.Empty(t, res.stdout)
		})
	}
}

func TestRun_InvalidFlags(t *testing.T) {
	res := runCLI(t, noEnv, "--metric", "histogram")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "unknown metric type")
	assert.Contains(t, res.stderr, "Usage:")

	res = runCLI(t, noEnv, "--start", "not a date at all")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "not a valid date")
}

func TestRun_InvalidOperand(t *testing.T) {
	srv := newServer(t)
	cfg := writeConfig(t, rulesConfig)

	res := runCLI(t, noEnv, "-c", cfg, "-U", srv.URL, "cpu.load")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "expected KEY=VALUE")
	assert.Empty(t, srv.Storage.MetricTags(models.Gauge, "cpu.load"))
}

func TestRun_EnvironmentSettings(t *testing.T) {
	srv := newServer(t)
	env := map[string]string{
		"HAWKULAR_URL":    srv.URL,
		"HAWKULAR_TENANT": "ops",
		"HAWKULAR_TOKEN":  "secret",
	}
	getenv := func(name string) string { return env[name] }

	res := runCLI(t, getenv, "-c", filepath.Join(t.TempDir(), "absent.yaml"), "--status")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "MetricsService: STARTED\n")
}

func TestRun_PushAppliesRules(t *testing.T) {
	srv := newServer(t)
	cfg := writeConfig(t, rulesConfig)

	res := runCLI(t, noEnv, "-c", cfg, "-U", srv.URL, "cpu.load.avg=0.5", "mem.free=1024")
	require.Equal(t, 0, res.code, res.stderr)

	points, err := srv.Storage.QueryMetric(context.Background(), models.Gauge, "cpu.load.avg", models.Query{})
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, 0.5, points[0].Value)

	assert.Equal(t, map[string]string{"type": "cpu", "unit": "pct"}, srv.Storage.MetricTags(models.Gauge, "cpu.load.avg"))
	assert.Empty(t, srv.Storage.MetricTags(models.Gauge, "mem.free"))
}

func TestRun_ExplicitTagsWin(t *testing.T) {
	srv := newServer(t)
	cfg := writeConfig(t, rulesConfig)

	res := runCLI(t, noEnv, "-c", cfg, "-U", srv.URL, "-a", "type=custom", "-a", "host=a", "cpu.idle=3")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, map[string]string{"type": "custom", "host": "a"}, srv.Storage.MetricTags(models.Gauge, "cpu.idle"))
}

func TestRun_NoAutotags(t *testing.T) {
	srv := newServer(t)
	cfg := writeConfig(t, rulesConfig)

	res := runCLI(t, noEnv, "-c", cfg, "-U", srv.URL, "-N", "cpu.load=1")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Empty(t, srv.Storage.MetricTags(models.Gauge, "cpu.load"))

	res = runCLI(t, noEnv, "-c", cfg, "-U", srv.URL, "-N", "-k", "cpu.load", "-a", "host=a", "-a", "dc=eu")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, map[string]string{"host": "a", "dc": "eu"}, srv.Storage.MetricTags(models.Gauge, "cpu.load"))
}

func TestRun_TagValuesKeepCommas(t *testing.T) {
	srv := newServer(t)
	cfg := writeConfig(t, rulesConfig)

	res := runCLI(t, noEnv, "-c", cfg, "-U", srv.URL, "-a", "desc=a,b", "-a", `note="quoted"`, "mem.x=1")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, map[string]string{"desc": "a,b", "note": `"quoted"`}, srv.Storage.MetricTags(models.Gauge, "mem.x"))

	res = runCLI(t, noEnv, "-c", cfg, "-U", srv.URL, "-N", "-k", "disk,sda", "-a", "dev=sda")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, map[string]string{"dev": "sda"}, srv.Storage.MetricTags(models.Gauge, "disk,sda"))
}

func TestRun_InvalidRuleFailsAfterPush(t *testing.T) {
	srv := newServer(t)
	cfg := writeConfig(t, `
hawkular:
  tenant: ops
  token: secret
rules:
  - regex: '('
    tags:
      broken: "yes"
`)

	res := runCLI(t, noEnv, "-c", cfg, "-U", srv.URL, "cpu.load=1")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "Error:")

	// the push that ran before the tag update is kept
	points, err := srv.Storage.QueryMetric(context.Background(), models.Gauge, "cpu.load", models.Query{})
	require.NoError(t, err)
	assert.Len(t, points, 1)
	assert.Empty(t, srv.Storage.MetricTags(models.Gauge, "cpu.load"))
}

func TestRun_ReadAndList(t *testing.T) {
	srv := newServer(t)
	cfg := writeConfig(t, rulesConfig)
	at := time.Now().Add(-time.Hour).Truncate(time.Second)
	require.NoError(t, srv.Storage.Write(models.Counter, "requests",
		models.Datapoint{Timestamp: at.UnixMilli(), Value: int64(42)}))
	require.NoError(t, srv.Storage.UpdateMetricTags(context.Background(), models.Counter, "requests", map[string]string{"svc": "api"}))

	res := runCLI(t, noEnv, "-c", cfg, "-U", srv.URL, "-m", "counter", "-r", "-k", "requests")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "key: requests\nvalues:\n")
	assert.Contains(t, res.stdout, at.Format("2006-01-02 15:04:05"))
	assert.Contains(t, res.stdout, ") 42\n")

	res = runCLI(t, noEnv, "-c", cfg, "-U", srv.URL, "-m", "counter", "-l", "-a", "svc=api")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, "key:  requests\ntags: {svc:api}\n\n", res.stdout)

	res = runCLI(t, noEnv, "-c", cfg, "-U", srv.URL, "-m", "counter", "-r", "-a", "svc=api", "-b", "3600",
		"-s", at.Add(-time.Minute).Format(time.RFC3339), "-e", at.Add(time.Hour).Format(time.RFC3339))
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "avg: 42 [ 1 ]")
}

func TestRun_ReadLargeCounter(t *testing.T) {
	srv := newServer(t)
	cfg := writeConfig(t, rulesConfig)
	at := time.Now().Add(-time.Hour)
	require.NoError(t, srv.Storage.Write(models.Counter, "bytes",
		models.Datapoint{Timestamp: at.UnixMilli(), Value: int64(12345678)},
		models.Datapoint{Timestamp: at.Add(time.Second).UnixMilli(), Value: int64(9007199254740993)}))

	res := runCLI(t, noEnv, "-c", cfg, "-U", srv.URL, "-m", "counter", "-r", "-k", "bytes")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, ") 12345678\n")
	assert.Contains(t, res.stdout, ") 9007199254740993\n")
	assert.NotContains(t, res.stdout, "e+")
}

func TestRun_Triggers(t *testing.T) {
	srv := newServer(t)
	cfg := writeConfig(t, rulesConfig)
	srv.Storage.AddTrigger(models.Trigger{ID: "cpu-high", Name: "CPU high", Description: "cpu above 90", Enabled: false})

	res := runCLI(t, noEnv, "-c", cfg, "-U", srv.URL, "--triggers")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, "key:  cpu-high\nname: CPU high\ndescription: cpu above 90\nenabled: false\n\n", res.stdout)
}

func TestRun_ServerError(t *testing.T) {
	srv := newServer(t)
	cfg := writeConfig(t, rulesConfig)

	res := runCLI(t, noEnv, "-c", cfg, "-U", srv.URL, "-T", "wrong", "--status")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "401")
}

func TestRun_ReportsFailuresToSentry(t *testing.T) {
	var (
		mu     sync.Mutex
		events []string
	)
	sentry := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		events = append(events, r.Method+" "+r.URL.Path)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer sentry.Close()

	srv := newServer(t)
	sentryURL, err := url.Parse(sentry.URL)
	require.NoError(t, err)
	cfg := writeConfig(t, rulesConfig+`
application:
  sentry_dsn: http://public:secret@`+sentryURL.Host+`/42
`)

	res := runCLI(t, noEnv, "-c", cfg, "-U", srv.URL, "--status")
	require.Equal(t, 0, res.code, res.stderr)
	mu.Lock()
	assert.Empty(t, events)
	mu.Unlock()

	res = runCLI(t, noEnv, "-c", cfg, "-U", srv.URL, "-T", "wrong", "--status")
	assert.Equal(t, 1, res.code)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"POST /api/42/store/"}, events)
}
