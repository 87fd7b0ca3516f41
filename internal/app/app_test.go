package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/specialistvlad/hostcfg/internal/cfgerr"
	"github.com/specialistvlad/hostcfg/internal/host"
	"github.com/specialistvlad/hostcfg/internal/statefile"
	"github.com/specialistvlad/hostcfg/internal/testutil"
)

const hostSchema = `
kind = "WebHost"

attribute "x" {
  type    = number
  default = 0
}

attribute "role" {
  type    = string
  default = "none"
}
`

func newFS(t *testing.T, extra map[string]string) afero.Fs {
	t.Helper()
	files := map[string]string{
		"/etc/hostcfg/host.hcl":        hostSchema,
		"/etc/hostcfg/conf.d/10-a.hcl": "configure \"bump\" {\n  x = host.x + 1\n}\n",
		"/etc/hostcfg/conf.d/20-b.hcl": "configure \"role\" {\n  role = \"web-${host.x}\"\n}\n",
	}
	for k, v := range extra {
		files[k] = v
	}
	return testutil.MemFS(t, files)
}

func newTestApp(t *testing.T, fs afero.Fs, cfg Config) (*App, *bytes.Buffer, *testutil.SafeBuffer) {
	t.Helper()
	if cfg.HostSchema == "" {
		cfg.HostSchema = "host.hcl"
	}
	if len(cfg.Paths) == 0 {
		cfg.Paths = []string{"conf.d"}
	}
	cfg.BaseDir = "/etc/hostcfg"
	cfg.LogLevel = "debug"
	c, err := NewConfig(cfg)
	require.NoError(t, err)

	out := &bytes.Buffer{}
	logs := &testutil.SafeBuffer{}
	return NewApp(out, logs, c, fs), out, logs
}

func TestRun_AppliesAndRendersJSON(t *testing.T) {
	fs := newFS(t, nil)
	a, out, logs := newTestApp(t, fs, Config{Output: "json", StatePath: "state.yaml"})

	require.NoError(t, a.Run(context.Background()))

	var doc struct {
		Kind       string         `json:"kind"`
		Attributes map[string]any `json:"attributes"`
		Applied    []string       `json:"applied"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &doc))
	assert.Equal(t, "WebHost", doc.Kind)
	assert.Equal(t, float64(1), doc.Attributes["x"])
	assert.Equal(t, "web-1", doc.Attributes["role"])
	assert.Len(t, doc.Applied, 2)

	saved, err := statefile.Load(fs, "/etc/hostcfg/state.yaml")
	require.NoError(t, err)
	assert.Len(t, saved.Applied, 2)
	assert.Equal(t, 1, saved.Attributes["x"])

	assert.Contains(t, logs.String(), "Configuration applied.")
	assert.Len(t, a.Loader().Units(), 2)
}

func TestRun_StateSkipsAppliedContent(t *testing.T) {
	fs := newFS(t, nil)
	first, _, _ := newTestApp(t, fs, Config{StatePath: "state.yaml"})
	require.NoError(t, first.Run(context.Background()))

	second, out, _ := newTestApp(t, fs, Config{StatePath: "state.yaml", Output: "yaml"})
	require.NoError(t, second.Run(context.Background()))

	var doc report
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &doc))
	assert.Equal(t, 1, doc.Attributes["x"], "restored attributes keep earlier effects")
	assert.Equal(t, "web-1", doc.Attributes["role"])
	assert.Len(t, doc.Applied, 2)
	assert.Empty(t, second.Loader().Units(), "restored digests are not applied again")
}

func TestRun_PartialFailurePersistsState(t *testing.T) {
	fs := newFS(t, map[string]string{
		"/etc/hostcfg/conf.d/30-bad.hcl": `configure "broken" {`,
	})
	a, out, _ := newTestApp(t, fs, Config{StatePath: "state.yaml", Output: "json"})

	err := a.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, cfgerr.ErrLoad)
	assert.Empty(t, out.String(), "nothing is rendered on failure")

	saved, err := statefile.Load(fs, "/etc/hostcfg/state.yaml")
	require.NoError(t, err)
	assert.Len(t, saved.Applied, 2)
	assert.Equal(t, 1, saved.Attributes["x"])
	assert.Equal(t, "web-1", saved.Attributes["role"])
}

func TestRun_StateDropsUndeclaredAttributes(t *testing.T) {
	fs := newFS(t, map[string]string{
		"/etc/hostcfg/state.yaml": `version: 1
applied: []
attributes:
  x: 41
  gone: true
`,
	})
	a, out, logs := newTestApp(t, fs, Config{StatePath: "state.yaml", Output: "yaml"})
	require.NoError(t, a.Run(context.Background()))

	var doc report
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &doc))
	assert.Equal(t, 42, doc.Attributes["x"])
	assert.NotContains(t, doc.Attributes, "gone")
	assert.Contains(t, logs.String(), "Saved attributes are not declared by the host schema.")
}

func TestRun_MissingSchema(t *testing.T) {
	fs := newFS(t, nil)
	a, _, _ := newTestApp(t, fs, Config{HostSchema: "nope.hcl"})
	err := a.Run(context.Background())
	assert.ErrorIs(t, err, cfgerr.ErrIO)
}

func TestRun_MissingUnitFile(t *testing.T) {
	fs := newFS(t, nil)
	a, _, _ := newTestApp(t, fs, Config{Paths: []string{"conf.d/10-a.hcl", "conf.d/99-missing.hcl"}})
	err := a.Run(context.Background())
	assert.ErrorIs(t, err, cfgerr.ErrIO)
}

func TestNewConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"no paths", Config{HostSchema: "h.hcl"}, "at least one configuration path"},
		{"no schema", Config{Paths: []string{"a"}}, "host schema file is required"},
		{"bad output", Config{Paths: []string{"a"}, HostSchema: "h", Output: "xml"}, "invalid output format"},
		{"bad log format", Config{Paths: []string{"a"}, HostSchema: "h", LogFormat: "xml"}, "invalid log-format"},
		{"bad log level", Config{Paths: []string{"a"}, HostSchema: "h", LogLevel: "loud"}, "invalid log-level"},
		{"health without watch", Config{Paths: []string{"a"}, HostSchema: "h", HealthcheckPort: 8080}, "only available in watch mode"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewConfig(tc.cfg)
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}

	cfg, err := NewConfig(Config{Paths: []string{"a"}, HostSchema: "h"})
	require.NoError(t, err)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestPrintDigests(t *testing.T) {
	fs := testutil.MemFS(t, map[string]string{
		"/u/a.hcl": "hello world",
		"/u/b.txt": "ignored in directories",
	})
	var out bytes.Buffer
	require.NoError(t, PrintDigests(context.Background(), &out, fs, []string{"/u"}))
	assert.Equal(t, "sha256:b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9  /u/a.hcl\n", out.String())

	err := PrintDigests(context.Background(), &out, fs, []string{"/missing.hcl"})
	assert.ErrorIs(t, err, cfgerr.ErrIO)
}

func TestHealthHandler(t *testing.T) {
	h, err := host.New("Host", nil)
	require.NoError(t, err)
	a := &App{logger: NewLogger("error", "text", &bytes.Buffer{})}

	rec := httptest.NewRecorder()
	a.healthHandler(h)(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK applied=0\n", rec.Body.String())
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("warn", "json", &buf)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"msg":"shown"`)
}
