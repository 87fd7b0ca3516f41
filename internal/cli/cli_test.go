package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/hostcfg/internal/testutil"
)

func TestExecute_ApplyJSON(t *testing.T) {
	fs := testutil.MemFS(t, map[string]string{
		"/srv/host.toml":        "port = 80\nname = \"edge\"\n",
		"/srv/units/a.hcl":      "configure \"port\" {\n  port = host.port + 8000\n}\n",
		"/srv/units/b.hcl":      "configure \"name\" {\n  name = \"${host.name}-${host.port}\"\n}\n",
		"/srv/units/README.txt": "ignored",
	})

	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	err := Execute(context.Background(), []string{
		"--log-level", "DEBUG",
		"apply", "--base-dir", "/srv", "--host", "host.toml", "-o", "json", "units",
	}, out, errOut, fs)
	require.NoError(t, err)

	var doc struct {
		Attributes map[string]any `json:"attributes"`
		Applied    []string       `json:"applied"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &doc))
	assert.Equal(t, float64(8080), doc.Attributes["port"])
	assert.Equal(t, "edge-8080", doc.Attributes["name"])
	assert.Len(t, doc.Applied, 2)
	assert.Contains(t, errOut.String(), "level=DEBUG")
}

func TestExecute_DigestDirectory(t *testing.T) {
	fs := testutil.MemFS(t, map[string]string{
		"/units/b.hcl": "hello world",
		"/units/a.hcl": "hello world",
	})

	out := &bytes.Buffer{}
	require.NoError(t, Execute(context.Background(), []string{"digest", "/units"}, out, &bytes.Buffer{}, fs))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	const sum = "sha256:b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	assert.Equal(t, sum+"  /units/a.hcl", lines[0])
	assert.Equal(t, sum+"  /units/b.hcl", lines[1])
}

func TestExecute_UsageErrorsCarryExitCode(t *testing.T) {
	fs := testutil.MemFS(t, nil)

	tests := []struct {
		name    string
		args    []string
		message string
	}{
		{"no paths", []string{"apply", "--host", "h.hcl"}, "apply requires at least one FILE or DIR argument"},
		{"unknown shorthand", []string{"apply", "-z"}, "unknown shorthand flag"},
		{"bad debounce", []string{"apply", "--debounce", "soon", "--host", "h.hcl", "u"}, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := Execute(context.Background(), tc.args, &bytes.Buffer{}, &bytes.Buffer{}, fs)
			require.Error(t, err)
			var exitErr *ExitError
			require.True(t, errors.As(err, &exitErr), "expected ExitError, got %T: %v", err, err)
			assert.Equal(t, 2, exitErr.Code)
			if tc.message != "" {
				assert.Contains(t, exitErr.Error(), tc.message)
			}
		})
	}
}

func TestUsageError_KeepsExistingExitError(t *testing.T) {
	orig := &ExitError{Code: 3, Message: "custom"}
	assert.Same(t, orig, usageError(orig))

	wrapped := usageError(errors.New("plain"))
	var exitErr *ExitError
	require.True(t, errors.As(wrapped, &exitErr))
	assert.Equal(t, 2, exitErr.Code)
	assert.Equal(t, "plain", exitErr.Error())
}
