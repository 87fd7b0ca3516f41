package cfgerr

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/hashicorp/hcl/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIOError_MatchesSentinelAndCause(t *testing.T) {
	err := fmt.Errorf("hashing: %w", &IOError{Op: "open", Path: "a.hcl", Err: os.ErrNotExist})

	assert.ErrorIs(t, err, ErrIO)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.NotErrorIs(t, err, ErrLoad)
	assert.Contains(t, err.Error(), `failed to open "a.hcl"`)
}

func TestLoadError_WrapsIOError(t *testing.T) {
	ioErr := &IOError{Op: "read", Path: "a.hcl", Err: os.ErrPermission}
	err := error(&LoadError{Path: "a.hcl", Err: ioErr})

	assert.ErrorIs(t, err, ErrLoad)
	assert.ErrorIs(t, err, ErrIO)

	var target *IOError
	require.ErrorAs(t, err, &target)
	assert.Equal(t, "read", target.Op)
}

func TestLoadError_CarriesDiagnostics(t *testing.T) {
	diags := hcl.Diagnostics{{
		Severity: hcl.DiagError,
		Summary:  "Unsupported block type",
		Detail:   `Blocks of type "resource" are not expected here.`,
	}}
	err := &LoadError{Path: "b.hcl", UnitID: "b", Diags: diags}

	assert.ErrorIs(t, err, ErrLoad)
	assert.Contains(t, err.Error(), "failed to load unit b (b.hcl)")
	assert.Contains(t, err.Error(), "Unsupported block type")

	var got hcl.Diagnostics
	require.True(t, errors.As(err, &got))
	assert.Len(t, got, 1)
}

func TestAttributeError_Message(t *testing.T) {
	err := &AttributeError{Kind: "Server", Name: "port2"}

	assert.ErrorIs(t, err, ErrAttribute)
	assert.EqualError(t, err, `cannot add new attribute "port2" to instances of Server`)
}
