// Package statefile persists a host between runs: the digests applied to it
// and the attribute values they produced.
package statefile

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/specialistvlad/hostcfg/internal/digest"
)

// Version is the only state file format this package reads and writes.
const Version = 1

// State is the on-disk document. Attributes hold plain Go values as produced
// by lockable.Object.Native.
type State struct {
	Version    int             `yaml:"version"`
	Applied    []digest.Digest `yaml:"applied"`
	Attributes map[string]any  `yaml:"attributes,omitempty"`
}

var header = []byte(`# hostcfg state file
# Digests of configuration content already applied to this host, oldest first,
# and the host attributes after applying them.

`)

// Load reads the state stored at path. A missing file yields an empty state.
func Load(fsys afero.Fs, path string) (*State, error) {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &State{Version: Version}, nil
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var st State
	if err := yaml.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}
	if st.Version != Version {
		return nil, fmt.Errorf("unsupported state file version: %d (expected %d)", st.Version, Version)
	}
	for _, d := range st.Applied {
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("invalid digest %q in state file: %w", d, err)
		}
	}
	return &st, nil
}

// Save writes st to path. The document is written to a temporary file in
// the same directory and renamed over path.
func Save(fsys afero.Fs, path string, st *State) error {
	dir := filepath.Dir(path)
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to ensure state directory exists: %w", err)
	}

	out := State{Version: Version, Applied: []digest.Digest{}}
	if st != nil {
		out.Attributes = st.Attributes
		if st.Applied != nil {
			out.Applied = st.Applied
		}
	}
	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	data = append(header, data...)

	tmp, err := afero.TempFile(fsys, dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary state file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		fsys.Remove(tmpPath)
		return fmt.Errorf("failed to write temporary state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		fsys.Remove(tmpPath)
		return fmt.Errorf("failed to write temporary state file: %w", err)
	}

	if err := fsys.Rename(tmpPath, path); err != nil {
		fsys.Remove(tmpPath)
		return fmt.Errorf("failed to save state file: %w", err)
	}
	return nil
}
