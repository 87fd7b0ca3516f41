// Package digest computes content digests of configuration files. A digest
// is the deduplication key for applied configuration: two files with equal
// bytes share one digest regardless of their paths.
package digest

import (
	_ "crypto/sha256"
	_ "crypto/sha512"
	"fmt"
	"io"

	godigest "github.com/opencontainers/go-digest"
	"github.com/spf13/afero"

	"github.com/specialistvlad/hostcfg/internal/cfgerr"
)

// DefaultChunkSize is the read buffer used when streaming a file into the
// digester.
const DefaultChunkSize = 4096

// Digest is an algorithm-prefixed content digest, e.g. "sha256:9f86d0...".
// Encoded returns the bare hex string.
type Digest = godigest.Digest

// Algorithm selects the hash function used by a Hasher.
type Algorithm = godigest.Algorithm

// SHA256 is the default algorithm.
const SHA256 = godigest.SHA256

// Hasher streams files into a single incremental digester.
type Hasher struct {
	Fs        afero.Fs
	Algorithm Algorithm
	ChunkSize int
}

// NewHasher returns a SHA-256 hasher reading from fs.
func NewHasher(fs afero.Fs) *Hasher {
	return &Hasher{Fs: fs, Algorithm: SHA256, ChunkSize: DefaultChunkSize}
}

// Default returns a SHA-256 hasher over the OS filesystem.
func Default() *Hasher {
	return NewHasher(afero.NewOsFs())
}

// File digests the file at path. Open and read failures are returned as
// *cfgerr.IOError.
func (h *Hasher) File(path string) (Digest, error) {
	f, err := h.Fs.Open(path)
	if err != nil {
		return "", &cfgerr.IOError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	d, err := h.Reader(f)
	if err != nil {
		return "", &cfgerr.IOError{Op: "read", Path: path, Err: err}
	}
	return d, nil
}

// Reader digests everything readable from r.
func (h *Hasher) Reader(r io.Reader) (Digest, error) {
	alg := h.Algorithm
	if alg == "" {
		alg = SHA256
	}
	if !alg.Available() {
		return "", fmt.Errorf("digest algorithm %q is not available", alg)
	}
	size := h.ChunkSize
	if size <= 0 {
		size = DefaultChunkSize
	}

	digester := alg.Digester()
	buf := make([]byte, size)
	if _, err := io.CopyBuffer(digester.Hash(), onlyReader{r}, buf); err != nil {
		return "", err
	}
	return digester.Digest(), nil
}

// Bytes digests an in-memory buffer with the hasher's algorithm.
func (h *Hasher) Bytes(p []byte) Digest {
	alg := h.Algorithm
	if alg == "" {
		alg = SHA256
	}
	return alg.FromBytes(p)
}

// onlyReader hides WriterTo/ReaderFrom so io.CopyBuffer really streams
// through buf in chunks of its size.
type onlyReader struct {
	io.Reader
}
