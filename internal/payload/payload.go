// Package payload optionally compresses payloads before embedding and
// verifies reconstructed payloads after extraction.
package payload

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

// ErrNotGzip is returned when a reconstruction is not a complete gzip stream.
var ErrNotGzip = errors.New("payload: not a valid gzip stream")

var gzipMagic = []byte{0x1f, 0x8b}

// Compress gzips data at the best compression level.
func Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("compress: %w", err)
	}
	return buf.Bytes(), nil
}

// IsGzip reports whether data starts with the gzip magic number.
func IsGzip(data []byte) bool {
	return bytes.HasPrefix(data, gzipMagic)
}

// Decompress inflates a gzip stream, failing with ErrNotGzip on a missing
// header, a truncated stream or a CRC mismatch.
func Decompress(data []byte) ([]byte, error) {
	if !IsGzip(data) {
		return nil, ErrNotGzip
	}
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotGzip, err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotGzip, err)
	}
	return out, nil
}
