package fragment

import (
	"bytes"
	"errors"
	"fmt"

	"fortio.org/safecast"
	"github.com/cespare/xxhash/v2"
	"github.com/vmihailenco/msgpack/v5"
)

// Separator divides the metadata block from the payload bytes. Every byte of
// an encoded metadata block is a MessagePack marker, a key name, or part of
// an integer of at most 8 bytes, so the 11-byte separator cannot occur inside it.
var Separator = []byte("|SEPARATOR|")

var (
	// ErrMissingSeparator is returned when a package has no separator.
	ErrMissingSeparator = errors.New("fragment: missing separator")
	// ErrMetadataDecode is returned when the metadata block is undecodable,
	// lacks a required field, or is inconsistent with the payload.
	ErrMetadataDecode = errors.New("fragment: metadata decode error")
	// ErrChecksumMismatch is returned when the payload does not hash to the
	// checksum recorded in its metadata.
	ErrChecksumMismatch = errors.New("fragment: checksum mismatch")
	// ErrTooManyMissing is returned by Join when more fragments are absent
	// than the tolerance allows.
	ErrTooManyMissing = errors.New("fragment: too many missing fragments")
	// ErrInvalidChunkSize is returned by Split for a chunk size below one byte.
	ErrInvalidChunkSize = errors.New("fragment: chunk size must be at least 1")
)

// Fragment is one addressable, checksummed slice of the original payload.
type Fragment struct {
	Index    uint32
	Total    uint32
	Size     uint32
	Checksum uint64
	Payload  []byte
}

// metadata is the serialised header. Pointer fields distinguish an absent
// key from a zero value.
type metadata struct {
	Idx      *uint32 `msgpack:"idx"`
	Total    *uint32 `msgpack:"total"`
	Size     *uint32 `msgpack:"size"`
	Checksum *uint64 `msgpack:"checksum"`
}

// Checksum returns the content hash recorded for a payload.
func Checksum(payload []byte) uint64 {
	return xxhash.Sum64(payload)
}

// Split partitions data into contiguous chunks of at most maxChunk bytes and
// returns one wire package per chunk, in order.
func Split(data []byte, maxChunk int) ([][]byte, error) {
	if maxChunk < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidChunkSize, maxChunk)
	}
	n := (len(data) + maxChunk - 1) / maxChunk
	total, err := safecast.Conv[uint32](n)
	if err != nil {
		return nil, fmt.Errorf("fragment count %d: %w", n, err)
	}

	packages := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		start := i * maxChunk
		end := min(start+maxChunk, len(data))
		chunk := data[start:end]

		idx, err := safecast.Conv[uint32](i)
		if err != nil {
			return nil, fmt.Errorf("fragment index %d: %w", i, err)
		}
		size, err := safecast.Conv[uint32](len(chunk))
		if err != nil {
			return nil, fmt.Errorf("fragment size %d: %w", len(chunk), err)
		}
		pkg, err := Encode(Fragment{
			Index:    idx,
			Total:    total,
			Size:     size,
			Checksum: Checksum(chunk),
			Payload:  chunk,
		})
		if err != nil {
			return nil, err
		}
		packages = append(packages, pkg)
	}
	return packages, nil
}

// Encode serialises a single fragment into its wire package.
func Encode(f Fragment) ([]byte, error) {
	meta, err := msgpack.Marshal(&metadata{
		Idx:      &f.Index,
		Total:    &f.Total,
		Size:     &f.Size,
		Checksum: &f.Checksum,
	})
	if err != nil {
		return nil, fmt.Errorf("encode fragment %d metadata: %w", f.Index, err)
	}
	pkg := make([]byte, 0, len(meta)+len(Separator)+len(f.Payload))
	pkg = append(pkg, meta...)
	pkg = append(pkg, Separator...)
	pkg = append(pkg, f.Payload...)
	return pkg, nil
}

// Parse decodes and verifies a wire package. It has no side effects.
func Parse(raw []byte) (Fragment, error) {
	metaBytes, payload, found := bytes.Cut(raw, Separator)
	if !found {
		return Fragment{}, ErrMissingSeparator
	}

	var meta metadata
	if err := msgpack.Unmarshal(metaBytes, &meta); err != nil {
		return Fragment{}, fmt.Errorf("%w: %v", ErrMetadataDecode, err)
	}
	if meta.Idx == nil || meta.Total == nil || meta.Size == nil || meta.Checksum == nil {
		return Fragment{}, fmt.Errorf("%w: missing required field", ErrMetadataDecode)
	}
	if *meta.Idx >= *meta.Total {
		return Fragment{}, fmt.Errorf("%w: idx %d not below total %d", ErrMetadataDecode, *meta.Idx, *meta.Total)
	}
	if uint64(*meta.Size) != uint64(len(payload)) {
		return Fragment{}, fmt.Errorf("%w: size %d but payload has %d bytes", ErrMetadataDecode, *meta.Size, len(payload))
	}
	if Checksum(payload) != *meta.Checksum {
		return Fragment{}, fmt.Errorf("%w: fragment %d", ErrChecksumMismatch, *meta.Idx)
	}

	return Fragment{
		Index:    *meta.Idx,
		Total:    *meta.Total,
		Size:     *meta.Size,
		Checksum: *meta.Checksum,
		Payload:  payload,
	}, nil
}
