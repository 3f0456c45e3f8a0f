// Package fragment splits a payload into checksummed, self-describing
// packages and joins recovered fragments back into the payload.
//
// Wire form of a package:
//
//	metadata || "|SEPARATOR|" || payload
//
// metadata is a MessagePack map with the keys idx, total, size and checksum.
// The checksum is XXH64 (seed 0) of the payload bytes, so packages written by
// one process verify in any other.
//
// No image or QR code is handled here; see the pattern and decode packages.
package fragment
