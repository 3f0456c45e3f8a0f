// Package scan locates candidate carrier regions in a frame and amplifies
// their sub-visible contrast into bilevel images a QR decoder can read.
//
// A frame is tiled into overlapping square windows. Every window that is not
// flat is passed through each configured enhancement strategy; the resulting
// candidates are handed to the decoder. Scanning is a pure function of the
// frame pixels, so frames may be scanned concurrently.
package scan
