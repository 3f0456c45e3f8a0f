// Package embed distributes rendered fragment patterns across a frame
// sequence.
//
// The frame-to-fragment cadence is computed up front by PlanCadence; each
// scheduled frame then receives exactly one pattern at a position chosen by
// a Placer. Random placements are never persisted: the decoder scans every
// frame exhaustively and does not depend on where a pattern was put.
package embed
