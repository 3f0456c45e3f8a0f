package pipeline

import (
	"time"

	"github.com/banshee-data/ghostframe/internal/decode"
	"github.com/banshee-data/ghostframe/internal/scan"
)

// FrameStats reports what scanning one frame produced.
type FrameStats struct {
	Frame       int
	Scan        scan.FrameStats
	Decode      decode.Stats
	Decoded     int // packages read from the frame
	New         int // fragments not seen before
	ParseErrors int
	Duration    time.Duration
}

// Progress is one point on the completeness curve.
type Progress struct {
	FramesScanned int
	Completeness  float64
}

// SessionStats aggregates FrameStats over a session.
type SessionStats struct {
	FramesTotal   int
	FramesScanned int
	FrameErrors   int
	Seeded        int
	Scan          scan.FrameStats
	Decode        decode.Stats
	Decoded       int
	ParseErrors   int
	PerFrame      []FrameStats
	Progress      []Progress
	Duration      time.Duration
}

func (s *SessionStats) add(fs FrameStats, completeness float64) {
	s.FramesScanned++
	s.Scan.Add(fs.Scan)
	s.Decode.Add(fs.Decode)
	s.Decoded += fs.Decoded
	s.ParseErrors += fs.ParseErrors
	s.PerFrame = append(s.PerFrame, fs)
	s.Progress = append(s.Progress, Progress{FramesScanned: s.FramesScanned, Completeness: completeness})
}
