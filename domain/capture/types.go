package capture

import (
	"image"
	"time"
)

// FrameSnapshot carries the latest decoded frame and metadata.
type FrameSnapshot struct {
	Image      image.Image
	CapturedAt time.Time
	Sequence   uint64
}

// PlaybackStats summarises playback loop behaviour for instrumentation.
type PlaybackStats struct {
	Frames         uint64
	Skipped        uint64
	AvgRead        time.Duration
	LastFrame      time.Time
	LatestFrameAge time.Duration
	Sequence       uint64
	Running        bool
	Paused         bool
	Ended          bool
}
